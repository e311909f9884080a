package amqp

import (
	"encoding/json"
	"strings"
	"time"

	"astrofin/internal/api"
)

// MutationEvent is published after the backend accepted a change. It
// carries only what changed, never the record itself; consumers fetch
// the record from the backend when they need it.
type MutationEvent struct {
	Resource  string    `json:"resource"`
	Op        string    `json:"op"`
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMutationEvent converts an API client mutation into an event.
func NewMutationEvent(m api.Mutation) *MutationEvent {
	return &MutationEvent{
		Resource:  m.Resource,
		Op:        m.Op,
		ID:        m.ID,
		Timestamp: m.At.UTC(),
	}
}

// RoutingKey is prefix.resource.op, e.g. "ledger.liabilities.pay".
func (m *MutationEvent) RoutingKey(prefix string) string {
	parts := []string{m.Resource, m.Op}
	if prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return strings.Join(parts, ".")
}

func (m *MutationEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func MutationEventFromJSON(data []byte) (*MutationEvent, error) {
	var msg MutationEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
