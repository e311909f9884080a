package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"astrofin/internal/api"
	"astrofin/internal/clock"
	"astrofin/internal/session"
	"astrofin/internal/views"
)

const (
	sessionCookie = "astrofin_session"
	sessionIDLen  = 32 // bytes, hex encoded in the cookie
	// Callers idle this long are dropped from memory. Their stored
	// credential stays and is picked up again on the next request.
	callerIdle = 12 * time.Hour
)

// ClientFactory builds the backend client for one caller's session.
type ClientFactory func(sess *session.Session) *api.Client

// caller is one browser: its credential, its backend client and the state
// of every page it has open.
type caller struct {
	id       string
	session  *session.Session
	client   *api.Client
	lastSeen time.Time

	dashboard   *views.Dashboard
	income      *views.Income
	expenses    *views.Expenses
	liabilities *views.Liabilities
	customers   *views.Customers
	payroll     *views.Payroll
}

// callers maps session cookie ids to callers. Only callers holding a
// credential are kept.
type callers struct {
	mu        sync.Mutex
	byID      map[string]*caller
	store     session.Store
	clock     clock.Clock
	newClient ClientFactory
	opts      []views.Option
}

func newCallers(store session.Store, newClient ClientFactory, clk clock.Clock, opts []views.Option) *callers {
	return &callers{
		byID:      make(map[string]*caller),
		store:     store,
		clock:     clk,
		newClient: newClient,
		opts:      opts,
	}
}

func newSessionID() (string, error) {
	b := make([]byte, sessionIDLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validSessionID(id string) bool {
	if len(id) != 2*sessionIDLen {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

func (cs *callers) build(id string) *caller {
	sess := session.New(session.Scope(cs.store, id), cs.clock)
	client := cs.newClient(sess)
	return &caller{
		id:          id,
		session:     sess,
		client:      client,
		lastSeen:    cs.clock.Now(),
		dashboard:   views.NewDashboard(client, cs.opts...),
		income:      views.NewIncome(client, cs.opts...),
		expenses:    views.NewExpenses(client, cs.opts...),
		liabilities: views.NewLiabilities(client, cs.opts...),
		customers:   views.NewCustomers(client, cs.opts...),
		payroll:     views.NewPayroll(client, cs.opts...),
	}
}

// start prepares a caller under a fresh id. It is registered by add once
// its login succeeds.
func (cs *callers) start() (*caller, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	return cs.build(id), nil
}

func (cs *callers) add(c *caller) {
	now := cs.clock.Now()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for id, old := range cs.byID {
		if now.Sub(old.lastSeen) > callerIdle {
			delete(cs.byID, id)
		}
	}
	c.lastSeen = now
	cs.byID[c.id] = c
}

func (cs *callers) drop(id string) {
	cs.mu.Lock()
	delete(cs.byID, id)
	cs.mu.Unlock()
}

// lookup returns the caller named by the request's cookie when it holds a
// credential. A caller evicted from memory is rebuilt from the store.
func (cs *callers) lookup(r *http.Request) (*caller, bool) {
	ck, err := r.Cookie(sessionCookie)
	if err != nil || !validSessionID(ck.Value) {
		return nil, false
	}
	id := ck.Value

	cs.mu.Lock()
	c, ok := cs.byID[id]
	if ok {
		c.lastSeen = cs.clock.Now()
	}
	cs.mu.Unlock()

	if ok {
		if c.session.Authenticated(r.Context()) {
			return c, true
		}
		cs.drop(id)
		return nil, false
	}

	c = cs.build(id)
	if !c.session.Authenticated(r.Context()) {
		return nil, false
	}
	cs.mu.Lock()
	if cur, ok := cs.byID[id]; ok {
		c = cur
	} else {
		cs.byID[id] = c
	}
	cs.mu.Unlock()
	return c, true
}

// end logs the caller out and forgets it.
func (cs *callers) end(ctx context.Context, c *caller) error {
	cs.drop(c.id)
	return c.client.Logout(ctx)
}

// Active reports how many callers are held in memory.
func (cs *callers) Active() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.byID)
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
