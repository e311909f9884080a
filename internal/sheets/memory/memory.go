// Package memory keeps exported rows in process. The CLI uses it for
// dry runs.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"astrofin/internal/sheets"
)

var _ sheets.RowAppender = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	sheets map[string][][]any
}

func New() *Store {
	return &Store{sheets: make(map[string][][]any)}
}

// AppendRows stores copies of rows under sheet.
func (s *Store) AppendRows(_ context.Context, sheet string, rows [][]any) (int, error) {
	if sheet == "" {
		return 0, errors.New("sheet name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.sheets[sheet] = append(s.sheets[sheet], append([]any(nil), r...))
	}
	return len(rows), nil
}

// Rows returns what was appended to sheet, in order.
func (s *Store) Rows(sheet string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.sheets[sheet]))
	copy(out, s.sheets[sheet])
	return out
}

// Sheets lists the sheet names written so far.
func (s *Store) Sheets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sheets))
	for name := range s.sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
