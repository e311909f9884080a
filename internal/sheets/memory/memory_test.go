package memory

import (
	"context"
	"testing"
)

func TestStoreAppendAndRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	row := []any{"2025-03-01", "income", "Consulting"}
	n, err := s.AppendRows(ctx, "Transactions", [][]any{row, {"2025-03-02", "expense", "Food"}})
	if err != nil || n != 2 {
		t.Fatalf("AppendRows = %d, %v", n, err)
	}
	row[2] = "changed"

	got := s.Rows("Transactions")
	if len(got) != 2 || got[0][2] != "Consulting" {
		t.Fatalf("Rows = %v", got)
	}
	if names := s.Sheets(); len(names) != 1 || names[0] != "Transactions" {
		t.Errorf("Sheets = %v", names)
	}
	if len(s.Rows("Other")) != 0 {
		t.Error("unknown sheet has rows")
	}
}

func TestStoreRequiresSheet(t *testing.T) {
	if _, err := New().AppendRows(context.Background(), "", [][]any{{"x"}}); err == nil {
		t.Fatal("expected error for empty sheet name")
	}
}
