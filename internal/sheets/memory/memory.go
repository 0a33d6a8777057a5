package memory

import (
	"context"
	"sync"

	"famledger/internal/core"
	ports "famledger/internal/sheets"
)

// Mirror keeps mirrored rows in process; used when no spreadsheet is
// configured and in tests.
type Mirror struct {
	mu   sync.Mutex
	rows map[string]core.FamilyExpense
}

var _ ports.ExpenseMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{rows: make(map[string]core.FamilyExpense)}
}

func (m *Mirror) UpsertExpense(_ context.Context, e core.FamilyExpense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[e.ID] = e.Clone()
	return nil
}

func (m *Mirror) RemoveExpense(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

// Row returns the mirrored copy of an expense.
func (m *Mirror) Row(id string) (core.FamilyExpense, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	return e, ok
}

func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
