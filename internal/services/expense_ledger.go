package services

import (
	"context"
	"errors"
	"fmt"

	"famledger/internal/amqp"
	"famledger/internal/core"
	"famledger/internal/log"
	"famledger/internal/store"
)

type LedgerOptions struct {
	// SnapshotFamilyName copies the parent's name onto each new expense.
	// The copy is never refreshed when the family is renamed.
	SnapshotFamilyName bool
}

// ExpenseLedger stores FamilyExpense records keyed by id. It reads the
// registry only to check the parent family exists on create.
type ExpenseLedger struct {
	rt       *Runtime
	registry *FamilyRegistry
	expenses store.Map[core.FamilyExpense]
	opts     LedgerOptions
}

func NewExpenseLedger(rt *Runtime, registry *FamilyRegistry, expenses store.Map[core.FamilyExpense], opts LedgerOptions) *ExpenseLedger {
	return &ExpenseLedger{rt: rt, registry: registry, expenses: expenses, opts: opts}
}

// ListFamilyExpenses returns the expenses of familyID in store key order. It
// returns an empty slice when the family has none or does not exist.
func (l *ExpenseLedger) ListFamilyExpenses(ctx context.Context, familyID string) (out []core.FamilyExpense, err error) {
	l.rt.mu.Lock()
	defer l.rt.mu.Unlock()
	defer func() { l.rt.observe("getFamilyExpenses", err) }()

	return l.listLocked(ctx, familyID)
}

func (l *ExpenseLedger) listLocked(ctx context.Context, familyID string) ([]core.FamilyExpense, error) {
	all, err := l.expenses.Values(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses of family %s: %w", familyID, err)
	}
	out := make([]core.FamilyExpense, 0)
	for _, e := range all {
		if e.FamilyID == familyID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// SummarizeFamilyExpenses totals the expenses of familyID.
func (l *ExpenseLedger) SummarizeFamilyExpenses(ctx context.Context, familyID string) (s core.ExpenseSummary, err error) {
	l.rt.mu.Lock()
	defer l.rt.mu.Unlock()
	defer func() { l.rt.observe("summarizeFamilyExpenses", err) }()

	exps, err := l.listLocked(ctx, familyID)
	if err != nil {
		return core.ExpenseSummary{}, err
	}
	return core.Summarize(familyID, exps), nil
}

// GetFamilyExpense returns one expense by id.
func (l *ExpenseLedger) GetFamilyExpense(ctx context.Context, id string) (e core.FamilyExpense, err error) {
	l.rt.mu.Lock()
	defer l.rt.mu.Unlock()
	defer func() { l.rt.observe("getFamilyExpense", err) }()

	e, ok, err := l.expenses.Get(ctx, id)
	if err != nil {
		return core.FamilyExpense{}, fmt.Errorf("get family expense %s: %w", id, err)
	}
	if !ok {
		return core.FamilyExpense{}, fmt.Errorf("family expense with id=%s: %w", id, core.ErrNotFound)
	}
	return e.Clone(), nil
}

// AddFamilyExpense records an expense against an existing family. A missing
// family yields core.ErrValidationFailed and nothing is stored.
func (l *ExpenseLedger) AddFamilyExpense(ctx context.Context, payload core.FamilyExpensePayload) (e core.FamilyExpense, err error) {
	l.rt.mu.Lock()
	defer l.rt.mu.Unlock()
	defer func() { l.rt.observe("addFamilyExpense", err) }()

	family, err := l.registry.lookup(ctx, payload.FamilyID)
	if errors.Is(err, core.ErrNotFound) {
		return core.FamilyExpense{}, fmt.Errorf("add family expense: %w: %w", core.ErrValidationFailed, err)
	}
	if err != nil {
		return core.FamilyExpense{}, fmt.Errorf("add family expense: %w", err)
	}

	e = core.FamilyExpense{
		ID:            l.rt.newID(),
		FamilyID:      payload.FamilyID,
		Amount:        payload.Amount,
		AttachmentURL: payload.AttachmentURL,
		Labels:        append([]string{}, payload.Labels...),
		CreatedAt:     l.rt.now(),
	}
	if l.opts.SnapshotFamilyName {
		e.FamilyName = family.Name
	}
	if err := l.expenses.Insert(ctx, e.ID, e); err != nil {
		return core.FamilyExpense{}, fmt.Errorf("add family expense %s: %w", e.ID, err)
	}

	logger(ctx, log.ComponentLedger).InfoContext(ctx, "Family expense created",
		log.FieldID, e.ID, log.FieldFamilyID, e.FamilyID, "amount", e.Amount)
	l.rt.publish(ctx, amqp.ExpenseCreated, e.ID, e.FamilyID)
	return e.Clone(), nil
}

// DeleteFamilyExpense removes the expense and returns it.
func (l *ExpenseLedger) DeleteFamilyExpense(ctx context.Context, id string) (e core.FamilyExpense, err error) {
	l.rt.mu.Lock()
	defer l.rt.mu.Unlock()
	defer func() { l.rt.observe("deleteFamilyExpense", err) }()

	e, ok, err := l.expenses.Remove(ctx, id)
	if err != nil {
		return core.FamilyExpense{}, fmt.Errorf("delete family expense %s: %w", id, err)
	}
	if !ok {
		return core.FamilyExpense{}, fmt.Errorf("delete family expense: family expense with id=%s: %w", id, core.ErrNotFound)
	}

	logger(ctx, log.ComponentLedger).InfoContext(ctx, "Family expense deleted",
		log.FieldID, id, log.FieldFamilyID, e.FamilyID)
	l.rt.publish(ctx, amqp.ExpenseDeleted, id, e.FamilyID)
	return e, nil
}
