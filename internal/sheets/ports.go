package sheets

import (
	"context"

	"famledger/internal/core"
)

// ExpenseMirror keeps a copy of the ledger in an external sheet. Both
// operations are idempotent so redelivered events are harmless.
type ExpenseMirror interface {
	UpsertExpense(ctx context.Context, e core.FamilyExpense) error
	RemoveExpense(ctx context.Context, id string) error
}
