package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"famledger/internal/amqp"
	"famledger/internal/core"
	"famledger/internal/log"
	"famledger/internal/sheets"
)

// ExpenseSource reads the current state of an expense.
type ExpenseSource interface {
	GetFamilyExpense(ctx context.Context, id string) (core.FamilyExpense, error)
}

// MirrorWorker applies ledger events to an external expense mirror.
type MirrorWorker struct {
	source  ExpenseSource
	mirror  sheets.ExpenseMirror
	timeout time.Duration
}

// NewMirrorWorker creates a worker. A zero timeout leaves the mirror call
// bounded only by the delivery context.
func NewMirrorWorker(source ExpenseSource, mirror sheets.ExpenseMirror, timeout time.Duration) *MirrorWorker {
	return &MirrorWorker{source: source, mirror: mirror, timeout: timeout}
}

// HandleLedgerEvent processes a single ledger event from AMQP. Family events
// are acknowledged without action.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	switch ev.Type {
	case amqp.ExpenseCreated:
		return w.mirrorExpense(ctx, logger, ev.ID)
	case amqp.ExpenseDeleted:
		logger.InfoContext(ctx, "Removing mirrored expense",
			log.FieldOperation, log.OpMirror, log.FieldID, ev.ID, log.FieldFamilyID, ev.FamilyID)
		if err := w.mirror.RemoveExpense(ctx, ev.ID); err != nil {
			return fmt.Errorf("remove mirrored expense %s: %w", ev.ID, err)
		}
		return nil
	default:
		logger.DebugContext(ctx, "Ignoring ledger event", log.FieldEventType, ev.Type, log.FieldID, ev.ID)
		return nil
	}
}

func (w *MirrorWorker) mirrorExpense(ctx context.Context, logger *log.Logger, id string) error {
	logger.InfoContext(ctx, "Mirroring expense", log.FieldOperation, log.OpMirror, log.FieldID, id)

	e, err := w.source.GetFamilyExpense(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the event was consumed; the delete event follows.
		logger.InfoContext(ctx, "Expense no longer exists, skipping", log.FieldID, id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense %s: %w", id, err)
	}

	if err := w.mirror.UpsertExpense(ctx, e); err != nil {
		return fmt.Errorf("mirror expense %s: %w", id, err)
	}
	return nil
}
