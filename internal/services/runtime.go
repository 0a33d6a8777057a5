package services

import (
	"context"
	"sync"
	"time"

	"famledger/internal/amqp"
	"famledger/internal/log"
	"famledger/internal/metrics"

	"github.com/google/uuid"
)

// EventPublisher receives a notification after every committed write.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev *amqp.LedgerEvent) error
}

// Runtime holds the collaborators shared by the registry and the ledger.
// Its mutex serialises every operation of both, so each call runs to
// completion before the next one starts.
type Runtime struct {
	mu sync.Mutex

	Now     func() time.Time
	NewID   func() string
	Events  EventPublisher
	Metrics *metrics.Recorder
}

// NewRuntime returns a runtime using the wall clock and random UUIDs.
func NewRuntime(events EventPublisher, rec *metrics.Recorder) *Runtime {
	return &Runtime{
		Now:     Now,
		NewID:   uuid.NewString,
		Events:  events,
		Metrics: rec,
	}
}

// Now is the default clock. Timestamps are UTC without a monotonic reading so
// a record read back from a JSON-backed store equals the one that was written.
func Now() time.Time {
	return time.Now().UTC().Round(0)
}

func (rt *Runtime) now() time.Time {
	if rt.Now == nil {
		return Now()
	}
	return rt.Now()
}

func (rt *Runtime) newID() string {
	if rt.NewID == nil {
		return uuid.NewString()
	}
	return rt.NewID()
}

// publish is best-effort: the write is already committed, so a failure is
// logged and never returned to the caller.
func (rt *Runtime) publish(ctx context.Context, t amqp.EventType, id, familyID string) {
	if rt.Events == nil {
		return
	}
	if err := rt.Events.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(t, id, familyID)); err != nil {
		logger(ctx, log.ComponentAMQP).ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, t, log.FieldID, id, log.FieldError, err)
	}
}

// logger returns the request-scoped logger, or the default one, tagged with
// component.
func logger(ctx context.Context, component string) *log.Logger {
	return log.FromContext(ctx).WithComponent(component)
}

func (rt *Runtime) observe(op string, err error) {
	rt.Metrics.Observe(op, err)
}
