// Package metrics counts registry and ledger operations by outcome.
package metrics

import (
	"errors"
	"net/http"

	"famledger/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK               = "ok"
	OutcomeNotFound         = "not_found"
	OutcomePermissionDenied = "permission_denied"
	OutcomeValidationFailed = "validation_failed"
	OutcomeError            = "error"
)

type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
}

// NewRecorder builds a recorder on its own registry so tests and multiple
// servers in one process do not collide on the default one.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "famledger",
		Name:      "operations_total",
		Help:      "Registry and ledger operations by outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(ops)
	return &Recorder{registry: reg, operations: ops}
}

// Observe counts one call of op. A nil recorder is a no-op.
func (r *Recorder) Observe(op string, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, OutcomeOf(err)).Inc()
}

// OutcomeOf maps an operation error onto an outcome label.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, core.ErrPermissionDenied):
		return OutcomePermissionDenied
	case errors.Is(err, core.ErrValidationFailed):
		return OutcomeValidationFailed
	case errors.Is(err, core.ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}

// Handler exposes the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
