package backend

import (
	"context"

	"famledger/internal/attachments"
	"famledger/internal/metrics"
	"famledger/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired services and the resources behind them
type BackendResult struct {
	Registry    *services.FamilyRegistry
	Ledger      *services.ExpenseLedger
	Attachments attachments.Store
	Metrics     *metrics.Recorder

	// Ready reports whether the underlying store answers
	Ready func(ctx context.Context) error
	// Cleanup releases the broker connection and the store, in that order
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	PostgresDSN  string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	EnforceOwnership   bool
	SnapshotFamilyName bool

	AttachmentsDriver      string
	AttachmentsS3Bucket    string
	AttachmentsS3Region    string
	AttachmentsS3Endpoint  string
	AttachmentsS3PathStyle bool
}

// BackendType represents the type of store behind the services
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
