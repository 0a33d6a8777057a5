// Package store defines the ordered key-value map the registry and the ledger
// persist their records in.
package store

import "context"

// Collection names shared by every backend.
const (
	CollectionFamilies = "families"
	CollectionExpenses = "family_expenses"
)

// Map is an ordered key-value map keyed by string. Values iterates in
// ascending key order. Remove returns the value that was stored, if any.
type Map[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Insert(ctx context.Context, key string, value V) error
	Remove(ctx context.Context, key string) (V, bool, error)
	Values(ctx context.Context) ([]V, error)
}
