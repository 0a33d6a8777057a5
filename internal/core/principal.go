package core

import (
	"context"
	"strings"
)

// Principal identifies the caller of an operation.
type Principal string

// Anonymous is used when the edge supplied no identity.
const Anonymous Principal = "anonymous"

type principalKey struct{}

// WithPrincipal returns a context carrying the caller identity.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller identity, or Anonymous.
func PrincipalFromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok && strings.TrimSpace(string(p)) != "" {
		return p
	}
	return Anonymous
}
