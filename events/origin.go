package events

import (
	"context"

	"github.com/poiesic/entsync/core"
)

type originKey struct{}

// WithOrigin marks ctx as belonging to the guarded call identified by token.
// Indexing requests made with the returned context publish their completion
// event with Batch.Origin set to token.
func WithOrigin(ctx context.Context, token core.GuardToken) context.Context {
	return context.WithValue(ctx, originKey{}, token)
}

// OriginFrom returns the guard token stored in ctx, or zero.
func OriginFrom(ctx context.Context) core.GuardToken {
	token, _ := ctx.Value(originKey{}).(core.GuardToken)
	return token
}
