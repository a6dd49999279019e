package shared

import (
	"context"

	"github.com/google/uuid"
)

type storeContextKey struct{}

type actorContextKey struct{}

// ContextWithStore scopes the request to a store.
func ContextWithStore(ctx context.Context, storeID uuid.UUID) context.Context {
	return context.WithValue(ctx, storeContextKey{}, storeID)
}

// StoreFromContext extracts the store scope.
func StoreFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(storeContextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// ContextWithActor stores the operator identifier used for audit records.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the operator identifier or "".
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorContextKey{}).(string)
	return actor
}
