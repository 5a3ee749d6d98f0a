package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
)

type actorKey struct{}

// WithActor records the authenticated caller on ctx.
func WithActor(ctx context.Context, actor pkgAuth.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller stored by Auth. ok is false on public
// routes.
func ActorFromContext(ctx context.Context) (pkgAuth.Actor, bool) {
	if ctx == nil {
		return pkgAuth.Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(pkgAuth.Actor)
	if !ok || actor.UserID == uuid.Nil {
		return pkgAuth.Actor{}, false
	}
	return actor, true
}

func UserIDFromContext(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok {
		return actor.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	actor, _ := ActorFromContext(ctx)
	return string(actor.Role)
}
