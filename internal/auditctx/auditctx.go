package auditctx

import "context"

// Actor captures who initiated a request, for audit logging.
type Actor struct {
	Username  string
	IPAddress string
}

type actorContextKey struct{}

// WithActor injects actor metadata into the supplied context, returning a derived context that
// callers can pass down into service layers for audit logging.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		return context.WithValue(context.Background(), actorContextKey{}, actor)
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// FromContext extracts previously stored actor metadata from the context.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Detach returns a fresh background context carrying only the actor of ctx.
// Work that outlives the request uses it so request cancellation does not reach it.
func Detach(ctx context.Context) context.Context {
	actor, ok := FromContext(ctx)
	if !ok {
		return context.Background()
	}
	return WithActor(context.Background(), actor)
}
