package auth

import "context"

// Actor is the authenticated caller of a request.
type Actor struct {
	ID       string
	CuID     string
	UserName string
}

type actorContextKey struct{}

// WithActor attaches an authenticated actor to ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the request's actor. ok is false for anonymous callers.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
