package obscontext

import "context"

type requestIDKey struct{}

type actorKey struct{}

type actor struct {
	kind string
	id   string
}

// WithRequestID stores the request id for log enrichment.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id, empty when unset.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithActor records who is driving the request: an api key on the ingest
// surface or a caller user id on the admin surface.
func WithActor(ctx context.Context, kind, id string) context.Context {
	if kind == "" && id == "" {
		return ctx
	}
	return context.WithValue(ctx, actorKey{}, actor{kind: kind, id: id})
}

// ActorFromContext returns the actor kind and id, empty when unset.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if v, ok := ctx.Value(actorKey{}).(actor); ok {
		return v.kind, v.id
	}
	return "", ""
}
