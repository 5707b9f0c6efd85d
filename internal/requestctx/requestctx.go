// Package requestctx carries per-request metadata through a context.
package requestctx

import "context"

type ctxKey struct{}

// Meta identifies the request a unit of work belongs to.
type Meta struct {
	RequestID string
	ClientIP  string
}

func WithMeta(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, ctxKey{}, meta)
}

func FromContext(ctx context.Context) Meta {
	meta, _ := ctx.Value(ctxKey{}).(Meta)
	return meta
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	meta := FromContext(ctx)
	meta.RequestID = requestID
	return WithMeta(ctx, meta)
}

func GetRequestID(ctx context.Context) string {
	return FromContext(ctx).RequestID
}
