package protocol

import "context"

// metaKey is the context key for transport metadata.
type metaKey struct{}

// Meta holds transport-level metadata associated with an inbound message,
// such as the polling session id or socket remote address. It rides the
// context so middleware and handlers can read it without depending on a
// concrete transport.
type Meta map[string]string

// ContextWithMeta returns a new context with the transport metadata attached.
func ContextWithMeta(ctx context.Context, meta Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// MetaFromContext returns the transport metadata from the context, or nil
// if none is present.
func MetaFromContext(ctx context.Context) Meta {
	if meta, ok := ctx.Value(metaKey{}).(Meta); ok {
		return meta
	}
	return nil
}

// MetaValue returns a single metadata value, or the empty string when the
// key is absent.
func MetaValue(ctx context.Context, key string) string {
	return MetaFromContext(ctx)[key]
}
