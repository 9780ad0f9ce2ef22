package identity

import "context"

type viewContextKey struct{}

// NewContext returns a copy of ctx carrying v as the request identity.
func NewContext(ctx context.Context, v View) context.Context {
	return context.WithValue(ctx, viewContextKey{}, v)
}

// FromContext returns the request identity attached by NewContext.
func FromContext(ctx context.Context) (View, bool) {
	if ctx == nil {
		return View{}, false
	}
	v, ok := ctx.Value(viewContextKey{}).(View)
	return v, ok
}
