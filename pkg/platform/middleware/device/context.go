package device

import "context"

type contextKeyDevice struct{}

// FromContext returns the device label set by Middleware, or "" when the
// request carried no User-Agent.
func FromContext(ctx context.Context) string {
	if label, ok := ctx.Value(contextKeyDevice{}).(string); ok {
		return label
	}
	return ""
}

// WithDevice injects a device label into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDevice(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, label)
}
