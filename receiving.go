package usersync

import "context"

type receivingKey struct{}

// WithReceiving marks ctx as carrying an inbound sync request. Writes made
// with the returned context are not published again.
func WithReceiving(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, receivingKey{}, true)
}

// IsReceiving reports whether ctx belongs to an inbound sync request
func IsReceiving(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, ok := ctx.Value(receivingKey{}).(bool)
	return ok && v
}

// Receiving runs fn with a receiving context. The flag only lives on the
// derived context, so it is gone once fn returns however it exits.
func Receiving(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(WithReceiving(ctx))
}
