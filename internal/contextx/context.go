package contextx

import "context"

// Key is a private type to avoid collisions in request context keys.
type Key string

// CorrelationIDKey carries the identifier shared by every notification
// published during one scan or one direct trigger.
const CorrelationIDKey Key = "correlationID"

// WithCorrelationID returns a copy of ctx carrying id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(CorrelationIDKey).(string)
	return id
}
