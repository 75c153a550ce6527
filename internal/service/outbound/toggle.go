package outbound

import "context"

type syncKey struct{}

// WithSync overrides the item sync toggle within the returned context's
// scope. Scopes nest: the outer value is restored simply by using the outer
// context again. The reconciler runs with sync disabled so the writes it
// makes do not echo back upstream.
func WithSync(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, syncKey{}, enabled)
}

// SyncEnabled reports the effective sync toggle: the innermost WithSync
// override, or def when no scope has set one.
func SyncEnabled(ctx context.Context, def bool) bool {
	if v, ok := ctx.Value(syncKey{}).(bool); ok {
		return v
	}
	return def
}
