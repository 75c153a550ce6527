// Package ctxutil carries per-run values through context. Every log line
// emitted under a tagged context carries the run id, so the interleaved
// output of concurrent background runs can be pulled apart.
package ctxutil

import "context"

type ctxKey string

const runIDKey ctxKey = "run_id"

// WithRunID tags the context with a run id.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromCtx extracts the run id from the context.
// Returns an empty string if absent.
func RunIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey).(string)
	return id
}
