package ctxutil

import (
	"context"
	"testing"
)

func TestWithRunID_And_RunIDFromCtx(t *testing.T) {
	t.Parallel()

	ctx := WithRunID(context.Background(), "run-123")

	got := RunIDFromCtx(ctx)
	if got != "run-123" {
		t.Fatalf("expected run-123, got %s", got)
	}
}

func TestRunIDFromCtx_EmptyContext(t *testing.T) {
	t.Parallel()

	got := RunIDFromCtx(context.Background())
	if got != "" {
		t.Fatalf("expected empty string, got %s", got)
	}
}

func TestRunIDFromCtx_WrongType(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), ctxKey("run_id"), 12345)

	got := RunIDFromCtx(ctx)
	if got != "" {
		t.Fatalf("expected empty string, got %s", got)
	}
}
