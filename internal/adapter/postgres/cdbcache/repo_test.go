package cdbcache_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/cdbcache"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/testhelper"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// The soft-delete sweep touches every live row of a type, so these tests
// share one cache state and run sequentially.

func TestRepo_CacheLifecycle(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := cdbcache.New(pool)
	ctx := context.Background()

	keyA := "video-" + domain.NewToken()
	keyB := "video-" + domain.NewToken()

	if err := repo.Upsert(ctx, domain.CacheResourceVideo, keyA, json.RawMessage(`{"title":"a"}`)); err != nil {
		t.Fatalf("Upsert: unexpected error: %v", err)
	}
	if err := repo.UpsertBatch(ctx, domain.CacheResourceVideo, map[string]json.RawMessage{
		keyB: json.RawMessage(`{"title":"b"}`),
	}); err != nil {
		t.Fatalf("UpsertBatch: unexpected error: %v", err)
	}

	got, err := repo.Get(ctx, domain.CacheResourceVideo, keyA)
	if err != nil {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	var data map[string]string
	if err := json.Unmarshal(got.Data, &data); err != nil {
		t.Fatalf("unmarshal cached data: %v", err)
	}
	if data["title"] != "a" {
		t.Errorf("cached document mismatch: got %v", data)
	}

	// A sweep which saw only keyA marks keyB as deleted.
	n, err := repo.SoftDeleteUnseen(ctx, domain.CacheResourceVideo, []string{keyA})
	if err != nil {
		t.Fatalf("SoftDeleteUnseen: unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 soft-deleted resource, got %d", n)
	}

	_, err = repo.Get(ctx, domain.CacheResourceVideo, keyB)
	assertIsDomainError(t, err, domain.ErrNotFound)

	deleted, err := repo.DeletedKeys(ctx, domain.CacheResourceVideo)
	if err != nil {
		t.Fatalf("DeletedKeys: unexpected error: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != keyB {
		t.Errorf("expected deleted keys [%s], got %v", keyB, deleted)
	}

	live, err := repo.ListLive(ctx, domain.CacheResourceVideo)
	if err != nil {
		t.Fatalf("ListLive: unexpected error: %v", err)
	}
	if len(live) != 1 || live[0].Key != keyA {
		t.Errorf("expected live keys [%s], got %d resources", keyA, len(live))
	}

	// Re-upserting a deleted resource revives it.
	if err := repo.Upsert(ctx, domain.CacheResourceVideo, keyB, json.RawMessage(`{"title":"b2"}`)); err != nil {
		t.Fatalf("Upsert(revive): unexpected error: %v", err)
	}
	got, err = repo.Get(ctx, domain.CacheResourceVideo, keyB)
	if err != nil {
		t.Fatalf("Get after revive: unexpected error: %v", err)
	}
	if got.DeletedAt != nil {
		t.Error("expected revived resource to be live")
	}
	if err := json.Unmarshal(got.Data, &data); err != nil {
		t.Fatalf("unmarshal revived data: %v", err)
	}
	if data["title"] != "b2" {
		t.Errorf("expected revived document to carry new data, got %v", data)
	}
}

func TestRepo_TypesAreIndependent(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := cdbcache.New(pool)
	ctx := context.Background()

	key := domain.NewToken()
	if err := repo.Upsert(ctx, domain.CacheResourceVideo, key, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Upsert(video): unexpected error: %v", err)
	}
	if err := repo.Upsert(ctx, domain.CacheResourceChannel, key, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Upsert(channel): unexpected error: %v", err)
	}

	// Deleting every channel resource leaves the video untouched.
	if _, err := repo.SoftDeleteUnseen(ctx, domain.CacheResourceChannel, nil); err != nil {
		t.Fatalf("SoftDeleteUnseen: unexpected error: %v", err)
	}

	if _, err := repo.Get(ctx, domain.CacheResourceVideo, key); err != nil {
		t.Errorf("Get(video): unexpected error: %v", err)
	}
	_, err := repo.Get(ctx, domain.CacheResourceChannel, key)
	assertIsDomainError(t, err, domain.ErrNotFound)
}

func assertIsDomainError(t *testing.T, err error, target error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error wrapping %v, got nil", target)
	}
	if !errors.Is(err, target) {
		t.Fatalf("expected error wrapping %v, got: %v", target, err)
	}
}
