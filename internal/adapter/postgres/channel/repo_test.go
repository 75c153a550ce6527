package channel_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/channel"
	"github.com/uisautomation/mediaplatform/internal/adapter/postgres/testhelper"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

func newRepo(t *testing.T) (*channel.Repo, *pgxpool.Pool) {
	t.Helper()
	pool := testhelper.SetupTestDB(t)
	return channel.New(pool), pool
}

func TestRepo_Create_AndGetByID(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	acct := testhelper.SeedBillingAccount(t, pool)
	ch := &domain.Channel{
		ID:               domain.NewToken(),
		Title:            "Engineering lectures",
		Description:      "Recorded lectures of the department.",
		BillingAccountID: acct.ID,
	}
	if err := repo.Create(ctx, ch); err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	got, err := repo.GetByID(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetByID: unexpected error: %v", err)
	}
	if got.Title != ch.Title {
		t.Errorf("Title mismatch: got %q, want %q", got.Title, ch.Title)
	}
	if got.BillingAccountID != acct.ID {
		t.Errorf("BillingAccountID mismatch: got %s, want %s", got.BillingAccountID, acct.ID)
	}
	if got.DeletedAt != nil {
		t.Error("expected DeletedAt to be nil")
	}
}

func TestRepo_GetByID_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	_, err := repo.GetByID(context.Background(), domain.NewToken())
	assertIsDomainError(t, err, domain.ErrNotFound)
}

func TestRepo_Update(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	acct := testhelper.SeedBillingAccount(t, pool)
	ch := testhelper.SeedChannel(t, pool, acct.ID)

	ch.Title = "Renamed"
	ch.Description = "New description."
	if err := repo.Update(ctx, &ch); err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}

	got, err := repo.GetByID(ctx, ch.ID)
	if err != nil {
		t.Fatalf("GetByID: unexpected error: %v", err)
	}
	if got.Title != "Renamed" || got.Description != "New description." {
		t.Errorf("update not applied: got %q / %q", got.Title, got.Description)
	}
	if !got.UpdatedAt.After(ch.CreatedAt) {
		t.Error("expected UpdatedAt to be bumped")
	}
}

func TestRepo_Update_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	err := repo.Update(context.Background(), &domain.Channel{ID: domain.NewToken(), Title: "ghost"})
	assertIsDomainError(t, err, domain.ErrNotFound)
}

func TestRepo_Delete_HidesChannel(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	acct := testhelper.SeedBillingAccount(t, pool)
	ch := testhelper.SeedChannel(t, pool, acct.ID)

	if err := repo.Delete(ctx, ch.ID); err != nil {
		t.Fatalf("Delete: unexpected error: %v", err)
	}

	_, err := repo.GetByID(ctx, ch.ID)
	assertIsDomainError(t, err, domain.ErrNotFound)

	err = repo.Delete(ctx, ch.ID)
	assertIsDomainError(t, err, domain.ErrNotFound)
}

func TestRepo_List_SkipsDeleted(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	acct := testhelper.SeedBillingAccount(t, pool)
	live := testhelper.SeedChannel(t, pool, acct.ID)
	gone := testhelper.SeedChannel(t, pool, acct.ID)
	if err := repo.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("Delete: unexpected error: %v", err)
	}

	channels, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}

	foundLive := false
	for _, c := range channels {
		if c.ID == gone.ID {
			t.Errorf("expected deleted channel %s to be hidden", gone.ID)
		}
		if c.ID == live.ID {
			foundLive = true
		}
	}
	if !foundLive {
		t.Errorf("expected channel %s in listing", live.ID)
	}
}

func TestRepo_List_SearchMatchesTitleAndDescription(t *testing.T) {
	t.Parallel()
	repo, pool := newRepo(t)
	ctx := context.Background()

	acct := testhelper.SeedBillingAccount(t, pool)
	// Unique term so concurrent tests cannot pollute the result set.
	term := "xylography"

	byTitle := &domain.Channel{
		ID:               domain.NewToken(),
		Title:            "Introduction to " + term,
		BillingAccountID: acct.ID,
	}
	byDescription := &domain.Channel{
		ID:               domain.NewToken(),
		Title:            "Printmaking",
		Description:      "Covers " + term + " among other techniques.",
		BillingAccountID: acct.ID,
	}
	other := &domain.Channel{
		ID:               domain.NewToken(),
		Title:            "Thermodynamics",
		BillingAccountID: acct.ID,
	}
	for _, ch := range []*domain.Channel{byTitle, byDescription, other} {
		if err := repo.Create(ctx, ch); err != nil {
			t.Fatalf("Create: unexpected error: %v", err)
		}
	}

	channels, err := repo.List(ctx, term)
	if err != nil {
		t.Fatalf("List: unexpected error: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("expected 2 matching channels, got %d", len(channels))
	}
	for _, c := range channels {
		if c.ID == other.ID {
			t.Errorf("channel %s should not match %q", c.ID, term)
		}
	}
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
