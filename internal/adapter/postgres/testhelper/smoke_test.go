package testhelper

import (
	"context"
	"testing"
)

func TestSetupTestDB_Smoke(t *testing.T) {
	pool := SetupTestDB(t)

	acct := SeedBillingAccount(t, pool)
	ch := SeedChannel(t, pool, acct.ID)
	item := SeedMediaItem(t, pool, ch.ID)

	// Verify the item exists in the DB via SELECT.
	var title string
	err := pool.QueryRow(
		context.Background(),
		`SELECT title FROM media_items WHERE id = $1`,
		item.ID,
	).Scan(&title)
	if err != nil {
		t.Fatalf("expected media item in DB, got error: %v", err)
	}

	if title != item.Title {
		t.Fatalf("expected title %q, got %q", item.Title, title)
	}
}
