package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// SeedBillingAccount creates a billing account with a channel-create
// permission allowing nobody. Returns a filled domain.BillingAccount.
func SeedBillingAccount(t *testing.T, pool *pgxpool.Pool) domain.BillingAccount {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	acct := domain.BillingAccount{
		ID:           domain.NewToken(),
		Description:  "Test billing account " + domain.NewToken(),
		LookupInstID: "UIS",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO billing_accounts (id, description, lookup_inst, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		acct.ID, acct.Description, acct.LookupInstID, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedBillingAccount insert billing_account: %v", err)
	}

	perm := domain.NewPermission()
	perm.AllowsCreateForAcctID = &acct.ID
	insertPermission(t, pool, perm)
	acct.ChannelCreatePermission = &perm

	return acct
}

// SeedChannel creates a channel under the given billing account with a blank
// edit permission. Returns a filled domain.Channel.
func SeedChannel(t *testing.T, pool *pgxpool.Pool, billingAccountID string) domain.Channel {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	ch := domain.Channel{
		ID:               domain.NewToken(),
		Title:            "Test channel " + domain.NewToken(),
		BillingAccountID: billingAccountID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO channels (id, title, description, billing_account_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.Title, ch.Description, ch.BillingAccountID, ch.CreatedAt, ch.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedChannel insert channel: %v", err)
	}

	perm := domain.NewPermission()
	perm.AllowsEditChannelID = &ch.ID
	insertPermission(t, pool, perm)
	ch.EditPermission = &perm

	return ch
}

// SeedMediaItem creates a media item in the given channel, published an hour
// ago, with a public view permission and a blank edit permission. Returns a
// filled domain.MediaItem.
func SeedMediaItem(t *testing.T, pool *pgxpool.Pool, channelID string) domain.MediaItem {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	published := now.Add(-time.Hour)
	item := domain.MediaItem{
		ID:          domain.NewToken(),
		ChannelID:   &channelID,
		Title:       "Test item " + domain.NewToken(),
		Type:        domain.MediaTypeVideo,
		PublishedAt: &published,
		Tags:        []string{"test"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO media_items (id, channel_id, title, description, duration, type, published_at, downloadable, language, copyright, tags, initially_fetched_from_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		item.ID, item.ChannelID, item.Title, item.Description, item.Duration, string(item.Type),
		item.PublishedAt, item.Downloadable, item.Language, item.Copyright, item.Tags,
		item.InitiallyFetchedFromURL, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedMediaItem insert media_item: %v", err)
	}

	view := domain.NewPermission()
	view.AllowsViewItemID = &item.ID
	view.IsPublic = true
	insertPermission(t, pool, view)
	item.ViewPermission = &view

	return item
}

// SeedPlaylist creates a playlist in the given channel containing the given
// item ids, with a blank view permission. Returns a filled domain.Playlist.
func SeedPlaylist(t *testing.T, pool *pgxpool.Pool, channelID string, itemIDs ...string) domain.Playlist {
	t.Helper()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	if itemIDs == nil {
		itemIDs = []string{}
	}
	pl := domain.Playlist{
		ID:           domain.NewToken(),
		ChannelID:    channelID,
		Title:        "Test playlist " + domain.NewToken(),
		MediaItemIDs: itemIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO playlists (id, channel_id, title, description, media_item_ids, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pl.ID, pl.ChannelID, pl.Title, pl.Description, pl.MediaItemIDs, pl.CreatedAt, pl.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedPlaylist insert playlist: %v", err)
	}

	perm := domain.NewPermission()
	perm.AllowsViewPlaylistID = &pl.ID
	insertPermission(t, pool, perm)
	pl.ViewPermission = &perm

	return pl
}

func insertPermission(t *testing.T, pool *pgxpool.Pool, p domain.Permission) {
	t.Helper()

	// Nil slices would insert NULL into NOT NULL array columns.
	if p.CRSIDs == nil {
		p.CRSIDs = []string{}
	}
	if p.LookupGroups == nil {
		p.LookupGroups = []string{}
	}
	if p.LookupInsts == nil {
		p.LookupInsts = []string{}
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO permissions (id, allows_view_item_id, allows_edit_channel_id, allows_view_playlist_id, allows_create_for_acct_id, crsids, lookup_groups, lookup_insts, is_public, is_signed_in)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.AllowsViewItemID, p.AllowsEditChannelID, p.AllowsViewPlaylistID, p.AllowsCreateForAcctID,
		p.CRSIDs, p.LookupGroups, p.LookupInsts, p.IsPublic, p.IsSignedIn,
	)
	if err != nil {
		t.Fatalf("testhelper: insert permission: %v", err)
	}
}
