// Package legacy implements storage of links between catalogue objects and
// records on the legacy media system. An item with a legacy link is
// edit-locked in the catalogue.
package legacy

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/uisautomation/mediaplatform/internal/adapter/postgres"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

type Repo struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type itemRow struct {
	ID            int64      `db:"id"`
	ItemID        *string    `db:"item_id"`
	LastUpdatedAt *time.Time `db:"last_updated_at"`
}

type collectionRow struct {
	ID            int64      `db:"id"`
	ChannelID     *string    `db:"channel_id"`
	PlaylistID    *string    `db:"playlist_id"`
	LastUpdatedAt *time.Time `db:"last_updated_at"`
}

// ItemIsLinked reports whether a media item has a legacy link.
func (r *Repo) ItemIsLinked(ctx context.Context, itemID string) (bool, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var linked bool
	err := pgxscan.Get(ctx, q, &linked,
		`SELECT EXISTS (SELECT 1 FROM legacy_items WHERE item_id = $1)`, itemID)
	if err != nil {
		return false, postgres.MapError(err, "legacy item", itemID)
	}
	return linked, nil
}

// ChannelIsLinked reports whether a channel has a legacy collection link.
func (r *Repo) ChannelIsLinked(ctx context.Context, channelID string) (bool, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var linked bool
	err := pgxscan.Get(ctx, q, &linked,
		`SELECT EXISTS (SELECT 1 FROM legacy_collections WHERE channel_id = $1)`, channelID)
	if err != nil {
		return false, postgres.MapError(err, "legacy collection", channelID)
	}
	return linked, nil
}

// GetItemByLegacyID returns the legacy item link with the given legacy id.
func (r *Repo) GetItemByLegacyID(ctx context.Context, legacyID int64) (*domain.LegacyItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row itemRow
	err := pgxscan.Get(ctx, q, &row,
		`SELECT id, item_id, last_updated_at FROM legacy_items WHERE id = $1`, legacyID)
	if err != nil {
		return nil, postgres.MapError(err, "legacy item", "")
	}
	return &domain.LegacyItem{ID: row.ID, ItemID: row.ItemID, LastUpdatedAt: row.LastUpdatedAt}, nil
}

// UpsertItem creates or replaces a legacy item link.
func (r *Repo) UpsertItem(ctx context.Context, li domain.LegacyItem) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO legacy_items (id, item_id, last_updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET item_id = EXCLUDED.item_id, last_updated_at = EXCLUDED.last_updated_at`,
		li.ID, li.ItemID, li.LastUpdatedAt)
	if err != nil {
		return postgres.MapError(err, "legacy item", "")
	}
	return nil
}

// DeleteItemsForItems removes the legacy links of the given media items.
// Called before item deletion so foreign keys never dangle.
func (r *Repo) DeleteItemsForItems(ctx context.Context, itemIDs []string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`DELETE FROM legacy_items WHERE item_id = ANY($1)`, itemIDs)
	if err != nil {
		return 0, postgres.MapError(err, "legacy items", "")
	}
	return int(tag.RowsAffected()), nil
}

// GetCollectionByLegacyID returns the legacy collection link with the given
// legacy id.
func (r *Repo) GetCollectionByLegacyID(ctx context.Context, legacyID int64) (*domain.LegacyCollection, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row collectionRow
	err := pgxscan.Get(ctx, q, &row,
		`SELECT id, channel_id, playlist_id, last_updated_at FROM legacy_collections WHERE id = $1`, legacyID)
	if err != nil {
		return nil, postgres.MapError(err, "legacy collection", "")
	}
	return &domain.LegacyCollection{
		ID: row.ID, ChannelID: row.ChannelID, PlaylistID: row.PlaylistID, LastUpdatedAt: row.LastUpdatedAt,
	}, nil
}

// UpsertCollection creates or replaces a legacy collection link.
func (r *Repo) UpsertCollection(ctx context.Context, lc domain.LegacyCollection) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO legacy_collections (id, channel_id, playlist_id, last_updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET channel_id = EXCLUDED.channel_id,
		     playlist_id = EXCLUDED.playlist_id, last_updated_at = EXCLUDED.last_updated_at`,
		lc.ID, lc.ChannelID, lc.PlaylistID, lc.LastUpdatedAt)
	if err != nil {
		return postgres.MapError(err, "legacy collection", "")
	}
	return nil
}

// CollectionsForChannels returns the legacy collection links of the given
// channels, shadow playlist refs included.
func (r *Repo) CollectionsForChannels(ctx context.Context, channelIDs []string) ([]domain.LegacyCollection, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []collectionRow
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT id, channel_id, playlist_id, last_updated_at FROM legacy_collections
		 WHERE channel_id = ANY($1)`, channelIDs)
	if err != nil {
		return nil, postgres.MapError(err, "legacy collections", "")
	}

	out := make([]domain.LegacyCollection, len(rows))
	for i, row := range rows {
		out[i] = domain.LegacyCollection{
			ID: row.ID, ChannelID: row.ChannelID, PlaylistID: row.PlaylistID, LastUpdatedAt: row.LastUpdatedAt,
		}
	}
	return out, nil
}

// DeleteCollectionsForChannels removes the legacy links of the given
// channels.
func (r *Repo) DeleteCollectionsForChannels(ctx context.Context, channelIDs []string) (int, error) {
	if len(channelIDs) == 0 {
		return 0, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`DELETE FROM legacy_collections WHERE channel_id = ANY($1)`, channelIDs)
	if err != nil {
		return 0, postgres.MapError(err, "legacy collections", "")
	}
	return int(tag.RowsAffected()), nil
}
