// Package cdblink implements storage of the linkage between catalogue
// objects and their CDB resources.
//
// The Updated column of each link is the reconciler's synchronisation
// watermark: metadata is pushed down onto an object only when the cached
// resource's updated timestamp exceeds it.
package cdblink

import (
	"context"

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

type videoRow struct {
	Key     string  `db:"key"`
	ItemID  *string `db:"item_id"`
	Updated int64   `db:"updated"`
}

type channelRow struct {
	Key       string  `db:"key"`
	ChannelID *string `db:"channel_id"`
	Updated   int64   `db:"updated"`
}

// VideoLinks returns all video links keyed by CDB video key.
func (r *Repo) VideoLinks(ctx context.Context) (map[string]domain.VideoLink, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []videoRow
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT key, item_id, updated FROM video_links`)
	if err != nil {
		return nil, postgres.MapError(err, "video links", "")
	}

	links := make(map[string]domain.VideoLink, len(rows))
	for _, row := range rows {
		links[row.Key] = domain.VideoLink{Key: row.Key, ItemID: row.ItemID, Updated: row.Updated}
	}
	return links, nil
}

// VideoLinkForItem returns the video link of a media item, if any.
func (r *Repo) VideoLinkForItem(ctx context.Context, itemID string) (*domain.VideoLink, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row videoRow
	err := pgxscan.Get(ctx, q, &row,
		`SELECT key, item_id, updated FROM video_links WHERE item_id = $1`, itemID)
	if err != nil {
		return nil, postgres.MapError(err, "video link", itemID)
	}
	return &domain.VideoLink{Key: row.Key, ItemID: row.ItemID, Updated: row.Updated}, nil
}

// UpsertVideoLink creates or replaces a video link.
func (r *Repo) UpsertVideoLink(ctx context.Context, link domain.VideoLink) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO video_links (key, item_id, updated) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET item_id = EXCLUDED.item_id, updated = EXCLUDED.updated`,
		link.Key, link.ItemID, link.Updated)
	if err != nil {
		return postgres.MapError(err, "video link", link.Key)
	}
	return nil
}

// SetVideoWatermark records that the item's metadata has been synchronised
// up to the given CDB updated timestamp.
func (r *Repo) SetVideoWatermark(ctx context.Context, key string, updated int64) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`UPDATE video_links SET updated = $2 WHERE key = $1`, key, updated)
	if err != nil {
		return postgres.MapError(err, "video link", key)
	}
	return nil
}

// DeleteVideoLinks removes the video links with the given keys.
func (r *Repo) DeleteVideoLinks(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`DELETE FROM video_links WHERE key = ANY($1)`, keys)
	if err != nil {
		return 0, postgres.MapError(err, "video links", "")
	}
	return int(tag.RowsAffected()), nil
}

// ChannelLinks returns all channel links keyed by CDB channel key.
func (r *Repo) ChannelLinks(ctx context.Context) (map[string]domain.ChannelLink, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []channelRow
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT key, channel_id, updated FROM channel_links`)
	if err != nil {
		return nil, postgres.MapError(err, "channel links", "")
	}

	links := make(map[string]domain.ChannelLink, len(rows))
	for _, row := range rows {
		links[row.Key] = domain.ChannelLink{Key: row.Key, ChannelID: row.ChannelID, Updated: row.Updated}
	}
	return links, nil
}

// UpsertChannelLink creates or replaces a channel link.
func (r *Repo) UpsertChannelLink(ctx context.Context, link domain.ChannelLink) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO channel_links (key, channel_id, updated) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET channel_id = EXCLUDED.channel_id, updated = EXCLUDED.updated`,
		link.Key, link.ChannelID, link.Updated)
	if err != nil {
		return postgres.MapError(err, "channel link", link.Key)
	}
	return nil
}

// SetChannelWatermark records that the channel's metadata has been
// synchronised up to the given CDB updated timestamp.
func (r *Repo) SetChannelWatermark(ctx context.Context, key string, updated int64) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`UPDATE channel_links SET updated = $2 WHERE key = $1`, key, updated)
	if err != nil {
		return postgres.MapError(err, "channel link", key)
	}
	return nil
}

// DeleteChannelLinks removes the channel links with the given keys.
func (r *Repo) DeleteChannelLinks(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`DELETE FROM channel_links WHERE key = ANY($1)`, keys)
	if err != nil {
		return 0, postgres.MapError(err, "channel links", "")
	}
	return int(tag.RowsAffected()), nil
}
