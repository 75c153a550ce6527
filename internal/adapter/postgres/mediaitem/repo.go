// Package mediaitem implements the MediaItem repository using PostgreSQL.
//
// Single-object access is plain SQL; listings are built dynamically with
// squirrel so that permission checks, search, ordering and pagination all
// run inside the database (see list.go).
package mediaitem

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
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

type row struct {
	ID                      string     `db:"id"`
	ChannelID               *string    `db:"channel_id"`
	Title                   string     `db:"title"`
	Description             string     `db:"description"`
	Duration                float64    `db:"duration"`
	Type                    string     `db:"type"`
	PublishedAt             *time.Time `db:"published_at"`
	Downloadable            bool       `db:"downloadable"`
	Language                string     `db:"language"`
	Copyright               string     `db:"copyright"`
	Tags                    []string   `db:"tags"`
	InitiallyFetchedFromURL string     `db:"initially_fetched_from_url"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
	DeletedAt               *time.Time `db:"deleted_at"`
}

func (r row) toDomain() domain.MediaItem {
	return domain.MediaItem{
		ID:                      r.ID,
		ChannelID:               r.ChannelID,
		Title:                   r.Title,
		Description:             r.Description,
		Duration:                r.Duration,
		Type:                    domain.MediaType(r.Type),
		PublishedAt:             r.PublishedAt,
		Downloadable:            r.Downloadable,
		Language:                r.Language,
		Copyright:               r.Copyright,
		Tags:                    r.Tags,
		InitiallyFetchedFromURL: r.InitiallyFetchedFromURL,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
		DeletedAt:               r.DeletedAt,
	}
}

const selectColumns = `
	id, channel_id, title, description, duration, type, published_at,
	downloadable, language, copyright, tags, initially_fetched_from_url,
	created_at, updated_at, deleted_at`

// GetByID returns a media item by id. Soft-deleted items are not found.
func (r *Repo) GetByID(ctx context.Context, id string) (*domain.MediaItem, error) {
	return r.get(ctx, id, `deleted_at IS NULL AND id = $1`)
}

// GetAnyByID returns a media item by id including soft-deleted ones. The
// reconciler uses it so that a deletion upstream is not re-discovered as a
// new item.
func (r *Repo) GetAnyByID(ctx context.Context, id string) (*domain.MediaItem, error) {
	return r.get(ctx, id, `id = $1`)
}

func (r *Repo) get(ctx context.Context, id, where string) (*domain.MediaItem, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row row
	err := pgxscan.Get(ctx, q, &row,
		`SELECT`+selectColumns+` FROM media_items WHERE `+where, id)
	if err != nil {
		return nil, postgres.MapError(err, "media item", id)
	}

	item := row.toDomain()
	return &item, nil
}

// Create persists a new media item.
func (r *Repo) Create(ctx context.Context, item *domain.MediaItem) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx, insertSQL, insertArgs(item)...)
	if err != nil {
		return postgres.MapError(err, "media item", item.ID)
	}
	return nil
}

// CreateBatch persists many media items in a single round trip. Used by
// ingest paths which discover items in bulk.
func (r *Repo) CreateBatch(ctx context.Context, items []*domain.MediaItem) error {
	if len(items) == 0 {
		return nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(insertSQL, insertArgs(item)...)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	for _, item := range items {
		if _, err := results.Exec(); err != nil {
			return postgres.MapError(err, "media item", item.ID)
		}
	}
	return nil
}

const insertSQL = `
	INSERT INTO media_items (id, channel_id, title, description, duration, type, published_at, downloadable, language, copyright, tags, initially_fetched_from_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func insertArgs(item *domain.MediaItem) []any {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{
		item.ID, item.ChannelID, item.Title, item.Description, item.Duration,
		string(item.Type), item.PublishedAt, item.Downloadable, item.Language,
		item.Copyright, tags, item.InitiallyFetchedFromURL,
	}
}

// Update replaces a media item's mutable fields and bumps updated_at.
func (r *Repo) Update(ctx context.Context, item *domain.MediaItem) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}

	tag, err := q.Exec(ctx,
		`UPDATE media_items
		 SET channel_id = $2, title = $3, description = $4, duration = $5,
		     type = $6, published_at = $7, downloadable = $8, language = $9,
		     copyright = $10, tags = $11, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		item.ID, item.ChannelID, item.Title, item.Description, item.Duration,
		string(item.Type), item.PublishedAt, item.Downloadable, item.Language,
		item.Copyright, tags)
	if err != nil {
		return postgres.MapError(err, "media item", item.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("media item %s: %w", item.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete soft-deletes a media item.
func (r *Repo) Delete(ctx context.Context, id string) error {
	n, err := r.DeleteBatch(ctx, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("media item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Restore clears the deletion mark of the given media items. Used when the
// backing delivery resource reappears after a transient cache drop.
func (r *Repo) Restore(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE media_items SET deleted_at = NULL, updated_at = now()
		 WHERE id = ANY($1) AND deleted_at IS NOT NULL`, ids)
	if err != nil {
		return 0, postgres.MapError(err, "media items", "")
	}
	return int(tag.RowsAffected()), nil
}

// SetChannel moves the given items into a channel, or out of any channel
// when channelID is nil. Deleted items are left untouched.
func (r *Repo) SetChannel(ctx context.Context, ids []string, channelID *string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE media_items SET channel_id = $2, updated_at = now()
		 WHERE id = ANY($1) AND deleted_at IS NULL
		   AND channel_id IS DISTINCT FROM $2`, ids, channelID)
	if err != nil {
		return 0, postgres.MapError(err, "media items", "")
	}
	return int(tag.RowsAffected()), nil
}

// IDsInChannels returns the ids of live items belonging to any of the given
// channels.
func (r *Repo) IDsInChannels(ctx context.Context, channelIDs []string) ([]string, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	var ids []string
	err := pgxscan.Select(ctx, q, &ids,
		`SELECT id FROM media_items WHERE channel_id = ANY($1) AND deleted_at IS NULL`, channelIDs)
	if err != nil {
		return nil, postgres.MapError(err, "media items", "")
	}
	return ids, nil
}

// DeleteBatch soft-deletes the given media items and returns how many rows
// changed. Already-deleted items are left untouched.
func (r *Repo) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE media_items SET deleted_at = now(), updated_at = now()
		 WHERE id = ANY($1) AND deleted_at IS NULL`, ids)
	if err != nil {
		return 0, postgres.MapError(err, "media items", "")
	}
	return int(tag.RowsAffected()), nil
}
