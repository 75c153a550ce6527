// Package playlist implements the Playlist repository using PostgreSQL.
package playlist

import (
	"context"
	"fmt"
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

type row struct {
	ID           string     `db:"id"`
	ChannelID    string     `db:"channel_id"`
	Title        string     `db:"title"`
	Description  string     `db:"description"`
	MediaItemIDs []string   `db:"media_item_ids"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (r row) toDomain() domain.Playlist {
	return domain.Playlist{
		ID:           r.ID,
		ChannelID:    r.ChannelID,
		Title:        r.Title,
		Description:  r.Description,
		MediaItemIDs: r.MediaItemIDs,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		DeletedAt:    r.DeletedAt,
	}
}

const selectColumns = `
	id, channel_id, title, description, media_item_ids, created_at, updated_at, deleted_at`

// GetByID returns a playlist by id. Soft-deleted playlists are not found.
func (r *Repo) GetByID(ctx context.Context, id string) (*domain.Playlist, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row row
	err := pgxscan.Get(ctx, q, &row,
		`SELECT`+selectColumns+` FROM playlists WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, postgres.MapError(err, "playlist", id)
	}

	pl := row.toDomain()
	return &pl, nil
}

// ListByChannel returns the live playlists of a channel, newest first. A
// non-empty search restricts the result to playlists whose title or
// description matches the query.
func (r *Repo) ListByChannel(ctx context.Context, channelID, search string) ([]domain.Playlist, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []row
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT`+selectColumns+` FROM playlists
		 WHERE channel_id = $1 AND deleted_at IS NULL
		   AND ($2 = '' OR fts @@ plainto_tsquery('english', $2))
		 ORDER BY created_at DESC, id`, channelID, search)
	if err != nil {
		return nil, postgres.MapError(err, "playlists", channelID)
	}

	playlists := make([]domain.Playlist, len(rows))
	for i, row := range rows {
		playlists[i] = row.toDomain()
	}
	return playlists, nil
}

// Create persists a new playlist.
func (r *Repo) Create(ctx context.Context, pl *domain.Playlist) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO playlists (id, channel_id, title, description, media_item_ids)
		 VALUES ($1, $2, $3, $4, $5)`,
		pl.ID, pl.ChannelID, pl.Title, pl.Description, notNil(pl.MediaItemIDs))
	if err != nil {
		return postgres.MapError(err, "playlist", pl.ID)
	}
	return nil
}

// Update replaces a playlist's mutable fields and bumps updated_at.
func (r *Repo) Update(ctx context.Context, pl *domain.Playlist) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE playlists
		 SET title = $2, description = $3, media_item_ids = $4, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		pl.ID, pl.Title, pl.Description, notNil(pl.MediaItemIDs))
	if err != nil {
		return postgres.MapError(err, "playlist", pl.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("playlist %s: %w", pl.ID, domain.ErrNotFound)
	}
	return nil
}

// AppendItem appends a media item id to a playlist if not already present.
func (r *Repo) AppendItem(ctx context.Context, id, itemID string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE playlists
		 SET media_item_ids = media_item_ids || $2, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL AND NOT media_item_ids @> ARRAY[$2]::text[]`,
		id, itemID)
	if err != nil {
		return postgres.MapError(err, "playlist", id)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or the item is already present. Distinguish so
		// callers can treat the latter as a no-op.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

// Delete soft-deletes a playlist.
func (r *Repo) Delete(ctx context.Context, id string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE playlists SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return postgres.MapError(err, "playlist", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("playlist %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func notNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
