// Package uploadendpoint implements the UploadEndpoint repository using
// PostgreSQL.
package uploadendpoint

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

type row struct {
	ID        string    `db:"id"`
	ItemID    string    `db:"item_id"`
	URL       string    `db:"url"`
	ExpiresAt time.Time `db:"expires_at"`
}

// GetLiveForItem returns the unexpired upload endpoint for a media item,
// if any.
func (r *Repo) GetLiveForItem(ctx context.Context, itemID string) (*domain.UploadEndpoint, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row row
	err := pgxscan.Get(ctx, q, &row,
		`SELECT id, item_id, url, expires_at FROM upload_endpoints
		 WHERE item_id = $1 AND expires_at > now()
		 ORDER BY expires_at DESC LIMIT 1`, itemID)
	if err != nil {
		return nil, postgres.MapError(err, "upload endpoint", itemID)
	}

	return &domain.UploadEndpoint{
		ID:        row.ID,
		ItemID:    row.ItemID,
		URL:       row.URL,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// Create persists a new upload endpoint.
func (r *Repo) Create(ctx context.Context, ep *domain.UploadEndpoint) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO upload_endpoints (id, item_id, url, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		ep.ID, ep.ItemID, ep.URL, ep.ExpiresAt)
	if err != nil {
		return postgres.MapError(err, "upload endpoint", ep.ID)
	}
	return nil
}

// DeleteForItem removes all upload endpoints for a media item, live or
// expired. Returns the number removed.
func (r *Repo) DeleteForItem(ctx context.Context, itemID string) (int, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`DELETE FROM upload_endpoints WHERE item_id = $1`, itemID)
	if err != nil {
		return 0, postgres.MapError(err, "upload endpoint", itemID)
	}
	return int(tag.RowsAffected()), nil
}
