// Package channel implements the Channel repository using PostgreSQL.
package channel

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
	ID               string     `db:"id"`
	Title            string     `db:"title"`
	Description      string     `db:"description"`
	BillingAccountID string     `db:"billing_account_id"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at"`
}

func (r row) toDomain() domain.Channel {
	return domain.Channel{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		BillingAccountID: r.BillingAccountID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		DeletedAt:        r.DeletedAt,
	}
}

const selectColumns = `
	id, title, description, billing_account_id, created_at, updated_at, deleted_at`

// GetByID returns a channel by id. Soft-deleted channels are not found.
func (r *Repo) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row row
	err := pgxscan.Get(ctx, q, &row,
		`SELECT`+selectColumns+` FROM channels WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, postgres.MapError(err, "channel", id)
	}

	ch := row.toDomain()
	return &ch, nil
}

// List returns all live channels ordered by creation time, newest first.
// A non-empty search restricts the result to channels whose title or
// description matches the query.
func (r *Repo) List(ctx context.Context, search string) ([]domain.Channel, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []row
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT`+selectColumns+` FROM channels
		 WHERE deleted_at IS NULL
		   AND ($1 = '' OR fts @@ plainto_tsquery('english', $1))
		 ORDER BY created_at DESC, id`, search)
	if err != nil {
		return nil, postgres.MapError(err, "channels", "")
	}

	channels := make([]domain.Channel, len(rows))
	for i, row := range rows {
		channels[i] = row.toDomain()
	}
	return channels, nil
}

// Create persists a new channel.
func (r *Repo) Create(ctx context.Context, ch *domain.Channel) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO channels (id, title, description, billing_account_id)
		 VALUES ($1, $2, $3, $4)`,
		ch.ID, ch.Title, ch.Description, ch.BillingAccountID)
	if err != nil {
		return postgres.MapError(err, "channel", ch.ID)
	}
	return nil
}

// Update replaces a channel's mutable fields and bumps updated_at.
func (r *Repo) Update(ctx context.Context, ch *domain.Channel) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE channels SET title = $2, description = $3, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`,
		ch.ID, ch.Title, ch.Description)
	if err != nil {
		return postgres.MapError(err, "channel", ch.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("channel %s: %w", ch.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete soft-deletes a channel. Idempotent on already-deleted channels.
func (r *Repo) Delete(ctx context.Context, id string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE channels SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return postgres.MapError(err, "channel", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
