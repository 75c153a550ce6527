// Package billingaccount implements the BillingAccount repository using
// PostgreSQL.
package billingaccount

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
	ID           string    `db:"id"`
	Description  string    `db:"description"`
	LookupInstID string    `db:"lookup_inst"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r row) toDomain() domain.BillingAccount {
	return domain.BillingAccount{
		ID:           r.ID,
		Description:  r.Description,
		LookupInstID: r.LookupInstID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// GetByID returns a billing account by id.
func (r *Repo) GetByID(ctx context.Context, id string) (*domain.BillingAccount, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row row
	err := pgxscan.Get(ctx, q, &row,
		`SELECT id, description, lookup_inst, created_at, updated_at
		 FROM billing_accounts WHERE id = $1`, id)
	if err != nil {
		return nil, postgres.MapError(err, "billing account", id)
	}

	acct := row.toDomain()
	return &acct, nil
}

// GetByLookupInstID returns the billing account tied to a lookup
// institution, oldest first when several exist.
func (r *Repo) GetByLookupInstID(ctx context.Context, instID string) (*domain.BillingAccount, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row row
	err := pgxscan.Get(ctx, q, &row,
		`SELECT id, description, lookup_inst, created_at, updated_at
		 FROM billing_accounts WHERE lookup_inst = $1
		 ORDER BY created_at LIMIT 1`, instID)
	if err != nil {
		return nil, postgres.MapError(err, "billing account", instID)
	}

	acct := row.toDomain()
	return &acct, nil
}

// List returns all billing accounts ordered by id.
func (r *Repo) List(ctx context.Context) ([]domain.BillingAccount, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []row
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT id, description, lookup_inst, created_at, updated_at
		 FROM billing_accounts ORDER BY id`)
	if err != nil {
		return nil, postgres.MapError(err, "billing accounts", "")
	}

	accts := make([]domain.BillingAccount, len(rows))
	for i, row := range rows {
		accts[i] = row.toDomain()
	}
	return accts, nil
}

// Create persists a new billing account.
func (r *Repo) Create(ctx context.Context, acct *domain.BillingAccount) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO billing_accounts (id, description, lookup_inst)
		 VALUES ($1, $2, $3)`,
		acct.ID, acct.Description, acct.LookupInstID)
	if err != nil {
		return postgres.MapError(err, "billing account", acct.ID)
	}
	return nil
}
