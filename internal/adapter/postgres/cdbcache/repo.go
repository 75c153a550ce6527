// Package cdbcache implements local storage of mirrored CDB resources.
//
// The cache is the reconciler's intermediate synchronisation point: fetch
// phases upsert the upstream documents verbatim, then later phases diff the
// catalogue against the cache rather than against the network.
package cdbcache

import (
	"context"
	"encoding/json"
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
	Key       string          `db:"key"`
	Type      string          `db:"type"`
	Data      json.RawMessage `db:"data"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
	DeletedAt *time.Time      `db:"deleted_at"`
}

func (r row) toDomain() domain.CacheResource {
	return domain.CacheResource{
		Key:       r.Key,
		Type:      domain.CacheResourceType(r.Type),
		Data:      r.Data,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		DeletedAt: r.DeletedAt,
	}
}

const upsertSQL = `
	INSERT INTO cached_resources (type, key, data)
	VALUES ($1, $2, $3)
	ON CONFLICT (type, key)
	DO UPDATE SET data = EXCLUDED.data, updated_at = now(), deleted_at = NULL`

// Upsert stores a resource document, reviving it if it was soft-deleted.
func (r *Repo) Upsert(ctx context.Context, typ domain.CacheResourceType, key string, data json.RawMessage) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx, upsertSQL, string(typ), key, data)
	if err != nil {
		return postgres.MapError(err, "cached resource", key)
	}
	return nil
}

// UpsertBatch stores many resource documents in one round trip.
func (r *Repo) UpsertBatch(ctx context.Context, typ domain.CacheResourceType, docs map[string]json.RawMessage) error {
	if len(docs) == 0 {
		return nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	batch := &pgx.Batch{}
	for key, data := range docs {
		batch.Queue(upsertSQL, string(typ), key, data)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	for range docs {
		if _, err := results.Exec(); err != nil {
			return postgres.MapError(err, "cached resources", string(typ))
		}
	}
	return nil
}

// SoftDeleteUnseen marks every live resource of the given type whose key is
// not in seen as deleted, returning how many were marked. A fetch pass
// which saw the full upstream set calls this to record upstream deletions.
func (r *Repo) SoftDeleteUnseen(ctx context.Context, typ domain.CacheResourceType, seen []string) (int, error) {
	if seen == nil {
		seen = []string{}
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE cached_resources SET deleted_at = now(), updated_at = now()
		 WHERE type = $1 AND deleted_at IS NULL AND NOT (key = ANY($2))`,
		string(typ), seen)
	if err != nil {
		return 0, postgres.MapError(err, "cached resources", string(typ))
	}
	return int(tag.RowsAffected()), nil
}

// Get returns a live cached resource.
func (r *Repo) Get(ctx context.Context, typ domain.CacheResourceType, key string) (*domain.CacheResource, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row row
	err := pgxscan.Get(ctx, q, &row,
		`SELECT key, type, data, created_at, updated_at, deleted_at
		 FROM cached_resources
		 WHERE type = $1 AND key = $2 AND deleted_at IS NULL`,
		string(typ), key)
	if err != nil {
		return nil, postgres.MapError(err, "cached resource", key)
	}

	res := row.toDomain()
	return &res, nil
}

// ListLive returns all live cached resources of the given type.
func (r *Repo) ListLive(ctx context.Context, typ domain.CacheResourceType) ([]domain.CacheResource, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []row
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT key, type, data, created_at, updated_at, deleted_at
		 FROM cached_resources
		 WHERE type = $1 AND deleted_at IS NULL ORDER BY key`,
		string(typ))
	if err != nil {
		return nil, postgres.MapError(err, "cached resources", string(typ))
	}

	resources := make([]domain.CacheResource, len(rows))
	for i, row := range rows {
		resources[i] = row.toDomain()
	}
	return resources, nil
}

// DeletedKeys returns the keys of soft-deleted resources of the given type.
func (r *Repo) DeletedKeys(ctx context.Context, typ domain.CacheResourceType) ([]string, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var keys []string
	err := pgxscan.Select(ctx, q, &keys,
		`SELECT key FROM cached_resources
		 WHERE type = $1 AND deleted_at IS NOT NULL ORDER BY key`,
		string(typ))
	if err != nil {
		return nil, postgres.MapError(err, "cached resources", string(typ))
	}
	return keys, nil
}
