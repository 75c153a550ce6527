// Package permission implements the Permission repository using PostgreSQL.
// Every media item, playlist and billing account owns exactly one permission
// row per governed action; channels own their edit permission.
package permission

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/uisautomation/mediaplatform/internal/adapter/postgres"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// Repo provides permission persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new permission repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

type row struct {
	ID                    string   `db:"id"`
	AllowsViewItemID      *string  `db:"allows_view_item_id"`
	AllowsEditItemID      *string  `db:"allows_edit_item_id"`
	AllowsEditChannelID   *string  `db:"allows_edit_channel_id"`
	AllowsViewPlaylistID  *string  `db:"allows_view_playlist_id"`
	AllowsCreateForAcctID *string  `db:"allows_create_for_acct_id"`
	CRSIDs                []string `db:"crsids"`
	LookupGroups          []string `db:"lookup_groups"`
	LookupInsts           []string `db:"lookup_insts"`
	IsPublic              bool     `db:"is_public"`
	IsSignedIn            bool     `db:"is_signed_in"`
}

func (r row) toDomain() domain.Permission {
	return domain.Permission{
		ID:                    r.ID,
		AllowsViewItemID:      r.AllowsViewItemID,
		AllowsEditItemID:      r.AllowsEditItemID,
		AllowsEditChannelID:   r.AllowsEditChannelID,
		AllowsViewPlaylistID:  r.AllowsViewPlaylistID,
		AllowsCreateForAcctID: r.AllowsCreateForAcctID,
		CRSIDs:                r.CRSIDs,
		LookupGroups:          r.LookupGroups,
		LookupInsts:           r.LookupInsts,
		IsPublic:              r.IsPublic,
		IsSignedIn:            r.IsSignedIn,
	}
}

const selectColumns = `
	id, allows_view_item_id, allows_edit_item_id, allows_edit_channel_id,
	allows_view_playlist_id, allows_create_for_acct_id, crsids,
	lookup_groups, lookup_insts, is_public, is_signed_in`

// GetByID returns a permission by primary key.
func (r *Repo) GetByID(ctx context.Context, id string) (*domain.Permission, error) {
	return r.getWhere(ctx, "id = $1", id, "permission", id)
}

// GetViewForItem returns the view permission owned by a media item.
func (r *Repo) GetViewForItem(ctx context.Context, itemID string) (*domain.Permission, error) {
	return r.getWhere(ctx, "allows_view_item_id = $1", itemID, "item view permission", itemID)
}

// GetEditForItem returns the edit permission owned by a media item. The
// row is stored but never consulted by authorization, which routes edit
// decisions through the containing channel.
func (r *Repo) GetEditForItem(ctx context.Context, itemID string) (*domain.Permission, error) {
	return r.getWhere(ctx, "allows_edit_item_id = $1", itemID, "item edit permission", itemID)
}

// GetEditForChannel returns the edit permission owned by a channel.
func (r *Repo) GetEditForChannel(ctx context.Context, channelID string) (*domain.Permission, error) {
	return r.getWhere(ctx, "allows_edit_channel_id = $1", channelID, "channel edit permission", channelID)
}

// GetViewForPlaylist returns the view permission owned by a playlist.
func (r *Repo) GetViewForPlaylist(ctx context.Context, playlistID string) (*domain.Permission, error) {
	return r.getWhere(ctx, "allows_view_playlist_id = $1", playlistID, "playlist view permission", playlistID)
}

// GetCreateForAccount returns the channel-create permission owned by a
// billing account.
func (r *Repo) GetCreateForAccount(ctx context.Context, acctID string) (*domain.Permission, error) {
	return r.getWhere(ctx, "allows_create_for_acct_id = $1", acctID, "account create permission", acctID)
}

func (r *Repo) getWhere(ctx context.Context, where, arg, entity, id string) (*domain.Permission, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row row
	err := pgxscan.Get(ctx, q, &row,
		`SELECT`+selectColumns+` FROM permissions WHERE `+where, arg)
	if err != nil {
		return nil, postgres.MapError(err, entity, id)
	}

	p := row.toDomain()
	return &p, nil
}

// Create persists a new permission. Exactly one parent reference must be
// set; the database enforces this.
func (r *Repo) Create(ctx context.Context, p *domain.Permission) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO permissions (id, allows_view_item_id, allows_edit_item_id, allows_edit_channel_id, allows_view_playlist_id, allows_create_for_acct_id, crsids, lookup_groups, lookup_insts, is_public, is_signed_in)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.AllowsViewItemID, p.AllowsEditItemID, p.AllowsEditChannelID, p.AllowsViewPlaylistID, p.AllowsCreateForAcctID,
		notNil(p.CRSIDs), notNil(p.LookupGroups), notNil(p.LookupInsts), p.IsPublic, p.IsSignedIn,
	)
	if err != nil {
		return postgres.MapError(err, "permission", p.ID)
	}
	return nil
}

// Update replaces a permission's access fields.
func (r *Repo) Update(ctx context.Context, p *domain.Permission) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	tag, err := q.Exec(ctx,
		`UPDATE permissions
		 SET crsids = $2, lookup_groups = $3, lookup_insts = $4, is_public = $5, is_signed_in = $6
		 WHERE id = $1`,
		p.ID, notNil(p.CRSIDs), notNil(p.LookupGroups), notNil(p.LookupInsts), p.IsPublic, p.IsSignedIn,
	)
	if err != nil {
		return postgres.MapError(err, "permission", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("permission %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

// EnsureViewForItems creates blank view permissions for any of the given
// items which lack one. Bulk ingest paths bypass the single-item create
// flow, so the reconciler calls this afterwards to restore the invariant
// that every item owns a view permission.
func (r *Repo) EnsureViewForItems(ctx context.Context, itemIDs []string) (int, error) {
	return r.ensureForItems(ctx, "allows_view_item_id", itemIDs)
}

// EnsureEditForItems is the edit-permission counterpart of
// EnsureViewForItems.
func (r *Repo) EnsureEditForItems(ctx context.Context, itemIDs []string) (int, error) {
	return r.ensureForItems(ctx, "allows_edit_item_id", itemIDs)
}

func (r *Repo) ensureForItems(ctx context.Context, column string, itemIDs []string) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)

	batch := &pgx.Batch{}
	for _, itemID := range itemIDs {
		batch.Queue(
			`INSERT INTO permissions (id, `+column+`)
			 SELECT $1, $2
			 WHERE NOT EXISTS (SELECT 1 FROM permissions WHERE `+column+` = $2)
			 ON CONFLICT (`+column+`) DO NOTHING`,
			domain.NewToken(), itemID,
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	created := 0
	for range itemIDs {
		tag, err := results.Exec()
		if err != nil {
			return created, fmt.Errorf("ensure %s permissions: %w", column, err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

func notNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
