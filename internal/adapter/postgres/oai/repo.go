// Package oai implements storage for the OAI-PMH harvesting subsystem:
// repositories, metadata formats, harvested records and their Matterhorn
// specialisations.
package oai

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
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

// ListRepositories returns all configured repositories.
func (r *Repo) ListRepositories(ctx context.Context) ([]domain.OAIRepository, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var repos []domain.OAIRepository
	err := pgxscan.Select(ctx, q, &repos,
		`SELECT id, url, basic_auth_user, basic_auth_password, last_harvested_at, created_at, updated_at
		 FROM oai_repositories ORDER BY url`)
	if err != nil {
		return nil, postgres.MapError(err, "oai repositories", "")
	}
	return repos, nil
}

// GetRepository returns a repository by id.
func (r *Repo) GetRepository(ctx context.Context, id uuid.UUID) (*domain.OAIRepository, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var repo domain.OAIRepository
	err := pgxscan.Get(ctx, q, &repo,
		`SELECT id, url, basic_auth_user, basic_auth_password, last_harvested_at, created_at, updated_at
		 FROM oai_repositories WHERE id = $1`, id)
	if err != nil {
		return nil, postgres.MapError(err, "oai repository", id.String())
	}
	return &repo, nil
}

// CreateRepository persists a new repository.
func (r *Repo) CreateRepository(ctx context.Context, repo *domain.OAIRepository) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO oai_repositories (id, url, basic_auth_user, basic_auth_password)
		 VALUES ($1, $2, $3, $4)`,
		repo.ID, repo.URL, repo.BasicAuthUser, repo.BasicAuthPassword)
	if err != nil {
		return postgres.MapError(err, "oai repository", repo.ID.String())
	}
	return nil
}

// SetLastHarvestedAt records when a repository was last harvested.
func (r *Repo) SetLastHarvestedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`UPDATE oai_repositories SET last_harvested_at = $2, updated_at = now() WHERE id = $1`,
		id, at)
	if err != nil {
		return postgres.MapError(err, "oai repository", id.String())
	}
	return nil
}

// UpsertMetadataFormat creates or refreshes a metadata format, returning
// its id. The identifier (metadata prefix) is unique per repository.
func (r *Repo) UpsertMetadataFormat(ctx context.Context, mf *domain.OAIMetadataFormat) (uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var id uuid.UUID
	err := pgxscan.Get(ctx, q, &id,
		`INSERT INTO oai_metadata_formats (id, repository_id, identifier, namespace, schema_url)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (repository_id, identifier)
		 DO UPDATE SET namespace = EXCLUDED.namespace, schema_url = EXCLUDED.schema_url, updated_at = now()
		 RETURNING id`,
		mf.ID, mf.RepositoryID, mf.Identifier, mf.Namespace, mf.Schema)
	if err != nil {
		return uuid.Nil, postgres.MapError(err, "oai metadata format", mf.Identifier)
	}
	return id, nil
}

// MetadataFormats returns the metadata formats of a repository keyed by
// identifier.
func (r *Repo) MetadataFormats(ctx context.Context, repositoryID uuid.UUID) (map[string]domain.OAIMetadataFormat, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rows []struct {
		ID           uuid.UUID `db:"id"`
		RepositoryID uuid.UUID `db:"repository_id"`
		Identifier   string    `db:"identifier"`
		Namespace    string    `db:"namespace"`
		Schema       string    `db:"schema_url"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}
	err := pgxscan.Select(ctx, q, &rows,
		`SELECT id, repository_id, identifier, namespace, schema_url, created_at, updated_at
		 FROM oai_metadata_formats WHERE repository_id = $1`, repositoryID)
	if err != nil {
		return nil, postgres.MapError(err, "oai metadata formats", repositoryID.String())
	}

	formats := make(map[string]domain.OAIMetadataFormat, len(rows))
	for _, row := range rows {
		formats[row.Identifier] = domain.OAIMetadataFormat{
			ID: row.ID, RepositoryID: row.RepositoryID, Identifier: row.Identifier,
			Namespace: row.Namespace, Schema: row.Schema,
			CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
		}
	}
	return formats, nil
}

// UpsertRecord stores a harvested record, returning its id. A record with
// the same identifier, format and datestamp has its payload refreshed.
func (r *Repo) UpsertRecord(ctx context.Context, rec *domain.OAIRecord) (uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var id uuid.UUID
	err := pgxscan.Get(ctx, q, &id,
		`INSERT INTO oai_records (id, metadata_format_id, identifier, datestamp, xml, harvested_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (metadata_format_id, identifier, datestamp)
		 DO UPDATE SET xml = EXCLUDED.xml, harvested_at = EXCLUDED.harvested_at, updated_at = now()
		 RETURNING id`,
		rec.ID, rec.MetadataFormatID, rec.Identifier, rec.Datestamp, rec.XML, rec.HarvestedAt)
	if err != nil {
		return uuid.Nil, postgres.MapError(err, "oai record", rec.Identifier)
	}
	return id, nil
}

// GetRecord returns a harvested record by id.
func (r *Repo) GetRecord(ctx context.Context, id uuid.UUID) (*domain.OAIRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var rec domain.OAIRecord
	err := pgxscan.Get(ctx, q, &rec,
		`SELECT id, metadata_format_id, identifier, datestamp, xml, harvested_at, created_at, updated_at
		 FROM oai_records WHERE id = $1`, id)
	if err != nil {
		return nil, postgres.MapError(err, "oai record", id.String())
	}
	return &rec, nil
}

// RecordIDsForRepository returns the ids of all records harvested from a
// repository.
func (r *Repo) RecordIDsForRepository(ctx context.Context, repositoryID uuid.UUID) ([]uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var ids []uuid.UUID
	err := pgxscan.Select(ctx, q, &ids,
		`SELECT r.id FROM oai_records r
		 JOIN oai_metadata_formats mf ON mf.id = r.metadata_format_id
		 WHERE mf.repository_id = $1 ORDER BY r.created_at`, repositoryID)
	if err != nil {
		return nil, postgres.MapError(err, "oai records", repositoryID.String())
	}
	return ids, nil
}

// UpsertSeries creates or refreshes a series, returning its id. The
// playlist binding and view defaults are operator-managed and deliberately
// not touched on refresh.
func (r *Repo) UpsertSeries(ctx context.Context, s *domain.Series) (uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var id uuid.UUID
	err := pgxscan.Get(ctx, q, &id,
		`INSERT INTO oai_series (id, repository_id, identifier, title)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (repository_id, identifier)
		 DO UPDATE SET title = EXCLUDED.title, updated_at = now()
		 RETURNING id`,
		s.ID, s.RepositoryID, s.Identifier, s.Title)
	if err != nil {
		return uuid.Nil, postgres.MapError(err, "oai series", s.Identifier)
	}
	return id, nil
}

// GetSeries returns a series by id.
func (r *Repo) GetSeries(ctx context.Context, id uuid.UUID) (*domain.Series, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var row struct {
		ID               uuid.UUID `db:"id"`
		RepositoryID     uuid.UUID `db:"repository_id"`
		Identifier       string    `db:"identifier"`
		Title            string    `db:"title"`
		PlaylistID       *string   `db:"playlist_id"`
		ViewIsPublic     bool      `db:"view_is_public"`
		ViewIsSignedIn   bool      `db:"view_is_signed_in"`
		ViewCRSIDs       []string  `db:"view_crsids"`
		ViewLookupGroups []string  `db:"view_lookup_groups"`
		ViewLookupInsts  []string  `db:"view_lookup_insts"`
		CreatedAt        time.Time `db:"created_at"`
		UpdatedAt        time.Time `db:"updated_at"`
	}
	err := pgxscan.Get(ctx, q, &row,
		`SELECT id, repository_id, identifier, title, playlist_id,
		        view_is_public, view_is_signed_in, view_crsids, view_lookup_groups, view_lookup_insts,
		        created_at, updated_at
		 FROM oai_series WHERE id = $1`, id)
	if err != nil {
		return nil, postgres.MapError(err, "oai series", id.String())
	}

	return &domain.Series{
		ID: row.ID, RepositoryID: row.RepositoryID, Identifier: row.Identifier,
		Title: row.Title, PlaylistID: row.PlaylistID,
		ViewIsPublic: row.ViewIsPublic, ViewIsSignedIn: row.ViewIsSignedIn,
		ViewCRSIDs: row.ViewCRSIDs, ViewLookupGroups: row.ViewLookupGroups,
		ViewLookupInsts: row.ViewLookupInsts,
		CreatedAt:       row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}, nil
}

// BindSeriesPlaylist binds a series to a playlist and sets its view
// defaults. Tracks of a bound series are materialised as media items.
func (r *Repo) BindSeriesPlaylist(ctx context.Context, s *domain.Series) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`UPDATE oai_series
		 SET playlist_id = $2, view_is_public = $3, view_is_signed_in = $4,
		     view_crsids = $5, view_lookup_groups = $6, view_lookup_insts = $7,
		     updated_at = now()
		 WHERE id = $1`,
		s.ID, s.PlaylistID, s.ViewIsPublic, s.ViewIsSignedIn,
		notNil(s.ViewCRSIDs), notNil(s.ViewLookupGroups), notNil(s.ViewLookupInsts))
	if err != nil {
		return postgres.MapError(err, "oai series", s.ID.String())
	}
	return nil
}

// UpsertMatterhornRecord creates or refreshes the Matterhorn specialisation
// of a record, returning its id.
func (r *Repo) UpsertMatterhornRecord(ctx context.Context, mr *domain.MatterhornRecord) (uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var id uuid.UUID
	err := pgxscan.Get(ctx, q, &id,
		`INSERT INTO oai_matterhorn_records (id, record_id, title, description, series_id)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (record_id)
		 DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description,
		     series_id = EXCLUDED.series_id, updated_at = now()
		 RETURNING id`,
		mr.ID, mr.RecordID, mr.Title, mr.Description, mr.SeriesID)
	if err != nil {
		return uuid.Nil, postgres.MapError(err, "matterhorn record", mr.RecordID.String())
	}
	return id, nil
}

// UpsertTrack creates or refreshes a track, returning its id. The media
// item binding survives refreshes.
func (r *Repo) UpsertTrack(ctx context.Context, t *domain.Track) (uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var id uuid.UUID
	err := pgxscan.Get(ctx, q, &id,
		`INSERT INTO oai_tracks (id, matterhorn_record_id, identifier, url, xml)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (matterhorn_record_id, identifier)
		 DO UPDATE SET url = EXCLUDED.url, xml = EXCLUDED.xml, updated_at = now()
		 RETURNING id`,
		t.ID, t.MatterhornRecordID, t.Identifier, t.URL, t.XML)
	if err != nil {
		return uuid.Nil, postgres.MapError(err, "oai track", t.Identifier)
	}
	return id, nil
}

// GetTrack returns a track by id.
func (r *Repo) GetTrack(ctx context.Context, id uuid.UUID) (*domain.Track, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var t domain.Track
	err := pgxscan.Get(ctx, q, &t,
		`SELECT id, matterhorn_record_id, identifier, url, xml, media_item_id,
		        created_at, updated_at
		 FROM oai_tracks WHERE id = $1`, id)
	if err != nil {
		return nil, postgres.MapError(err, "oai track", id.String())
	}
	return &t, nil
}

// SetTrackMediaItem binds a track to the media item materialised for it.
func (r *Repo) SetTrackMediaItem(ctx context.Context, trackID uuid.UUID, mediaItemID string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	_, err := q.Exec(ctx,
		`UPDATE oai_tracks SET media_item_id = $2, updated_at = now() WHERE id = $1`,
		trackID, mediaItemID)
	if err != nil {
		return postgres.MapError(err, "oai track", trackID.String())
	}
	return nil
}

// UnboundTracksForSeries returns tracks of records in the given series
// which have no media item yet. The OAI cleanup task materialises these.
func (r *Repo) UnboundTracksForSeries(ctx context.Context, seriesID uuid.UUID) ([]domain.Track, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var tracks []domain.Track
	err := pgxscan.Select(ctx, q, &tracks,
		`SELECT t.id, t.matterhorn_record_id, t.identifier, t.url, t.xml, t.media_item_id,
		        t.created_at, t.updated_at
		 FROM oai_tracks t
		 JOIN oai_matterhorn_records mr ON mr.id = t.matterhorn_record_id
		 WHERE mr.series_id = $1 AND t.media_item_id IS NULL
		 ORDER BY t.created_at`, seriesID)
	if err != nil {
		return nil, postgres.MapError(err, "oai tracks", seriesID.String())
	}
	return tracks, nil
}

// BoundSeries returns all series bound to a playlist.
func (r *Repo) BoundSeries(ctx context.Context) ([]domain.Series, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var ids []uuid.UUID
	err := pgxscan.Select(ctx, q, &ids,
		`SELECT id FROM oai_series WHERE playlist_id IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, postgres.MapError(err, "oai series", "")
	}

	series := make([]domain.Series, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetSeries(ctx, id)
		if err != nil {
			return nil, err
		}
		series = append(series, *s)
	}
	return series, nil
}

// GetMatterhornRecord returns a Matterhorn record by id.
func (r *Repo) GetMatterhornRecord(ctx context.Context, id uuid.UUID) (*domain.MatterhornRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var mr domain.MatterhornRecord
	err := pgxscan.Get(ctx, q, &mr,
		`SELECT id, record_id, title, description, series_id, created_at, updated_at
		 FROM oai_matterhorn_records WHERE id = $1`, id)
	if err != nil {
		return nil, postgres.MapError(err, "matterhorn record", id.String())
	}
	return &mr, nil
}

// MatterhornRecordForRecord returns the Matterhorn specialisation of a
// harvested record, if one exists.
func (r *Repo) MatterhornRecordForRecord(ctx context.Context, recordID uuid.UUID) (*domain.MatterhornRecord, error) {
	q := postgres.QuerierFromCtx(ctx, r.pool)

	var mr domain.MatterhornRecord
	err := pgxscan.Get(ctx, q, &mr,
		`SELECT id, record_id, title, description, series_id, created_at, updated_at
		 FROM oai_matterhorn_records WHERE record_id = $1`, recordID)
	if err != nil {
		return nil, postgres.MapError(err, "matterhorn record", recordID.String())
	}
	return &mr, nil
}

func notNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
