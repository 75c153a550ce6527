package oai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/oaipmh"
)

// clientFake replays canned protocol responses and records the harvest
// windows it was asked for.
type clientFake struct {
	formats []oaipmh.MetadataFormat
	records map[string][]oaipmh.Record

	listRecordsErr error
	fromSeen       []*time.Time
}

func (c *clientFake) ListMetadataFormats(_ context.Context) ([]oaipmh.MetadataFormat, error) {
	return c.formats, nil
}

func (c *clientFake) ListRecords(_ context.Context, prefix string, from *time.Time) ([]oaipmh.Record, error) {
	c.fromSeen = append(c.fromSeen, from)
	if c.listRecordsErr != nil {
		return nil, c.listRecordsErr
	}
	return c.records[prefix], nil
}

type oaiRepoFake struct {
	repositories []domain.OAIRepository
	formats      map[uuid.UUID]domain.OAIMetadataFormat
	records      map[uuid.UUID]domain.OAIRecord
	series       map[uuid.UUID]domain.Series
	matterhorn   map[uuid.UUID]domain.MatterhornRecord
	tracks       map[uuid.UUID]domain.Track

	harvestedAt map[uuid.UUID]time.Time
}

func newOAIRepoFake() *oaiRepoFake {
	return &oaiRepoFake{
		formats:     map[uuid.UUID]domain.OAIMetadataFormat{},
		records:     map[uuid.UUID]domain.OAIRecord{},
		series:      map[uuid.UUID]domain.Series{},
		matterhorn:  map[uuid.UUID]domain.MatterhornRecord{},
		tracks:      map[uuid.UUID]domain.Track{},
		harvestedAt: map[uuid.UUID]time.Time{},
	}
}

func (f *oaiRepoFake) ListRepositories(_ context.Context) ([]domain.OAIRepository, error) {
	return f.repositories, nil
}

func (f *oaiRepoFake) SetLastHarvestedAt(_ context.Context, id uuid.UUID, at time.Time) error {
	f.harvestedAt[id] = at
	return nil
}

func (f *oaiRepoFake) UpsertMetadataFormat(_ context.Context, mf *domain.OAIMetadataFormat) (uuid.UUID, error) {
	for id, existing := range f.formats {
		if existing.RepositoryID == mf.RepositoryID && existing.Identifier == mf.Identifier {
			existing.Namespace = mf.Namespace
			existing.Schema = mf.Schema
			f.formats[id] = existing
			return id, nil
		}
	}
	f.formats[mf.ID] = *mf
	return mf.ID, nil
}

func (f *oaiRepoFake) MetadataFormats(_ context.Context, repositoryID uuid.UUID) (map[string]domain.OAIMetadataFormat, error) {
	out := map[string]domain.OAIMetadataFormat{}
	for _, mf := range f.formats {
		if mf.RepositoryID == repositoryID {
			out[mf.Identifier] = mf
		}
	}
	return out, nil
}

func (f *oaiRepoFake) UpsertRecord(_ context.Context, rec *domain.OAIRecord) (uuid.UUID, error) {
	for id, existing := range f.records {
		if existing.MetadataFormatID == rec.MetadataFormatID &&
			existing.Identifier == rec.Identifier &&
			existing.Datestamp.Equal(rec.Datestamp) {
			existing.XML = rec.XML
			existing.HarvestedAt = rec.HarvestedAt
			f.records[id] = existing
			return id, nil
		}
	}
	f.records[rec.ID] = *rec
	return rec.ID, nil
}

func (f *oaiRepoFake) GetRecord(_ context.Context, id uuid.UUID) (*domain.OAIRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("oai record %s: %w", id, domain.ErrNotFound)
	}
	return &rec, nil
}

func (f *oaiRepoFake) RecordIDsForRepository(_ context.Context, repositoryID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for id, rec := range f.records {
		mf, ok := f.formats[rec.MetadataFormatID]
		if ok && mf.RepositoryID == repositoryID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *oaiRepoFake) UpsertSeries(_ context.Context, s *domain.Series) (uuid.UUID, error) {
	for id, existing := range f.series {
		if existing.RepositoryID == s.RepositoryID && existing.Identifier == s.Identifier {
			existing.Title = s.Title
			f.series[id] = existing
			return id, nil
		}
	}
	f.series[s.ID] = *s
	return s.ID, nil
}

func (f *oaiRepoFake) GetSeries(_ context.Context, id uuid.UUID) (*domain.Series, error) {
	s, ok := f.series[id]
	if !ok {
		return nil, fmt.Errorf("series %s: %w", id, domain.ErrNotFound)
	}
	return &s, nil
}

func (f *oaiRepoFake) BoundSeries(_ context.Context) ([]domain.Series, error) {
	var out []domain.Series
	for _, s := range f.series {
		if s.PlaylistID != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *oaiRepoFake) UpsertMatterhornRecord(_ context.Context, mr *domain.MatterhornRecord) (uuid.UUID, error) {
	for id, existing := range f.matterhorn {
		if existing.RecordID == mr.RecordID {
			existing.Title = mr.Title
			existing.Description = mr.Description
			existing.SeriesID = mr.SeriesID
			f.matterhorn[id] = existing
			return id, nil
		}
	}
	f.matterhorn[mr.ID] = *mr
	return mr.ID, nil
}

func (f *oaiRepoFake) GetMatterhornRecord(_ context.Context, id uuid.UUID) (*domain.MatterhornRecord, error) {
	mr, ok := f.matterhorn[id]
	if !ok {
		return nil, fmt.Errorf("matterhorn record %s: %w", id, domain.ErrNotFound)
	}
	return &mr, nil
}

func (f *oaiRepoFake) MatterhornRecordForRecord(_ context.Context, recordID uuid.UUID) (*domain.MatterhornRecord, error) {
	for _, mr := range f.matterhorn {
		if mr.RecordID == recordID {
			clone := mr
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("matterhorn record for %s: %w", recordID, domain.ErrNotFound)
}

func (f *oaiRepoFake) UpsertTrack(_ context.Context, t *domain.Track) (uuid.UUID, error) {
	for id, existing := range f.tracks {
		if existing.MatterhornRecordID == t.MatterhornRecordID && existing.Identifier == t.Identifier {
			existing.URL = t.URL
			existing.XML = t.XML
			f.tracks[id] = existing
			return id, nil
		}
	}
	f.tracks[t.ID] = *t
	return t.ID, nil
}

func (f *oaiRepoFake) GetTrack(_ context.Context, id uuid.UUID) (*domain.Track, error) {
	t, ok := f.tracks[id]
	if !ok {
		return nil, fmt.Errorf("track %s: %w", id, domain.ErrNotFound)
	}
	clone := t
	return &clone, nil
}

func (f *oaiRepoFake) SetTrackMediaItem(_ context.Context, trackID uuid.UUID, mediaItemID string) error {
	t, ok := f.tracks[trackID]
	if !ok {
		return fmt.Errorf("track %s: %w", trackID, domain.ErrNotFound)
	}
	t.MediaItemID = &mediaItemID
	f.tracks[trackID] = t
	return nil
}

func (f *oaiRepoFake) UnboundTracksForSeries(_ context.Context, seriesID uuid.UUID) ([]domain.Track, error) {
	var out []domain.Track
	for _, t := range f.tracks {
		if t.MediaItemID != nil {
			continue
		}
		mr, ok := f.matterhorn[t.MatterhornRecordID]
		if ok && mr.SeriesID != nil && *mr.SeriesID == seriesID {
			out = append(out, t)
		}
	}
	return out, nil
}

type itemRepoFake struct {
	items []*domain.MediaItem
}

func (f *itemRepoFake) Create(_ context.Context, item *domain.MediaItem) error {
	clone := *item
	f.items = append(f.items, &clone)
	return nil
}

type permRepoFake struct {
	perms []*domain.Permission
}

func (f *permRepoFake) Create(_ context.Context, p *domain.Permission) error {
	clone := *p
	f.perms = append(f.perms, &clone)
	return nil
}

type playlistRepoFake struct {
	playlists map[string]*domain.Playlist
}

func (f *playlistRepoFake) GetByID(_ context.Context, id string) (*domain.Playlist, error) {
	pl, ok := f.playlists[id]
	if !ok {
		return nil, fmt.Errorf("playlist %s: %w", id, domain.ErrNotFound)
	}
	clone := *pl
	return &clone, nil
}

func (f *playlistRepoFake) AppendItem(_ context.Context, id, itemID string) error {
	pl, ok := f.playlists[id]
	if !ok {
		return fmt.Errorf("playlist %s: %w", id, domain.ErrNotFound)
	}
	pl.MediaItemIDs = append(pl.MediaItemIDs, itemID)
	return nil
}

type txPassthrough struct{}

func (txPassthrough) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type harvestWorld struct {
	svc *Service

	client    *clientFake
	repo      *oaiRepoFake
	items     *itemRepoFake
	perms     *permRepoFake
	playlists *playlistRepoFake
}

func newHarvestWorld(trackTypes ...string) *harvestWorld {
	if len(trackTypes) == 0 {
		trackTypes = []string{"presentation/delivery"}
	}
	w := &harvestWorld{
		client:    &clientFake{records: map[string][]oaipmh.Record{}},
		repo:      newOAIRepoFake(),
		items:     &itemRepoFake{},
		perms:     &permRepoFake{},
		playlists: &playlistRepoFake{playlists: map[string]*domain.Playlist{}},
	}
	w.svc = NewService(
		slog.New(slog.DiscardHandler),
		w.repo, w.items, w.perms, w.playlists, txPassthrough{},
		trackTypes,
		func(_ domain.OAIRepository) Client { return w.client },
	)
	return w
}

// matterhornFormat is the metadata format used throughout the tests.
var matterhornFormat = oaipmh.MetadataFormat{
	Prefix:    "matterhorn",
	Schema:    "http://example.com/matterhorn.xsd",
	Namespace: oaipmh.MatterhornNamespace,
}

func mediapackageRecord(identifier string, datestamp time.Time, series, seriesTitle, title string, tracks ...[2]string) oaipmh.Record {
	body := ""
	for _, t := range tracks {
		body += `<track id="` + t[0] + `-id" type="` + t[0] + `"><url>` + t[1] + `</url></track>`
	}
	xml := `<record><header><identifier>` + identifier + `</identifier></header><metadata>` +
		`<mediapackage><title>` + title + `</title>` +
		`<seriestitle>` + seriesTitle + `</seriestitle>` +
		`<series>` + series + `</series>` +
		`<media>` + body + `</media></mediapackage></metadata></record>`
	return oaipmh.Record{Identifier: identifier, Datestamp: datestamp, XML: xml}
}
