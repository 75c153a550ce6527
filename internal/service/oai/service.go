// Package oai harvests lecture-capture metadata from OAI-PMH repositories
// and materialises Matterhorn records into catalogue media items.
package oai

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/oaipmh"
)

// HarvestWindowSlack widens the incremental window so records written while
// the previous harvest ran are not missed. Re-harvesting a record is a
// cheap upsert.
const HarvestWindowSlack = 30 * time.Second

// Client speaks the OAI-PMH protocol to one repository. Implemented by
// *oaipmh.Client.
type Client interface {
	ListMetadataFormats(ctx context.Context) ([]oaipmh.MetadataFormat, error)
	ListRecords(ctx context.Context, prefix string, from *time.Time) ([]oaipmh.Record, error)
}

type oaiRepo interface {
	ListRepositories(ctx context.Context) ([]domain.OAIRepository, error)
	SetLastHarvestedAt(ctx context.Context, id uuid.UUID, at time.Time) error
	UpsertMetadataFormat(ctx context.Context, mf *domain.OAIMetadataFormat) (uuid.UUID, error)
	MetadataFormats(ctx context.Context, repositoryID uuid.UUID) (map[string]domain.OAIMetadataFormat, error)
	UpsertRecord(ctx context.Context, rec *domain.OAIRecord) (uuid.UUID, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*domain.OAIRecord, error)
	RecordIDsForRepository(ctx context.Context, repositoryID uuid.UUID) ([]uuid.UUID, error)
	UpsertSeries(ctx context.Context, s *domain.Series) (uuid.UUID, error)
	GetSeries(ctx context.Context, id uuid.UUID) (*domain.Series, error)
	BoundSeries(ctx context.Context) ([]domain.Series, error)
	UpsertMatterhornRecord(ctx context.Context, mr *domain.MatterhornRecord) (uuid.UUID, error)
	GetMatterhornRecord(ctx context.Context, id uuid.UUID) (*domain.MatterhornRecord, error)
	MatterhornRecordForRecord(ctx context.Context, recordID uuid.UUID) (*domain.MatterhornRecord, error)
	UpsertTrack(ctx context.Context, t *domain.Track) (uuid.UUID, error)
	GetTrack(ctx context.Context, id uuid.UUID) (*domain.Track, error)
	SetTrackMediaItem(ctx context.Context, trackID uuid.UUID, mediaItemID string) error
	UnboundTracksForSeries(ctx context.Context, seriesID uuid.UUID) ([]domain.Track, error)
}

type itemRepo interface {
	Create(ctx context.Context, item *domain.MediaItem) error
}

type permissionRepo interface {
	Create(ctx context.Context, p *domain.Permission) error
}

type playlistRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Playlist, error)
	AppendItem(ctx context.Context, id, itemID string) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements harvesting and materialisation.
type Service struct {
	repo      oaiRepo
	items     itemRepo
	perms     permissionRepo
	playlists playlistRepo
	tx        txManager

	// newClient builds a protocol client for a repository. Injected so
	// tests can substitute a fake.
	newClient func(repo domain.OAIRepository) Client

	trackTypes []string
	log        *slog.Logger
	now        func() time.Time
}

// NewService creates the OAI service. trackTypes is the allow-list of
// mediapackage track types worth materialising.
func NewService(
	log *slog.Logger,
	repo oaiRepo,
	items itemRepo,
	perms permissionRepo,
	playlists playlistRepo,
	tx txManager,
	trackTypes []string,
	newClient func(repo domain.OAIRepository) Client,
) *Service {
	return &Service{
		repo:       repo,
		items:      items,
		perms:      perms,
		playlists:  playlists,
		tx:         tx,
		newClient:  newClient,
		trackTypes: trackTypes,
		log:        log.With("service", "oai"),
		now:        time.Now,
	}
}

// Stats summarises a harvest or cleanup run.
type Stats struct {
	Repositories int
	Records      int
	Items        int

	// Errors counts records or repositories which failed and were skipped.
	Errors int
}

func (s *Service) trackAllowed(typ string) bool {
	for _, allowed := range s.trackTypes {
		if typ == allowed {
			return true
		}
	}
	return false
}
