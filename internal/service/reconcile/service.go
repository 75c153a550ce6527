// Package reconcile keeps the catalogue in step with the content delivery
// backend. A run refreshes the local resource cache, propagates deletions,
// discovers new resources and syncs metadata for changed ones, in that
// order. Runs are driven by a timer in cmd/worker or one-shot from
// cmd/reconcile.
package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/uisautomation/mediaplatform/internal/cdb"
	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/service/outbound"
)

type cdbClient interface {
	ListVideos(ctx context.Context, offset int) (*cdb.VideoList, error)
	ListChannels(ctx context.Context, offset int) (*cdb.ChannelList, error)
}

type cacheRepo interface {
	UpsertBatch(ctx context.Context, typ domain.CacheResourceType, docs map[string]json.RawMessage) error
	SoftDeleteUnseen(ctx context.Context, typ domain.CacheResourceType, seen []string) (int, error)
	ListLive(ctx context.Context, typ domain.CacheResourceType) ([]domain.CacheResource, error)
}

type linkRepo interface {
	VideoLinks(ctx context.Context) (map[string]domain.VideoLink, error)
	UpsertVideoLink(ctx context.Context, link domain.VideoLink) error
	SetVideoWatermark(ctx context.Context, key string, updated int64) error
	DeleteVideoLinks(ctx context.Context, keys []string) (int, error)
	ChannelLinks(ctx context.Context) (map[string]domain.ChannelLink, error)
	UpsertChannelLink(ctx context.Context, link domain.ChannelLink) error
	SetChannelWatermark(ctx context.Context, key string, updated int64) error
	DeleteChannelLinks(ctx context.Context, keys []string) (int, error)
}

type itemRepo interface {
	GetAnyByID(ctx context.Context, id string) (*domain.MediaItem, error)
	CreateBatch(ctx context.Context, items []*domain.MediaItem) error
	Update(ctx context.Context, item *domain.MediaItem) error
	DeleteBatch(ctx context.Context, ids []string) (int, error)
	Restore(ctx context.Context, ids []string) (int, error)
	SetChannel(ctx context.Context, ids []string, channelID *string) (int, error)
	IDsInChannels(ctx context.Context, channelIDs []string) ([]string, error)
}

type channelRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
	Create(ctx context.Context, ch *domain.Channel) error
	Update(ctx context.Context, ch *domain.Channel) error
	Delete(ctx context.Context, id string) error
}

type playlistRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Playlist, error)
	Create(ctx context.Context, pl *domain.Playlist) error
	Update(ctx context.Context, pl *domain.Playlist) error
	Delete(ctx context.Context, id string) error
}

type permissionRepo interface {
	Create(ctx context.Context, p *domain.Permission) error
	Update(ctx context.Context, p *domain.Permission) error
	GetViewForItem(ctx context.Context, itemID string) (*domain.Permission, error)
	GetEditForChannel(ctx context.Context, channelID string) (*domain.Permission, error)
	EnsureViewForItems(ctx context.Context, itemIDs []string) (int, error)
	EnsureEditForItems(ctx context.Context, itemIDs []string) (int, error)
}

type legacyRepo interface {
	GetItemByLegacyID(ctx context.Context, legacyID int64) (*domain.LegacyItem, error)
	UpsertItem(ctx context.Context, li domain.LegacyItem) error
	DeleteItemsForItems(ctx context.Context, itemIDs []string) (int, error)
	GetCollectionByLegacyID(ctx context.Context, legacyID int64) (*domain.LegacyCollection, error)
	UpsertCollection(ctx context.Context, lc domain.LegacyCollection) error
	CollectionsForChannels(ctx context.Context, channelIDs []string) ([]domain.LegacyCollection, error)
	DeleteCollectionsForChannels(ctx context.Context, channelIDs []string) (int, error)
}

type accountRepo interface {
	GetByLookupInstID(ctx context.Context, instID string) (*domain.BillingAccount, error)
	Create(ctx context.Context, acct *domain.BillingAccount) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements the CDB reconciler.
type Service struct {
	cdb       cdbClient
	cache     cacheRepo
	links     linkRepo
	items     itemRepo
	channels  channelRepo
	playlists playlistRepo
	perms     permissionRepo
	legacy    legacyRepo
	accounts  accountRepo
	tx        txManager
	log       *slog.Logger
}

// NewService creates the reconciler.
func NewService(
	log *slog.Logger,
	client cdbClient,
	cache cacheRepo,
	links linkRepo,
	items itemRepo,
	channels channelRepo,
	playlists playlistRepo,
	perms permissionRepo,
	legacy legacyRepo,
	accounts accountRepo,
	tx txManager,
) *Service {
	return &Service{
		cdb:       client,
		cache:     cache,
		links:     links,
		items:     items,
		channels:  channels,
		playlists: playlists,
		perms:     perms,
		legacy:    legacy,
		accounts:  accounts,
		tx:        tx,
		log:       log.With("service", "reconcile"),
	}
}

// Stats summarises what a reconciler run changed.
type Stats struct {
	CachedVideos   int
	CachedChannels int

	DeletedItems    int
	DeletedChannels int

	NewItems    int
	NewChannels int
	Resurrected int

	SyncedItems    int
	SyncedChannels int

	// Errors counts resources whose metadata sync failed and was skipped.
	Errors int
}

// Run performs one reconciliation. When syncAll is set, Phase D refreshes
// every linked resource regardless of its watermark.
//
// The whole run executes with outbound sync disabled so the writes it makes
// do not echo back to the CDB.
func (s *Service) Run(ctx context.Context, syncAll bool) (Stats, error) {
	ctx = outbound.WithSync(ctx, false)
	started := time.Now()

	var stats Stats
	if err := s.refreshCache(ctx, &stats); err != nil {
		return stats, err
	}
	if err := s.propagateDeletions(ctx, &stats); err != nil {
		return stats, err
	}
	if err := s.discover(ctx, &stats); err != nil {
		return stats, err
	}
	if err := s.syncMetadata(ctx, syncAll, &stats); err != nil {
		return stats, err
	}

	s.log.InfoContext(ctx, "reconcile run finished",
		"duration", time.Since(started).Round(time.Millisecond),
		"cached_videos", stats.CachedVideos,
		"cached_channels", stats.CachedChannels,
		"deleted_items", stats.DeletedItems,
		"deleted_channels", stats.DeletedChannels,
		"new_items", stats.NewItems,
		"new_channels", stats.NewChannels,
		"resurrected", stats.Resurrected,
		"synced_items", stats.SyncedItems,
		"synced_channels", stats.SyncedChannels,
		"errors", stats.Errors,
	)
	return stats, nil
}
