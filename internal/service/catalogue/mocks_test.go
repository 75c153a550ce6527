package catalogue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/perm"
)

// Mock func fields left nil fall back to "empty world" behaviour: lookups
// report not found, mutations succeed.

type itemRepoMock struct {
	GetByIDFunc      func(ctx context.Context, id string) (*domain.MediaItem, error)
	CreateFunc       func(ctx context.Context, item *domain.MediaItem) error
	UpdateFunc       func(ctx context.Context, item *domain.MediaItem) error
	DeleteFunc       func(ctx context.Context, id string) error
	ListFunc         func(ctx context.Context, p domain.Principal, m domain.Membership, f domain.MediaItemFilter) (*domain.MediaItemPage, error)
	CountVisibleFunc func(ctx context.Context, p domain.Principal, m domain.Membership, channelID string) (int, error)
}

func (m *itemRepoMock) GetByID(ctx context.Context, id string) (*domain.MediaItem, error) {
	if m.GetByIDFunc == nil {
		return nil, notFound("media item", id)
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *itemRepoMock) Create(ctx context.Context, item *domain.MediaItem) error {
	if m.CreateFunc == nil {
		return nil
	}
	return m.CreateFunc(ctx, item)
}

func (m *itemRepoMock) Update(ctx context.Context, item *domain.MediaItem) error {
	if m.UpdateFunc == nil {
		return nil
	}
	return m.UpdateFunc(ctx, item)
}

func (m *itemRepoMock) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

func (m *itemRepoMock) List(ctx context.Context, p domain.Principal, mem domain.Membership, f domain.MediaItemFilter) (*domain.MediaItemPage, error) {
	if m.ListFunc == nil {
		return &domain.MediaItemPage{Items: []domain.AnnotatedMediaItem{}}, nil
	}
	return m.ListFunc(ctx, p, mem, f)
}

func (m *itemRepoMock) CountVisible(ctx context.Context, p domain.Principal, mem domain.Membership, channelID string) (int, error) {
	if m.CountVisibleFunc == nil {
		return 0, nil
	}
	return m.CountVisibleFunc(ctx, p, mem, channelID)
}

type channelRepoMock struct {
	GetByIDFunc func(ctx context.Context, id string) (*domain.Channel, error)
	ListFunc    func(ctx context.Context, search string) ([]domain.Channel, error)
	CreateFunc  func(ctx context.Context, ch *domain.Channel) error
	UpdateFunc  func(ctx context.Context, ch *domain.Channel) error
	DeleteFunc  func(ctx context.Context, id string) error
}

func (m *channelRepoMock) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	if m.GetByIDFunc == nil {
		return nil, notFound("channel", id)
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *channelRepoMock) List(ctx context.Context, search string) ([]domain.Channel, error) {
	if m.ListFunc == nil {
		return nil, nil
	}
	return m.ListFunc(ctx, search)
}

func (m *channelRepoMock) Create(ctx context.Context, ch *domain.Channel) error {
	if m.CreateFunc == nil {
		return nil
	}
	return m.CreateFunc(ctx, ch)
}

func (m *channelRepoMock) Update(ctx context.Context, ch *domain.Channel) error {
	if m.UpdateFunc == nil {
		return nil
	}
	return m.UpdateFunc(ctx, ch)
}

func (m *channelRepoMock) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

type playlistRepoMock struct {
	GetByIDFunc       func(ctx context.Context, id string) (*domain.Playlist, error)
	ListByChannelFunc func(ctx context.Context, channelID, search string) ([]domain.Playlist, error)
	CreateFunc        func(ctx context.Context, pl *domain.Playlist) error
	UpdateFunc        func(ctx context.Context, pl *domain.Playlist) error
	DeleteFunc        func(ctx context.Context, id string) error
}

func (m *playlistRepoMock) GetByID(ctx context.Context, id string) (*domain.Playlist, error) {
	if m.GetByIDFunc == nil {
		return nil, notFound("playlist", id)
	}
	return m.GetByIDFunc(ctx, id)
}

func (m *playlistRepoMock) ListByChannel(ctx context.Context, channelID, search string) ([]domain.Playlist, error) {
	if m.ListByChannelFunc == nil {
		return nil, nil
	}
	return m.ListByChannelFunc(ctx, channelID, search)
}

func (m *playlistRepoMock) Create(ctx context.Context, pl *domain.Playlist) error {
	if m.CreateFunc == nil {
		return nil
	}
	return m.CreateFunc(ctx, pl)
}

func (m *playlistRepoMock) Update(ctx context.Context, pl *domain.Playlist) error {
	if m.UpdateFunc == nil {
		return nil
	}
	return m.UpdateFunc(ctx, pl)
}

func (m *playlistRepoMock) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc == nil {
		return nil
	}
	return m.DeleteFunc(ctx, id)
}

type permissionRepoMock struct {
	CreateFunc              func(ctx context.Context, p *domain.Permission) error
	UpdateFunc              func(ctx context.Context, p *domain.Permission) error
	GetViewForItemFunc      func(ctx context.Context, itemID string) (*domain.Permission, error)
	GetEditForItemFunc      func(ctx context.Context, itemID string) (*domain.Permission, error)
	GetEditForChannelFunc   func(ctx context.Context, channelID string) (*domain.Permission, error)
	GetViewForPlaylistFunc  func(ctx context.Context, playlistID string) (*domain.Permission, error)
	GetCreateForAccountFunc func(ctx context.Context, acctID string) (*domain.Permission, error)
}

func (m *permissionRepoMock) Create(ctx context.Context, p *domain.Permission) error {
	if m.CreateFunc == nil {
		return nil
	}
	return m.CreateFunc(ctx, p)
}

func (m *permissionRepoMock) Update(ctx context.Context, p *domain.Permission) error {
	if m.UpdateFunc == nil {
		return nil
	}
	return m.UpdateFunc(ctx, p)
}

func (m *permissionRepoMock) GetViewForItem(ctx context.Context, itemID string) (*domain.Permission, error) {
	if m.GetViewForItemFunc == nil {
		return nil, notFound("permission", itemID)
	}
	return m.GetViewForItemFunc(ctx, itemID)
}

func (m *permissionRepoMock) GetEditForItem(ctx context.Context, itemID string) (*domain.Permission, error) {
	if m.GetEditForItemFunc == nil {
		return nil, notFound("permission", itemID)
	}
	return m.GetEditForItemFunc(ctx, itemID)
}

func (m *permissionRepoMock) GetEditForChannel(ctx context.Context, channelID string) (*domain.Permission, error) {
	if m.GetEditForChannelFunc == nil {
		return nil, notFound("permission", channelID)
	}
	return m.GetEditForChannelFunc(ctx, channelID)
}

func (m *permissionRepoMock) GetViewForPlaylist(ctx context.Context, playlistID string) (*domain.Permission, error) {
	if m.GetViewForPlaylistFunc == nil {
		return nil, notFound("permission", playlistID)
	}
	return m.GetViewForPlaylistFunc(ctx, playlistID)
}

func (m *permissionRepoMock) GetCreateForAccount(ctx context.Context, acctID string) (*domain.Permission, error) {
	if m.GetCreateForAccountFunc == nil {
		return nil, notFound("permission", acctID)
	}
	return m.GetCreateForAccountFunc(ctx, acctID)
}

type accountRepoMock struct {
	GetByIDFunc func(ctx context.Context, id string) (*domain.BillingAccount, error)
}

func (m *accountRepoMock) GetByID(ctx context.Context, id string) (*domain.BillingAccount, error) {
	if m.GetByIDFunc == nil {
		return nil, notFound("billing account", id)
	}
	return m.GetByIDFunc(ctx, id)
}

type legacyRepoMock struct {
	ItemIsLinkedFunc    func(ctx context.Context, itemID string) (bool, error)
	ChannelIsLinkedFunc func(ctx context.Context, channelID string) (bool, error)
}

func (m *legacyRepoMock) ItemIsLinked(ctx context.Context, itemID string) (bool, error) {
	if m.ItemIsLinkedFunc == nil {
		return false, nil
	}
	return m.ItemIsLinkedFunc(ctx, itemID)
}

func (m *legacyRepoMock) ChannelIsLinked(ctx context.Context, channelID string) (bool, error) {
	if m.ChannelIsLinkedFunc == nil {
		return false, nil
	}
	return m.ChannelIsLinkedFunc(ctx, channelID)
}

type endpointRepoMock struct {
	GetLiveForItemFunc func(ctx context.Context, itemID string) (*domain.UploadEndpoint, error)
}

func (m *endpointRepoMock) GetLiveForItem(ctx context.Context, itemID string) (*domain.UploadEndpoint, error) {
	if m.GetLiveForItemFunc == nil {
		return nil, notFound("upload endpoint", itemID)
	}
	return m.GetLiveForItemFunc(ctx, itemID)
}

type linkRepoMock struct {
	VideoLinkForItemFunc func(ctx context.Context, itemID string) (*domain.VideoLink, error)
}

func (m *linkRepoMock) VideoLinkForItem(ctx context.Context, itemID string) (*domain.VideoLink, error) {
	if m.VideoLinkForItemFunc == nil {
		return nil, notFound("video link", itemID)
	}
	return m.VideoLinkForItemFunc(ctx, itemID)
}

type cacheRepoMock struct {
	GetFunc func(ctx context.Context, typ domain.CacheResourceType, key string) (*domain.CacheResource, error)
}

func (m *cacheRepoMock) Get(ctx context.Context, typ domain.CacheResourceType, key string) (*domain.CacheResource, error) {
	if m.GetFunc == nil {
		return nil, notFound("cached resource", key)
	}
	return m.GetFunc(ctx, typ, key)
}

type busMock struct {
	Published []string
	Err       error
}

func (m *busMock) PublishMediaItem(itemID string) error {
	m.Published = append(m.Published, itemID)
	return m.Err
}

// txMock runs the function in place, with no transaction semantics.
type txMock struct{}

func (txMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
}

// deps bundles the service's mocked dependencies so tests only name the
// ones they care about.
type deps struct {
	items     *itemRepoMock
	channels  *channelRepoMock
	playlists *playlistRepoMock
	perms     *permissionRepoMock
	accounts  *accountRepoMock
	legacy    *legacyRepoMock
	endpoints *endpointRepoMock
	links     *linkRepoMock
	cache     *cacheRepoMock
	bus       *busMock
}

func newTestService(d *deps) (*Service, *deps) {
	if d == nil {
		d = &deps{}
	}
	if d.items == nil {
		d.items = &itemRepoMock{}
	}
	if d.channels == nil {
		d.channels = &channelRepoMock{}
	}
	if d.playlists == nil {
		d.playlists = &playlistRepoMock{}
	}
	if d.perms == nil {
		d.perms = &permissionRepoMock{}
	}
	if d.accounts == nil {
		d.accounts = &accountRepoMock{}
	}
	if d.legacy == nil {
		d.legacy = &legacyRepoMock{}
	}
	if d.endpoints == nil {
		d.endpoints = &endpointRepoMock{}
	}
	if d.links == nil {
		d.links = &linkRepoMock{}
	}
	if d.cache == nil {
		d.cache = &cacheRepoMock{}
	}
	if d.bus == nil {
		d.bus = &busMock{}
	}

	svc := NewService(
		slog.New(slog.DiscardHandler),
		perm.New(time.Now),
		d.items, d.channels, d.playlists, d.perms, d.accounts,
		d.legacy, d.endpoints, d.links, d.cache, d.bus, txMock{},
	)
	return svc, d
}
