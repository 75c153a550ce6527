// Package catalogue is the mutation and single-object read façade of the
// media platform. It enforces authorization on every operation, keeps the
// object/permission pairing intact and announces item changes on the bus
// after the transaction which made them has committed.
package catalogue

import (
	"context"
	"errors"
	"log/slog"

	"github.com/uisautomation/mediaplatform/internal/cdb"
	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/perm"
)

type itemRepo interface {
	GetByID(ctx context.Context, id string) (*domain.MediaItem, error)
	Create(ctx context.Context, item *domain.MediaItem) error
	Update(ctx context.Context, item *domain.MediaItem) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, p domain.Principal, m domain.Membership, f domain.MediaItemFilter) (*domain.MediaItemPage, error)
	CountVisible(ctx context.Context, p domain.Principal, m domain.Membership, channelID string) (int, error)
}

type channelRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
	List(ctx context.Context, search string) ([]domain.Channel, error)
	Create(ctx context.Context, ch *domain.Channel) error
	Update(ctx context.Context, ch *domain.Channel) error
	Delete(ctx context.Context, id string) error
}

type playlistRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Playlist, error)
	ListByChannel(ctx context.Context, channelID, search string) ([]domain.Playlist, error)
	Create(ctx context.Context, pl *domain.Playlist) error
	Update(ctx context.Context, pl *domain.Playlist) error
	Delete(ctx context.Context, id string) error
}

type permissionRepo interface {
	Create(ctx context.Context, p *domain.Permission) error
	Update(ctx context.Context, p *domain.Permission) error
	GetViewForItem(ctx context.Context, itemID string) (*domain.Permission, error)
	GetEditForItem(ctx context.Context, itemID string) (*domain.Permission, error)
	GetEditForChannel(ctx context.Context, channelID string) (*domain.Permission, error)
	GetViewForPlaylist(ctx context.Context, playlistID string) (*domain.Permission, error)
	GetCreateForAccount(ctx context.Context, acctID string) (*domain.Permission, error)
}

type accountRepo interface {
	GetByID(ctx context.Context, id string) (*domain.BillingAccount, error)
}

type legacyRepo interface {
	ItemIsLinked(ctx context.Context, itemID string) (bool, error)
	ChannelIsLinked(ctx context.Context, channelID string) (bool, error)
}

type endpointRepo interface {
	GetLiveForItem(ctx context.Context, itemID string) (*domain.UploadEndpoint, error)
}

type linkRepo interface {
	VideoLinkForItem(ctx context.Context, itemID string) (*domain.VideoLink, error)
}

type cacheRepo interface {
	Get(ctx context.Context, typ domain.CacheResourceType, key string) (*domain.CacheResource, error)
}

type eventBus interface {
	PublishMediaItem(itemID string) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements the catalogue operations.
type Service struct {
	eval      *perm.Evaluator
	items     itemRepo
	channels  channelRepo
	playlists playlistRepo
	perms     permissionRepo
	accounts  accountRepo
	legacy    legacyRepo
	endpoints endpointRepo
	links     linkRepo
	cache     cacheRepo
	bus       eventBus
	tx        txManager
	log       *slog.Logger
}

// NewService creates the catalogue service.
func NewService(
	log *slog.Logger,
	eval *perm.Evaluator,
	items itemRepo,
	channels channelRepo,
	playlists playlistRepo,
	perms permissionRepo,
	accounts accountRepo,
	legacy legacyRepo,
	endpoints endpointRepo,
	links linkRepo,
	cache cacheRepo,
	bus eventBus,
	tx txManager,
) *Service {
	return &Service{
		eval:      eval,
		items:     items,
		channels:  channels,
		playlists: playlists,
		perms:     perms,
		accounts:  accounts,
		legacy:    legacy,
		endpoints: endpoints,
		links:     links,
		cache:     cache,
		bus:       bus,
		tx:        tx,
		log:       log.With("service", "catalogue"),
	}
}

// PermissionInput carries the mutable access fields of a permission.
type PermissionInput struct {
	CRSIDs       []string
	LookupGroups []string
	LookupInsts  []string
	IsPublic     bool
	IsSignedIn   bool
}

func (in PermissionInput) applyTo(p *domain.Permission) {
	p.CRSIDs = in.CRSIDs
	p.LookupGroups = in.LookupGroups
	p.LookupInsts = in.LookupInsts
	p.IsPublic = in.IsPublic
	p.IsSignedIn = in.IsSignedIn
}

// publishItem announces an item change after commit. Delivery failures are
// logged; they must not fail the already-committed mutation.
func (s *Service) publishItem(ctx context.Context, itemID string) {
	if err := s.bus.PublishMediaItem(itemID); err != nil {
		s.log.ErrorContext(ctx, "publish item event", "item_id", itemID, "error", err)
	}
}

// channelEditable loads the channel's edit permission and legacy lock and
// evaluates editability. The returned channel has its EditPermission set.
func (s *Service) channelEditable(ctx context.Context, p domain.Principal, m domain.Membership, ch *domain.Channel) (bool, error) {
	edit, err := s.perms.GetEditForChannel(ctx, ch.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	ch.EditPermission = edit

	locked, err := s.legacy.ChannelIsLinked(ctx, ch.ID)
	if err != nil {
		return false, err
	}
	return s.eval.ChannelEditable(p, m, ch, locked), nil
}

// itemEditable evaluates editability of an item through its containing
// channel.
func (s *Service) itemEditable(ctx context.Context, p domain.Principal, m domain.Membership, item *domain.MediaItem) (bool, error) {
	var channelEdit *domain.Permission
	if item.ChannelID != nil {
		edit, err := s.perms.GetEditForChannel(ctx, *item.ChannelID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
		channelEdit = edit
	}

	locked, err := s.legacy.ItemIsLinked(ctx, item.ID)
	if err != nil {
		return false, err
	}
	return s.eval.ItemEditable(p, m, item, channelEdit, locked), nil
}

// itemReady reports whether the item's delivery backend resource, if any, is
// not in the error state. Items with no resource yet count as ready.
func (s *Service) itemReady(ctx context.Context, itemID string) (bool, error) {
	link, err := s.links.VideoLinkForItem(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	res, err := s.cache.Get(ctx, domain.CacheResourceVideo, link.Key)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	doc, err := cdb.DecodeResource(res.Data)
	if err != nil {
		// A malformed cache row should not hide the item.
		s.log.WarnContext(ctx, "undecodable cached resource", "key", link.Key, "error", err)
		return true, nil
	}
	return doc.Status() != cdb.StatusError, nil
}
