// Package outbound propagates catalogue changes to the content delivery
// backend: it keeps the CDB video resource of each media item up to date
// and manages upload endpoints.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/uisautomation/mediaplatform/internal/cdb"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// UploadEndpointLifetime is recorded as the expiry of newly created upload
// endpoints. The backend's own links live slightly longer; the margin
// keeps us from handing out a link about to expire.
const UploadEndpointLifetime = 6 * 24 * time.Hour

type itemRepo interface {
	GetByID(ctx context.Context, id string) (*domain.MediaItem, error)
}

type permissionRepo interface {
	GetViewForItem(ctx context.Context, itemID string) (*domain.Permission, error)
}

type linkRepo interface {
	VideoLinkForItem(ctx context.Context, itemID string) (*domain.VideoLink, error)
	UpsertVideoLink(ctx context.Context, link domain.VideoLink) error
}

type endpointRepo interface {
	Create(ctx context.Context, ep *domain.UploadEndpoint) error
	DeleteForItem(ctx context.Context, itemID string) (int, error)
}

type cdbClient interface {
	CreateVideo(ctx context.Context, params url.Values) (string, error)
	UpdateVideo(ctx context.Context, key string, updates url.Values) error
	CreateUploadLink(ctx context.Context, key string) (*cdb.UploadLink, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service pushes media item state to the CDB.
type Service struct {
	defaultSync bool

	cdb       cdbClient
	items     itemRepo
	perms     permissionRepo
	links     linkRepo
	endpoints endpointRepo
	tx        txManager
	log       *slog.Logger
	now       func() time.Time
}

// NewService creates the outbound updater. defaultSync is the process-wide
// toggle; WithSync overrides it per task.
func NewService(
	log *slog.Logger,
	defaultSync bool,
	client cdbClient,
	items itemRepo,
	perms permissionRepo,
	links linkRepo,
	endpoints endpointRepo,
	tx txManager,
) *Service {
	return &Service{
		defaultSync: defaultSync,
		cdb:         client,
		items:       items,
		perms:       perms,
		links:       links,
		endpoints:   endpoints,
		tx:          tx,
		log:         log.With("service", "outbound"),
		now:         time.Now,
	}
}

// SyncItem ensures the CDB resource for the item exists and mirrors the
// item's current metadata, ACL included. No-op when the sync toggle is off
// for the calling scope. Creating a resource also records the returned
// upload endpoint unless the backend is fetching the bytes itself.
func (s *Service) SyncItem(ctx context.Context, itemID string) error {
	if !SyncEnabled(ctx, s.defaultSync) {
		return nil
	}

	item, err := s.items.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The item disappeared between the event and now; nothing to
			// propagate.
			return nil
		}
		return fmt.Errorf("load item for sync: %w", err)
	}

	view, err := s.perms.GetViewForItem(ctx, itemID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load view permission for sync: %w", err)
	}

	params := videoParams(item, view)

	link, err := s.links.VideoLinkForItem(ctx, itemID)
	switch {
	case err == nil:
		return s.updateExisting(ctx, item, link, params)
	case errors.Is(err, domain.ErrNotFound):
		return s.createResource(ctx, item, params)
	default:
		return fmt.Errorf("load video link for sync: %w", err)
	}
}

func (s *Service) updateExisting(ctx context.Context, item *domain.MediaItem, link *domain.VideoLink, params url.Values) error {
	if err := s.cdb.UpdateVideo(ctx, link.Key, params); err != nil {
		return fmt.Errorf("push item %s to cdb: %w", item.ID, err)
	}

	link.Updated = item.UpdatedAt.Unix()
	if err := s.links.UpsertVideoLink(ctx, *link); err != nil {
		return fmt.Errorf("record sync watermark for %s: %w", item.ID, err)
	}

	s.log.InfoContext(ctx, "synced item to cdb", "item_id", item.ID, "video_key", link.Key)
	return nil
}

func (s *Service) createResource(ctx context.Context, item *domain.MediaItem, params url.Values) error {
	if item.InitiallyFetchedFromURL != "" {
		params.Set("download_url", item.InitiallyFetchedFromURL)
	}

	key, err := s.cdb.CreateVideo(ctx, params)
	if err != nil {
		return fmt.Errorf("create cdb video for %s: %w", item.ID, err)
	}

	itemID := item.ID
	err = s.links.UpsertVideoLink(ctx, domain.VideoLink{
		Key:     key,
		ItemID:  &itemID,
		Updated: item.UpdatedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("record video link for %s: %w", item.ID, err)
	}

	s.log.InfoContext(ctx, "created cdb video", "item_id", item.ID, "video_key", key)

	if item.InitiallyFetchedFromURL != "" {
		// The backend fetches the bytes itself; there is nothing to upload.
		return nil
	}

	link, err := s.cdb.CreateUploadLink(ctx, key)
	if err != nil {
		return fmt.Errorf("create upload link for %s: %w", item.ID, err)
	}
	return s.recordEndpoint(ctx, item.ID, link)
}

// RefreshUploadEndpoint obtains a fresh upload endpoint for an item which
// already has a CDB resource. Items without one cannot be refreshed.
func (s *Service) RefreshUploadEndpoint(ctx context.Context, itemID string) (*domain.UploadEndpoint, error) {
	link, err := s.links.VideoLinkForItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("item %s has no video link: %w", itemID, err)
	}

	uploadLink, err := s.cdb.CreateUploadLink(ctx, link.Key)
	if err != nil {
		return nil, fmt.Errorf("refresh upload endpoint for %s: %w", itemID, err)
	}

	if err := s.recordEndpoint(ctx, itemID, uploadLink); err != nil {
		return nil, err
	}
	return s.endpointForLink(itemID, uploadLink), nil
}

// recordEndpoint stores the endpoint, replacing any prior ones for the
// item in the same transaction.
func (s *Service) recordEndpoint(ctx context.Context, itemID string, link *cdb.UploadLink) error {
	ep := s.endpointForLink(itemID, link)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.endpoints.DeleteForItem(ctx, itemID); err != nil {
			return err
		}
		return s.endpoints.Create(ctx, ep)
	})
	if err != nil {
		return fmt.Errorf("record upload endpoint for %s: %w", itemID, err)
	}

	s.log.InfoContext(ctx, "recorded upload endpoint", "item_id", itemID, "expires_at", ep.ExpiresAt)
	return nil
}

func (s *Service) endpointForLink(itemID string, link *cdb.UploadLink) *domain.UploadEndpoint {
	return &domain.UploadEndpoint{
		ID:        domain.NewToken(),
		ItemID:    itemID,
		URL:       link.URL(),
		ExpiresAt: s.now().Add(UploadEndpointLifetime),
	}
}

// videoParams renders an item and its view permission as CDB update
// parameters, the inverse of the reconciler's metadata sync.
func videoParams(item *domain.MediaItem, view *domain.Permission) url.Values {
	description := item.Description
	if description == "" {
		// The backend rejects blank descriptions.
		description = " "
	}

	downloadable := "False"
	if item.Downloadable {
		downloadable = "True"
	}

	params := url.Values{
		"title":       {item.Title},
		"description": {description},

		"custom.sms_downloadable": {cdb.FormatCustomField("downloadable", downloadable)},
		"custom.sms_language":     {cdb.FormatCustomField("language", item.Language)},
		"custom.sms_copyright":    {cdb.FormatCustomField("copyright", item.Copyright)},
		"custom.sms_keywords":     {cdb.FormatCustomField("keywords", strings.Join(item.Tags, "|"))},
	}

	if item.PublishedAt != nil {
		params.Set("date", strconv.FormatInt(item.PublishedAt.Unix(), 10))
	}
	if view != nil {
		acl := strings.Join(cdb.PermissionToACL(view), ",")
		params.Set("custom.sms_acl", cdb.FormatCustomField("acl", acl))
	}
	return params
}
