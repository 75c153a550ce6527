package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/uisautomation/mediaplatform/internal/cdb"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// The reconciler's behaviour is about sequencing writes across several
// stores, so the tests run full reconciliations against small in-memory
// fakes rather than asserting on individual calls.

type cdbStub struct {
	videos   []cdb.Resource
	channels []cdb.Resource
}

func (c *cdbStub) ListVideos(_ context.Context, offset int) (*cdb.VideoList, error) {
	return &cdb.VideoList{Videos: pageOf(c.videos, offset), Total: len(c.videos)}, nil
}

func (c *cdbStub) ListChannels(_ context.Context, offset int) (*cdb.ChannelList, error) {
	return &cdb.ChannelList{Channels: pageOf(c.channels, offset), Total: len(c.channels)}, nil
}

func pageOf(all []cdb.Resource, offset int) []cdb.Resource {
	if offset >= len(all) {
		return nil
	}
	return all[offset:]
}

type cacheFake struct {
	live map[domain.CacheResourceType]map[string]json.RawMessage
}

func newCacheFake() *cacheFake {
	return &cacheFake{live: map[domain.CacheResourceType]map[string]json.RawMessage{
		domain.CacheResourceVideo:   {},
		domain.CacheResourceChannel: {},
	}}
}

func (c *cacheFake) UpsertBatch(_ context.Context, typ domain.CacheResourceType, docs map[string]json.RawMessage) error {
	for key, doc := range docs {
		c.live[typ][key] = doc
	}
	return nil
}

func (c *cacheFake) SoftDeleteUnseen(_ context.Context, typ domain.CacheResourceType, seen []string) (int, error) {
	keep := make(map[string]bool, len(seen))
	for _, key := range seen {
		keep[key] = true
	}
	dropped := 0
	for key := range c.live[typ] {
		if !keep[key] {
			delete(c.live[typ], key)
			dropped++
		}
	}
	return dropped, nil
}

func (c *cacheFake) ListLive(_ context.Context, typ domain.CacheResourceType) ([]domain.CacheResource, error) {
	var out []domain.CacheResource
	for key, doc := range c.live[typ] {
		out = append(out, domain.CacheResource{Key: key, Type: typ, Data: doc})
	}
	return out, nil
}

type linkFake struct {
	videos   map[string]domain.VideoLink
	channels map[string]domain.ChannelLink
}

func newLinkFake() *linkFake {
	return &linkFake{videos: map[string]domain.VideoLink{}, channels: map[string]domain.ChannelLink{}}
}

func (l *linkFake) VideoLinks(_ context.Context) (map[string]domain.VideoLink, error) {
	out := make(map[string]domain.VideoLink, len(l.videos))
	for k, v := range l.videos {
		out[k] = v
	}
	return out, nil
}

func (l *linkFake) UpsertVideoLink(_ context.Context, link domain.VideoLink) error {
	l.videos[link.Key] = link
	return nil
}

func (l *linkFake) SetVideoWatermark(_ context.Context, key string, updated int64) error {
	link, ok := l.videos[key]
	if !ok {
		return fmt.Errorf("video link %s: %w", key, domain.ErrNotFound)
	}
	link.Updated = updated
	l.videos[key] = link
	return nil
}

func (l *linkFake) DeleteVideoLinks(_ context.Context, keys []string) (int, error) {
	n := 0
	for _, key := range keys {
		if _, ok := l.videos[key]; ok {
			delete(l.videos, key)
			n++
		}
	}
	return n, nil
}

func (l *linkFake) ChannelLinks(_ context.Context) (map[string]domain.ChannelLink, error) {
	out := make(map[string]domain.ChannelLink, len(l.channels))
	for k, v := range l.channels {
		out[k] = v
	}
	return out, nil
}

func (l *linkFake) UpsertChannelLink(_ context.Context, link domain.ChannelLink) error {
	l.channels[link.Key] = link
	return nil
}

func (l *linkFake) SetChannelWatermark(_ context.Context, key string, updated int64) error {
	link, ok := l.channels[key]
	if !ok {
		return fmt.Errorf("channel link %s: %w", key, domain.ErrNotFound)
	}
	link.Updated = updated
	l.channels[key] = link
	return nil
}

func (l *linkFake) DeleteChannelLinks(_ context.Context, keys []string) (int, error) {
	n := 0
	for _, key := range keys {
		if _, ok := l.channels[key]; ok {
			delete(l.channels, key)
			n++
		}
	}
	return n, nil
}

type itemFake struct {
	items map[string]*domain.MediaItem
}

func newItemFake() *itemFake {
	return &itemFake{items: map[string]*domain.MediaItem{}}
}

func (f *itemFake) GetAnyByID(_ context.Context, id string) (*domain.MediaItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("media item %s: %w", id, domain.ErrNotFound)
	}
	clone := *item
	return &clone, nil
}

func (f *itemFake) CreateBatch(_ context.Context, items []*domain.MediaItem) error {
	for _, item := range items {
		clone := *item
		f.items[item.ID] = &clone
	}
	return nil
}

func (f *itemFake) Update(_ context.Context, item *domain.MediaItem) error {
	if _, ok := f.items[item.ID]; !ok {
		return fmt.Errorf("media item %s: %w", item.ID, domain.ErrNotFound)
	}
	clone := *item
	f.items[item.ID] = &clone
	return nil
}

func (f *itemFake) DeleteBatch(_ context.Context, ids []string) (int, error) {
	now := time.Now()
	n := 0
	for _, id := range ids {
		if item, ok := f.items[id]; ok && !item.IsDeleted() {
			item.DeletedAt = &now
			n++
		}
	}
	return n, nil
}

func (f *itemFake) Restore(_ context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		if item, ok := f.items[id]; ok && item.IsDeleted() {
			item.DeletedAt = nil
			n++
		}
	}
	return n, nil
}

func (f *itemFake) SetChannel(_ context.Context, ids []string, channelID *string) (int, error) {
	n := 0
	for _, id := range ids {
		if item, ok := f.items[id]; ok && !item.IsDeleted() {
			item.ChannelID = channelID
			n++
		}
	}
	return n, nil
}

func (f *itemFake) IDsInChannels(_ context.Context, channelIDs []string) ([]string, error) {
	wanted := make(map[string]bool, len(channelIDs))
	for _, id := range channelIDs {
		wanted[id] = true
	}
	var out []string
	for id, item := range f.items {
		if item.IsDeleted() || item.ChannelID == nil {
			continue
		}
		if wanted[*item.ChannelID] {
			out = append(out, id)
		}
	}
	return out, nil
}

type channelFake struct {
	channels map[string]*domain.Channel
}

func newChannelFake() *channelFake {
	return &channelFake{channels: map[string]*domain.Channel{}}
}

func (f *channelFake) GetByID(_ context.Context, id string) (*domain.Channel, error) {
	ch, ok := f.channels[id]
	if !ok || ch.IsDeleted() {
		return nil, fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}
	clone := *ch
	return &clone, nil
}

func (f *channelFake) Create(_ context.Context, ch *domain.Channel) error {
	clone := *ch
	f.channels[ch.ID] = &clone
	return nil
}

func (f *channelFake) Update(_ context.Context, ch *domain.Channel) error {
	if _, ok := f.channels[ch.ID]; !ok {
		return fmt.Errorf("channel %s: %w", ch.ID, domain.ErrNotFound)
	}
	clone := *ch
	f.channels[ch.ID] = &clone
	return nil
}

func (f *channelFake) Delete(_ context.Context, id string) error {
	ch, ok := f.channels[id]
	if !ok || ch.IsDeleted() {
		return fmt.Errorf("channel %s: %w", id, domain.ErrNotFound)
	}
	now := time.Now()
	ch.DeletedAt = &now
	return nil
}

type playlistFake struct {
	playlists map[string]*domain.Playlist
}

func newPlaylistFake() *playlistFake {
	return &playlistFake{playlists: map[string]*domain.Playlist{}}
}

func (f *playlistFake) GetByID(_ context.Context, id string) (*domain.Playlist, error) {
	pl, ok := f.playlists[id]
	if !ok || pl.IsDeleted() {
		return nil, fmt.Errorf("playlist %s: %w", id, domain.ErrNotFound)
	}
	clone := *pl
	return &clone, nil
}

func (f *playlistFake) Create(_ context.Context, pl *domain.Playlist) error {
	clone := *pl
	f.playlists[pl.ID] = &clone
	return nil
}

func (f *playlistFake) Update(_ context.Context, pl *domain.Playlist) error {
	if _, ok := f.playlists[pl.ID]; !ok {
		return fmt.Errorf("playlist %s: %w", pl.ID, domain.ErrNotFound)
	}
	clone := *pl
	f.playlists[pl.ID] = &clone
	return nil
}

func (f *playlistFake) Delete(_ context.Context, id string) error {
	pl, ok := f.playlists[id]
	if !ok || pl.IsDeleted() {
		return fmt.Errorf("playlist %s: %w", id, domain.ErrNotFound)
	}
	now := time.Now()
	pl.DeletedAt = &now
	return nil
}

type permFake struct {
	perms map[string]*domain.Permission
}

func newPermFake() *permFake {
	return &permFake{perms: map[string]*domain.Permission{}}
}

func (f *permFake) Create(_ context.Context, p *domain.Permission) error {
	clone := *p
	f.perms[p.ID] = &clone
	return nil
}

func (f *permFake) Update(_ context.Context, p *domain.Permission) error {
	if _, ok := f.perms[p.ID]; !ok {
		return fmt.Errorf("permission %s: %w", p.ID, domain.ErrNotFound)
	}
	clone := *p
	f.perms[p.ID] = &clone
	return nil
}

func (f *permFake) GetViewForItem(_ context.Context, itemID string) (*domain.Permission, error) {
	for _, p := range f.perms {
		if p.AllowsViewItemID != nil && *p.AllowsViewItemID == itemID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("view permission for item %s: %w", itemID, domain.ErrNotFound)
}

func (f *permFake) GetEditForChannel(_ context.Context, channelID string) (*domain.Permission, error) {
	for _, p := range f.perms {
		if p.AllowsEditChannelID != nil && *p.AllowsEditChannelID == channelID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("edit permission for channel %s: %w", channelID, domain.ErrNotFound)
}

func (f *permFake) GetViewForPlaylist(_ context.Context, playlistID string) (*domain.Permission, error) {
	for _, p := range f.perms {
		if p.AllowsViewPlaylistID != nil && *p.AllowsViewPlaylistID == playlistID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("view permission for playlist %s: %w", playlistID, domain.ErrNotFound)
}

func (f *permFake) EnsureViewForItems(ctx context.Context, itemIDs []string) (int, error) {
	n := 0
	for _, id := range itemIDs {
		if _, err := f.GetViewForItem(ctx, id); err == nil {
			continue
		}
		view := domain.NewPermission()
		itemID := id
		view.AllowsViewItemID = &itemID
		f.perms[view.ID] = &view
		n++
	}
	return n, nil
}

func (f *permFake) EnsureEditForItems(_ context.Context, itemIDs []string) (int, error) {
	n := 0
	for _, id := range itemIDs {
		exists := false
		for _, p := range f.perms {
			if p.AllowsEditItemID != nil && *p.AllowsEditItemID == id {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		edit := domain.NewPermission()
		itemID := id
		edit.AllowsEditItemID = &itemID
		f.perms[edit.ID] = &edit
		n++
	}
	return n, nil
}

type legacyFake struct {
	items       map[int64]domain.LegacyItem
	collections map[int64]domain.LegacyCollection
}

func newLegacyFake() *legacyFake {
	return &legacyFake{items: map[int64]domain.LegacyItem{}, collections: map[int64]domain.LegacyCollection{}}
}

func (f *legacyFake) GetItemByLegacyID(_ context.Context, legacyID int64) (*domain.LegacyItem, error) {
	li, ok := f.items[legacyID]
	if !ok {
		return nil, fmt.Errorf("legacy item %d: %w", legacyID, domain.ErrNotFound)
	}
	return &li, nil
}

func (f *legacyFake) UpsertItem(_ context.Context, li domain.LegacyItem) error {
	f.items[li.ID] = li
	return nil
}

func (f *legacyFake) DeleteItemsForItems(_ context.Context, itemIDs []string) (int, error) {
	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	n := 0
	for legacyID, li := range f.items {
		if li.ItemID != nil && wanted[*li.ItemID] {
			delete(f.items, legacyID)
			n++
		}
	}
	return n, nil
}

func (f *legacyFake) GetCollectionByLegacyID(_ context.Context, legacyID int64) (*domain.LegacyCollection, error) {
	lc, ok := f.collections[legacyID]
	if !ok {
		return nil, fmt.Errorf("legacy collection %d: %w", legacyID, domain.ErrNotFound)
	}
	return &lc, nil
}

func (f *legacyFake) UpsertCollection(_ context.Context, lc domain.LegacyCollection) error {
	f.collections[lc.ID] = lc
	return nil
}

func (f *legacyFake) CollectionsForChannels(_ context.Context, channelIDs []string) ([]domain.LegacyCollection, error) {
	wanted := make(map[string]bool, len(channelIDs))
	for _, id := range channelIDs {
		wanted[id] = true
	}
	var out []domain.LegacyCollection
	for _, lc := range f.collections {
		if lc.ChannelID != nil && wanted[*lc.ChannelID] {
			out = append(out, lc)
		}
	}
	return out, nil
}

func (f *legacyFake) DeleteCollectionsForChannels(_ context.Context, channelIDs []string) (int, error) {
	wanted := make(map[string]bool, len(channelIDs))
	for _, id := range channelIDs {
		wanted[id] = true
	}
	n := 0
	for legacyID, lc := range f.collections {
		if lc.ChannelID != nil && wanted[*lc.ChannelID] {
			delete(f.collections, legacyID)
			n++
		}
	}
	return n, nil
}

type accountFake struct {
	accounts map[string]*domain.BillingAccount
}

func newAccountFake() *accountFake {
	return &accountFake{accounts: map[string]*domain.BillingAccount{}}
}

func (f *accountFake) GetByLookupInstID(_ context.Context, instID string) (*domain.BillingAccount, error) {
	for _, acct := range f.accounts {
		if acct.LookupInstID == instID {
			clone := *acct
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("billing account for %s: %w", instID, domain.ErrNotFound)
}

func (f *accountFake) Create(_ context.Context, acct *domain.BillingAccount) error {
	clone := *acct
	f.accounts[acct.ID] = &clone
	return nil
}

type txPassthrough struct{}

func (txPassthrough) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// world holds a reconciler wired to fakes plus handles to inspect them.
type world struct {
	svc *Service

	cdb       *cdbStub
	cache     *cacheFake
	links     *linkFake
	items     *itemFake
	channels  *channelFake
	playlists *playlistFake
	perms     *permFake
	legacy    *legacyFake
	accounts  *accountFake
}

func newWorld() *world {
	w := &world{
		cdb:       &cdbStub{},
		cache:     newCacheFake(),
		links:     newLinkFake(),
		items:     newItemFake(),
		channels:  newChannelFake(),
		playlists: newPlaylistFake(),
		perms:     newPermFake(),
		legacy:    newLegacyFake(),
		accounts:  newAccountFake(),
	}
	w.svc = NewService(
		slog.New(slog.DiscardHandler),
		w.cdb, w.cache, w.links, w.items, w.channels, w.playlists,
		w.perms, w.legacy, w.accounts, txPassthrough{},
	)
	return w
}

// resource builds a CDB resource document with the given custom fields
// rendered in their wire format.
func resource(key string, updated int64, plain map[string]any, custom map[string]string) cdb.Resource {
	res := cdb.Resource{"key": key, "updated": float64(updated)}
	for k, v := range plain {
		res[k] = v
	}
	if len(custom) > 0 {
		fields := make(map[string]any, len(custom))
		for name, value := range custom {
			fields[name] = cdb.FormatCustomField(customFieldTypes[name], value)
		}
		res["custom"] = fields
	}
	return res
}

// customFieldTypes maps custom field names to their recorded type tags.
var customFieldTypes = map[string]string{
	"sms_media_id":        "media",
	"sms_collection_id":   "collection",
	"sms_acl":             "acl",
	"sms_downloadable":    "downloadable",
	"sms_language":        "language",
	"sms_copyright":       "copyright",
	"sms_keywords":        "keywords",
	"sms_created_by":      "created_by",
	"sms_instid":          "instid",
	"sms_groupid":         "groupid",
	"sms_media_ids":       "media_ids",
	"sms_last_updated_at": "last_updated_at",
}
