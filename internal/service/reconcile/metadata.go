package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/uisautomation/mediaplatform/internal/cdb"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// syncMetadata is Phase D: copy metadata from cache entries whose updated
// timestamp moved past the linkage watermark. Each resource syncs in its
// own transaction; a failing resource is logged and skipped so one bad
// document cannot stall the rest.
//
// Videos go first so channel content sync can resolve legacy media ids
// through fresh legacy item links.
func (s *Service) syncMetadata(ctx context.Context, syncAll bool, stats *Stats) error {
	videos, err := s.liveResources(ctx, domain.CacheResourceVideo)
	if err != nil {
		return err
	}
	videoLinks, err := s.links.VideoLinks(ctx)
	if err != nil {
		return err
	}
	for key, res := range videos {
		link, ok := videoLinks[key]
		if !ok || link.ItemID == nil {
			continue
		}
		if !syncAll && res.Updated() <= link.Updated {
			continue
		}
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return s.syncVideo(ctx, key, res, *link.ItemID)
		})
		if err != nil {
			s.log.ErrorContext(ctx, "video metadata sync failed", "key", key, "error", err)
			stats.Errors++
			continue
		}
		stats.SyncedItems++
	}

	channels, err := s.liveResources(ctx, domain.CacheResourceChannel)
	if err != nil {
		return err
	}
	channelLinks, err := s.links.ChannelLinks(ctx)
	if err != nil {
		return err
	}
	for key, res := range channels {
		link, ok := channelLinks[key]
		if !ok || link.ChannelID == nil {
			continue
		}
		if !syncAll && res.Updated() <= link.Updated {
			continue
		}
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			return s.syncChannel(ctx, key, res, *link.ChannelID)
		})
		if err != nil {
			s.log.ErrorContext(ctx, "channel metadata sync failed", "key", key, "error", err)
			stats.Errors++
			continue
		}
		stats.SyncedChannels++
	}

	return nil
}

// syncVideo copies one video resource's metadata onto its media item,
// rewrites the item's view permission from the resource ACL and reconciles
// the legacy item link, then advances the watermark.
func (s *Service) syncVideo(ctx context.Context, key string, res cdb.Resource, itemID string) error {
	item, err := s.items.GetAnyByID(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if item.IsDeleted() {
		return nil
	}

	item.Title = res.Title()
	item.Description = res.Description()
	item.Type = res.MediaType()
	item.Downloadable = res.Downloadable()
	item.PublishedAt = res.Date()
	item.Duration = res.Duration()
	item.Language = truncateLanguage(res.Language())
	item.Copyright = res.Copyright()
	item.Tags = domain.NormalizeTags(res.Keywords())
	if err := s.items.Update(ctx, item); err != nil {
		return err
	}

	atoms, err := res.ACL()
	if err != nil {
		return fmt.Errorf("parse acl: %w", err)
	}
	view, err := s.perms.GetViewForItem(ctx, itemID)
	if err != nil {
		return err
	}
	view.Reset()
	if unknown := cdb.ACLToPermission(atoms, view); len(unknown) > 0 {
		s.log.WarnContext(ctx, "unknown acl atoms ignored", "key", key, "atoms", unknown)
	}
	if err := s.perms.Update(ctx, view); err != nil {
		return err
	}

	if mediaID := res.MediaID(); mediaID != 0 {
		err = s.legacy.UpsertItem(ctx, domain.LegacyItem{
			ID:            mediaID,
			ItemID:        &itemID,
			LastUpdatedAt: res.LastUpdatedAt(),
		})
	} else {
		_, err = s.legacy.DeleteItemsForItems(ctx, []string{itemID})
	}
	if err != nil {
		return err
	}

	return s.links.SetVideoWatermark(ctx, key, res.Updated())
}

// syncChannel copies one channel resource's metadata onto its channel,
// rebuilds the edit permission from the creator and group fields, moves the
// channel's contents to match the resource's media id list and maintains
// the legacy collection link with its shadow playlist.
func (s *Service) syncChannel(ctx context.Context, key string, res cdb.Resource, channelID string) error {
	ch, err := s.channels.GetByID(ctx, channelID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	ch.Title = res.Title()
	ch.Description = res.Description()
	if err := s.channels.Update(ctx, ch); err != nil {
		return err
	}

	edit, err := s.perms.GetEditForChannel(ctx, channelID)
	if err != nil {
		return err
	}
	edit.Reset()
	if creator := res.CreatedBy(); creator != "" {
		edit.CRSIDs = []string{creator}
	}
	if groupID := res.GroupID(); groupID != "" {
		edit.LookupGroups = []string{groupID}
	}
	if err := s.perms.Update(ctx, edit); err != nil {
		return err
	}

	contents, err := s.resolveMediaIDs(ctx, res.MediaIDs())
	if err != nil {
		return err
	}
	if err := s.syncChannelContents(ctx, channelID, contents); err != nil {
		return err
	}

	if collID := res.CollectionID(); collID != 0 {
		if err := s.syncLegacyCollection(ctx, collID, ch, res, contents); err != nil {
			return err
		}
	} else {
		if _, err := s.legacy.DeleteCollectionsForChannels(ctx, []string{channelID}); err != nil {
			return err
		}
	}

	return s.links.SetChannelWatermark(ctx, key, res.Updated())
}

// resolveMediaIDs maps legacy media ids onto catalogue item ids through the
// legacy item links. Ids without a link yet resolve on a later run, once
// their video has been discovered.
func (s *Service) resolveMediaIDs(ctx context.Context, mediaIDs []int64) ([]string, error) {
	var itemIDs []string
	for _, mediaID := range mediaIDs {
		li, err := s.legacy.GetItemByLegacyID(ctx, mediaID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if li.ItemID != nil {
			itemIDs = append(itemIDs, *li.ItemID)
		}
	}
	return itemIDs, nil
}

// syncChannelContents makes exactly the given items members of the channel.
func (s *Service) syncChannelContents(ctx context.Context, channelID string, itemIDs []string) error {
	current, err := s.items.IDsInChannels(ctx, []string{channelID})
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}
	var removed []string
	for _, id := range current {
		if !wanted[id] {
			removed = append(removed, id)
		}
	}

	if _, err := s.items.SetChannel(ctx, itemIDs, &channelID); err != nil {
		return err
	}
	if _, err := s.items.SetChannel(ctx, removed, nil); err != nil {
		return err
	}
	return nil
}

// syncLegacyCollection upserts the collection link and keeps its shadow
// playlist mirroring the channel resource.
func (s *Service) syncLegacyCollection(ctx context.Context, collID int64, ch *domain.Channel, res cdb.Resource, contents []string) error {
	var playlistID *string
	lc, err := s.legacy.GetCollectionByLegacyID(ctx, collID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err == nil {
		playlistID = lc.PlaylistID
	}

	if playlistID != nil {
		pl, err := s.playlists.GetByID(ctx, *playlistID)
		if errors.Is(err, domain.ErrNotFound) {
			playlistID = nil
		} else if err != nil {
			return err
		} else {
			pl.Title = res.Title()
			pl.Description = res.Description()
			pl.MediaItemIDs = contents
			if err := s.playlists.Update(ctx, pl); err != nil {
				return err
			}
		}
	}

	if playlistID == nil {
		pl := &domain.Playlist{
			ID:           domain.NewToken(),
			ChannelID:    ch.ID,
			Title:        res.Title(),
			Description:  res.Description(),
			MediaItemIDs: contents,
		}
		if err := s.playlists.Create(ctx, pl); err != nil {
			return err
		}
		view := domain.NewPermission()
		view.AllowsViewPlaylistID = &pl.ID
		view.IsPublic = true
		if err := s.perms.Create(ctx, &view); err != nil {
			return err
		}
		playlistID = &pl.ID
	}

	return s.legacy.UpsertCollection(ctx, domain.LegacyCollection{
		ID:            collID,
		ChannelID:     &ch.ID,
		PlaylistID:    playlistID,
		LastUpdatedAt: res.LastUpdatedAt(),
	})
}

// truncateLanguage clamps a language code to the three characters of an
// ISO 639-3 code. Legacy data sometimes carries longer strings.
func truncateLanguage(lang string) string {
	if len(lang) > 3 {
		return lang[:3]
	}
	return lang
}
