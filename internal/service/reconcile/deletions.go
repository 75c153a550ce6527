package reconcile

import (
	"context"
	"errors"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// propagateDeletions is Phase B: linkages whose key no longer maps to a
// live cache entry take their catalogue objects with them. Legacy links go
// first, then the soft deletions, then the linkage rows, so no foreign key
// is ever left dangling.
func (s *Service) propagateDeletions(ctx context.Context, stats *Stats) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deleteStaleVideos(ctx, stats); err != nil {
			return err
		}
		return s.deleteStaleChannels(ctx, stats)
	})
}

func (s *Service) deleteStaleVideos(ctx context.Context, stats *Stats) error {
	liveKeys, err := s.liveKeys(ctx, domain.CacheResourceVideo)
	if err != nil {
		return err
	}
	links, err := s.links.VideoLinks(ctx)
	if err != nil {
		return err
	}

	var staleKeys, itemIDs []string
	for key, link := range links {
		if liveKeys[key] {
			continue
		}
		staleKeys = append(staleKeys, key)
		if link.ItemID != nil {
			itemIDs = append(itemIDs, *link.ItemID)
		}
	}
	if len(staleKeys) == 0 {
		return nil
	}

	if _, err := s.legacy.DeleteItemsForItems(ctx, itemIDs); err != nil {
		return err
	}
	deleted, err := s.items.DeleteBatch(ctx, itemIDs)
	if err != nil {
		return err
	}
	stats.DeletedItems = deleted
	if _, err := s.links.DeleteVideoLinks(ctx, staleKeys); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "stale videos removed", "links", len(staleKeys), "items", deleted)
	return nil
}

func (s *Service) deleteStaleChannels(ctx context.Context, stats *Stats) error {
	liveKeys, err := s.liveKeys(ctx, domain.CacheResourceChannel)
	if err != nil {
		return err
	}
	links, err := s.links.ChannelLinks(ctx)
	if err != nil {
		return err
	}

	var staleKeys, channelIDs []string
	for key, link := range links {
		if liveKeys[key] {
			continue
		}
		staleKeys = append(staleKeys, key)
		if link.ChannelID != nil {
			channelIDs = append(channelIDs, *link.ChannelID)
		}
	}
	if len(staleKeys) == 0 {
		return nil
	}

	// Items survive their channel; they just become orphans.
	orphans, err := s.items.IDsInChannels(ctx, channelIDs)
	if err != nil {
		return err
	}
	if _, err := s.items.SetChannel(ctx, orphans, nil); err != nil {
		return err
	}

	// Shadow playlists of the channels' legacy collections go with them.
	collections, err := s.legacy.CollectionsForChannels(ctx, channelIDs)
	if err != nil {
		return err
	}
	for _, lc := range collections {
		if lc.PlaylistID == nil {
			continue
		}
		if err := s.playlists.Delete(ctx, *lc.PlaylistID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	if _, err := s.legacy.DeleteCollectionsForChannels(ctx, channelIDs); err != nil {
		return err
	}

	for _, id := range channelIDs {
		if err := s.channels.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	stats.DeletedChannels = len(channelIDs)

	if _, err := s.links.DeleteChannelLinks(ctx, staleKeys); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "stale channels removed",
		"links", len(staleKeys), "channels", len(channelIDs), "orphaned_items", len(orphans))
	return nil
}

func (s *Service) liveKeys(ctx context.Context, typ domain.CacheResourceType) (map[string]bool, error) {
	resources, err := s.cache.ListLive(ctx, typ)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(resources))
	for _, res := range resources {
		keys[res.Key] = true
	}
	return keys, nil
}
