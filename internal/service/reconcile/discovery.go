package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/uisautomation/mediaplatform/internal/cdb"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// discover is Phase C: create linkages, channels and media items for cache
// entries the catalogue has not seen before, and resurrect soft-deleted
// items whose resource still exists.
func (s *Service) discover(ctx context.Context, stats *Stats) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// Channels first: new items want a channel assignment.
		if err := s.discoverChannels(ctx, stats); err != nil {
			return err
		}
		return s.discoverVideos(ctx, stats)
	})
}

// discoverChannels creates a catalogue channel, its blank edit permission
// and a linkage for every unseen channel resource. The owning billing
// account is resolved from the resource's institution field, created on
// first sight.
func (s *Service) discoverChannels(ctx context.Context, stats *Stats) error {
	resources, err := s.liveResources(ctx, domain.CacheResourceChannel)
	if err != nil {
		return err
	}
	links, err := s.links.ChannelLinks(ctx)
	if err != nil {
		return err
	}

	for key, res := range resources {
		if _, seen := links[key]; seen {
			continue
		}

		acct, err := s.accountForInst(ctx, res.InstID())
		if err != nil {
			return err
		}

		ch := &domain.Channel{
			ID:               domain.NewToken(),
			Title:            res.Title(),
			Description:      res.Description(),
			BillingAccountID: acct.ID,
		}
		if err := s.channels.Create(ctx, ch); err != nil {
			return err
		}
		edit := domain.NewPermission()
		edit.AllowsEditChannelID = &ch.ID
		if err := s.perms.Create(ctx, &edit); err != nil {
			return err
		}

		// Watermark zero so Phase D fills in the rest of the metadata.
		if err := s.links.UpsertChannelLink(ctx, domain.ChannelLink{Key: key, ChannelID: &ch.ID}); err != nil {
			return err
		}
		stats.NewChannels++
	}
	return nil
}

func (s *Service) discoverVideos(ctx context.Context, stats *Stats) error {
	resources, err := s.liveResources(ctx, domain.CacheResourceVideo)
	if err != nil {
		return err
	}
	links, err := s.links.VideoLinks(ctx)
	if err != nil {
		return err
	}
	channelByCollection, err := s.channelsByCollection(ctx)
	if err != nil {
		return err
	}

	var (
		created   []*domain.MediaItem
		resurrect []string
	)
	for key, res := range resources {
		link, seen := links[key]
		if seen {
			if link.ItemID == nil {
				continue
			}
			item, err := s.items.GetAnyByID(ctx, *link.ItemID)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if item.IsDeleted() {
				resurrect = append(resurrect, item.ID)
			}
			continue
		}

		if res.MediaID() == 0 {
			// Not a legacy-managed video; track the resource but create no
			// catalogue item for it.
			if err := s.links.UpsertVideoLink(ctx, domain.VideoLink{Key: key, Updated: res.Updated()}); err != nil {
				return err
			}
			continue
		}

		item := &domain.MediaItem{ID: domain.NewToken(), Type: res.MediaType()}
		if chID, ok := channelByCollection[res.CollectionID()]; ok {
			item.ChannelID = &chID
		}
		created = append(created, item)

		if err := s.links.UpsertVideoLink(ctx, domain.VideoLink{Key: key, ItemID: &item.ID}); err != nil {
			return err
		}
	}

	if len(created) > 0 {
		if err := s.items.CreateBatch(ctx, created); err != nil {
			return err
		}
		ids := make([]string, len(created))
		for i, item := range created {
			ids[i] = item.ID
		}
		if _, err := s.perms.EnsureViewForItems(ctx, ids); err != nil {
			return err
		}
		if _, err := s.perms.EnsureEditForItems(ctx, ids); err != nil {
			return err
		}
		stats.NewItems = len(created)
	}

	if len(resurrect) > 0 {
		n, err := s.items.Restore(ctx, resurrect)
		if err != nil {
			return err
		}
		stats.Resurrected = n
		s.log.InfoContext(ctx, "items resurrected", "count", n)
	}
	return nil
}

// channelsByCollection maps legacy collection ids to catalogue channel ids
// via the channel resource cache and linkage.
func (s *Service) channelsByCollection(ctx context.Context) (map[int64]string, error) {
	resources, err := s.liveResources(ctx, domain.CacheResourceChannel)
	if err != nil {
		return nil, err
	}
	links, err := s.links.ChannelLinks(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]string)
	for key, res := range resources {
		collID := res.CollectionID()
		if collID == 0 {
			continue
		}
		if link, ok := links[key]; ok && link.ChannelID != nil {
			out[collID] = *link.ChannelID
		}
	}
	return out, nil
}

func (s *Service) accountForInst(ctx context.Context, instID string) (*domain.BillingAccount, error) {
	acct, err := s.accounts.GetByLookupInstID(ctx, instID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	acct = &domain.BillingAccount{
		ID:           domain.NewToken(),
		Description:  fmt.Sprintf("Lookup institution %s", instID),
		LookupInstID: instID,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "billing account created", "account_id", acct.ID, "instid", instID)
	return acct, nil
}

// liveResources decodes the live cache rows of a type, keyed by resource
// key. Undecodable rows are logged and skipped.
func (s *Service) liveResources(ctx context.Context, typ domain.CacheResourceType) (map[string]cdb.Resource, error) {
	rows, err := s.cache.ListLive(ctx, typ)
	if err != nil {
		return nil, err
	}

	out := make(map[string]cdb.Resource, len(rows))
	for _, row := range rows {
		res, err := cdb.DecodeResource(row.Data)
		if err != nil {
			s.log.WarnContext(ctx, "undecodable cached resource", "type", string(typ), "key", row.Key, "error", err)
			continue
		}
		out[row.Key] = res
	}
	return out, nil
}
