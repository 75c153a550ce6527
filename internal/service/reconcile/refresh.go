package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uisautomation/mediaplatform/internal/cdb"
	"github.com/uisautomation/mediaplatform/internal/domain"
)

// refreshCache is Phase A: pull the full CDB resource listing of each type
// into the cache table and soft-delete everything the listing no longer
// mentions.
func (s *Service) refreshCache(ctx context.Context, stats *Stats) error {
	videos, err := s.fetchAll(ctx, func(ctx context.Context, offset int) ([]cdb.Resource, int, error) {
		list, err := s.cdb.ListVideos(ctx, offset)
		if err != nil {
			return nil, 0, err
		}
		return list.Videos, list.Total, nil
	})
	if err != nil {
		return fmt.Errorf("fetch videos: %w", err)
	}
	if err := s.storeResources(ctx, domain.CacheResourceVideo, videos); err != nil {
		return err
	}
	stats.CachedVideos = len(videos)

	channels, err := s.fetchAll(ctx, func(ctx context.Context, offset int) ([]cdb.Resource, int, error) {
		list, err := s.cdb.ListChannels(ctx, offset)
		if err != nil {
			return nil, 0, err
		}
		return list.Channels, list.Total, nil
	})
	if err != nil {
		return fmt.Errorf("fetch channels: %w", err)
	}
	if err := s.storeResources(ctx, domain.CacheResourceChannel, channels); err != nil {
		return err
	}
	stats.CachedChannels = len(channels)

	return nil
}

// fetchAll drains a paginated CDB listing.
func (s *Service) fetchAll(ctx context.Context, page func(ctx context.Context, offset int) ([]cdb.Resource, int, error)) ([]cdb.Resource, error) {
	var all []cdb.Resource
	for {
		resources, total, err := page(ctx, len(all))
		if err != nil {
			return nil, err
		}
		// An empty page before total means the listing shrank mid-run; take
		// what we have rather than loop forever.
		if len(resources) == 0 {
			return all, nil
		}
		all = append(all, resources...)
		if len(all) >= total {
			return all, nil
		}
	}
}

func (s *Service) storeResources(ctx context.Context, typ domain.CacheResourceType, resources []cdb.Resource) error {
	docs := make(map[string]json.RawMessage, len(resources))
	for _, res := range resources {
		key := res.Key()
		if key == "" {
			s.log.WarnContext(ctx, "resource without key skipped", "type", string(typ))
			continue
		}
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode %s resource %s: %w", typ, key, err)
		}
		docs[key] = data
	}

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.cache.UpsertBatch(ctx, typ, docs); err != nil {
			return err
		}
		seen := make([]string, 0, len(docs))
		for key := range docs {
			seen = append(seen, key)
		}
		dropped, err := s.cache.SoftDeleteUnseen(ctx, typ, seen)
		if err != nil {
			return err
		}
		if dropped > 0 {
			s.log.InfoContext(ctx, "cache entries dropped", "type", string(typ), "count", dropped)
		}
		return nil
	})
}
