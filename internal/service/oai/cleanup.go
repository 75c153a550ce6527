package oai

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/oaipmh"
)

// Cleanup re-runs materialisations for rows missing their downstream
// artefacts: Matterhorn-namespace records without a Matterhorn record row,
// and tracks without a media item whose series has since been bound to a
// playlist. Safe to run repeatedly.
func (s *Service) Cleanup(ctx context.Context) (Stats, error) {
	repos, err := s.repo.ListRepositories(ctx)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, repo := range repos {
		if err := s.cleanupRecords(ctx, repo, &stats); err != nil {
			s.log.ErrorContext(ctx, "record cleanup failed", "url", repo.URL, "error", err)
			stats.Errors++
			continue
		}
		stats.Repositories++
	}

	if err := s.cleanupTracks(ctx, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// cleanupRecords materialises harvested Matterhorn records which never got
// their parsed specialisation, e.g. because a parse bug was since fixed.
func (s *Service) cleanupRecords(ctx context.Context, repo domain.OAIRepository, stats *Stats) error {
	formats, err := s.repo.MetadataFormats(ctx, repo.ID)
	if err != nil {
		return err
	}
	matterhorn := make(map[uuid.UUID]bool)
	for _, mf := range formats {
		if mf.Namespace == oaipmh.MatterhornNamespace {
			matterhorn[mf.ID] = true
		}
	}
	if len(matterhorn) == 0 {
		return nil
	}

	recordIDs, err := s.repo.RecordIDsForRepository(ctx, repo.ID)
	if err != nil {
		return err
	}

	for _, recordID := range recordIDs {
		_, err := s.repo.MatterhornRecordForRecord(ctx, recordID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		rec, err := s.repo.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if !matterhorn[rec.MetadataFormatID] {
			continue
		}

		if err := s.materialiseRecord(ctx, repo.ID, recordID, rec.Datestamp, rec.XML, stats); err != nil {
			s.log.ErrorContext(ctx, "record materialisation failed",
				"identifier", rec.Identifier, "error", err)
			stats.Errors++
			continue
		}
		stats.Records++
	}
	return nil
}

// cleanupTracks materialises tracks of bound series which have no media
// item yet, typically because the series gained its playlist after the
// tracks were harvested.
func (s *Service) cleanupTracks(ctx context.Context, stats *Stats) error {
	series, err := s.repo.BoundSeries(ctx)
	if err != nil {
		return err
	}

	for i := range series {
		sr := &series[i]
		tracks, err := s.repo.UnboundTracksForSeries(ctx, sr.ID)
		if err != nil {
			return err
		}

		for _, track := range tracks {
			mr, err := s.repo.GetMatterhornRecord(ctx, track.MatterhornRecordID)
			if err != nil {
				return err
			}
			rec, err := s.repo.GetRecord(ctx, mr.RecordID)
			if err != nil {
				return err
			}
			if err := s.materialiseTrack(ctx, track, *mr, rec.Datestamp, sr, stats); err != nil {
				s.log.ErrorContext(ctx, "track materialisation failed",
					"track", track.Identifier, "error", err)
				stats.Errors++
			}
		}
	}
	return nil
}
