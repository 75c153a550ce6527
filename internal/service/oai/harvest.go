package oai

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/oaipmh"
)

// Harvest runs one harvest over every configured repository. When fetchAll
// is set, the incremental window is ignored and every record is fetched.
// A failing repository is logged and skipped; the others still harvest.
func (s *Service) Harvest(ctx context.Context, fetchAll bool) (Stats, error) {
	repos, err := s.repo.ListRepositories(ctx)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, repo := range repos {
		if err := s.harvestRepository(ctx, repo, fetchAll, &stats); err != nil {
			s.log.ErrorContext(ctx, "repository harvest failed", "url", repo.URL, "error", err)
			stats.Errors++
			continue
		}
		stats.Repositories++
	}
	return stats, nil
}

// harvestRepository harvests a single repository: upsert its metadata
// formats, pull records per format from the incremental window and
// materialise Matterhorn records as they commit. The harvest watermark is
// the run's start time and only advances when the whole repository
// succeeded, so a failed run is retried from the prior window.
func (s *Service) harvestRepository(ctx context.Context, repo domain.OAIRepository, fetchAll bool, stats *Stats) error {
	started := s.now().UTC()
	client := s.newClient(repo)

	var from *time.Time
	if !fetchAll && repo.LastHarvestedAt != nil {
		t := repo.LastHarvestedAt.Add(-HarvestWindowSlack)
		from = &t
	}

	formats, err := client.ListMetadataFormats(ctx)
	if err != nil {
		return err
	}

	for _, format := range formats {
		formatID, err := s.repo.UpsertMetadataFormat(ctx, &domain.OAIMetadataFormat{
			ID:           uuid.New(),
			RepositoryID: repo.ID,
			Identifier:   format.Prefix,
			Namespace:    format.Namespace,
			Schema:       format.Schema,
		})
		if err != nil {
			return err
		}

		records, err := client.ListRecords(ctx, format.Prefix, from)
		if err != nil {
			return err
		}

		for _, rec := range records {
			if err := s.ingestRecord(ctx, repo.ID, formatID, format.Namespace, rec, started, stats); err != nil {
				s.log.ErrorContext(ctx, "record ingest failed",
					"url", repo.URL, "identifier", rec.Identifier, "error", err)
				stats.Errors++
			}
		}
	}

	return s.repo.SetLastHarvestedAt(ctx, repo.ID, started)
}

// ingestRecord stores one harvested record and, for the Matterhorn
// namespace, materialises it after the store commits.
func (s *Service) ingestRecord(ctx context.Context, repositoryID, formatID uuid.UUID, namespace string, rec oaipmh.Record, harvestedAt time.Time, stats *Stats) error {
	var recordID uuid.UUID
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		id, err := s.repo.UpsertRecord(ctx, &domain.OAIRecord{
			ID:               uuid.New(),
			MetadataFormatID: formatID,
			Identifier:       rec.Identifier,
			Datestamp:        rec.Datestamp,
			XML:              rec.XML,
			HarvestedAt:      harvestedAt,
		})
		recordID = id
		return err
	})
	if err != nil {
		return err
	}
	stats.Records++

	if namespace != oaipmh.MatterhornNamespace {
		return nil
	}
	return s.materialiseRecord(ctx, repositoryID, recordID, rec.Datestamp, rec.XML, stats)
}
