package oai

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/uisautomation/mediaplatform/internal/domain"
	"github.com/uisautomation/mediaplatform/internal/oaipmh"
)

// lectureCaptureTag marks media items ingested from OAI-PMH harvesting.
const lectureCaptureTag = "lecture capture"

// materialiseRecord parses a Matterhorn record and writes its series,
// Matterhorn record and track rows. When the series is bound to a playlist,
// the track also becomes a media item.
func (s *Service) materialiseRecord(ctx context.Context, repositoryID, recordID uuid.UUID, datestamp time.Time, recordXML string, stats *Stats) error {
	mp, err := oaipmh.ParseMediapackage(recordXML)
	if err != nil {
		return err
	}

	var (
		seriesID uuid.UUID
		mr       domain.MatterhornRecord
		track    *domain.Track
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// A record with no series element still gets a series row, under
		// the empty identifier, so later playlist binding can reach it.
		sid, err := s.repo.UpsertSeries(ctx, &domain.Series{
			ID:           uuid.New(),
			RepositoryID: repositoryID,
			Identifier:   mp.Series,
			Title:        mp.SeriesTitle,
		})
		if err != nil {
			return err
		}
		seriesID = sid

		mr = domain.MatterhornRecord{
			ID:          uuid.New(),
			RecordID:    recordID,
			Title:       mp.Title,
			Description: mp.Description,
			SeriesID:    &sid,
		}
		mrID, err := s.repo.UpsertMatterhornRecord(ctx, &mr)
		if err != nil {
			return err
		}
		mr.ID = mrID

		for _, t := range mp.Tracks {
			if !s.trackAllowed(t.Type) {
				continue
			}
			trackID, err := s.repo.UpsertTrack(ctx, &domain.Track{
				ID:                 uuid.New(),
				MatterhornRecordID: mrID,
				Identifier:         t.ID,
				URL:                t.URL,
				XML:                t.XML,
			})
			if err != nil {
				return err
			}
			// Reload so an already-materialised track keeps its media item
			// binding on re-harvest.
			track, err = s.repo.GetTrack(ctx, trackID)
			if err != nil {
				return err
			}
			// First allowed track wins.
			break
		}
		return nil
	})
	if err != nil {
		return err
	}

	if track == nil {
		return nil
	}

	series, err := s.repo.GetSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	if series.PlaylistID == nil {
		return nil
	}
	return s.materialiseTrack(ctx, *track, mr, datestamp, series, stats)
}

// materialiseTrack creates the media item for a track of a playlist-bound
// series. The item's view permission starts from the series view defaults,
// and the media bytes are fetched by the delivery backend from the track
// URL.
func (s *Service) materialiseTrack(ctx context.Context, track domain.Track, mr domain.MatterhornRecord, datestamp time.Time, series *domain.Series, stats *Stats) error {
	if track.MediaItemID != nil {
		return nil
	}

	pl, err := s.playlists.GetByID(ctx, *series.PlaylistID)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.WarnContext(ctx, "series bound to missing playlist",
			"series", series.Identifier, "playlist_id", *series.PlaylistID)
		return nil
	}
	if err != nil {
		return err
	}

	title := mr.Title
	if title == "" {
		title = datestamp.UTC().Format(time.RFC3339)
	}
	published := datestamp
	item := &domain.MediaItem{
		ID:                      domain.NewToken(),
		ChannelID:               &pl.ChannelID,
		Title:                   title,
		Description:             mr.Description,
		Type:                    domain.MediaTypeVideo,
		PublishedAt:             &published,
		Downloadable:            false,
		Tags:                    []string{lectureCaptureTag},
		InitiallyFetchedFromURL: track.URL,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.items.Create(ctx, item); err != nil {
			return err
		}

		view := domain.NewPermission()
		view.AllowsViewItemID = &item.ID
		view.IsPublic = series.ViewIsPublic
		view.IsSignedIn = series.ViewIsSignedIn
		view.CRSIDs = series.ViewCRSIDs
		view.LookupGroups = series.ViewLookupGroups
		view.LookupInsts = series.ViewLookupInsts
		if err := s.perms.Create(ctx, &view); err != nil {
			return err
		}

		edit := domain.NewPermission()
		edit.AllowsEditItemID = &item.ID
		if err := s.perms.Create(ctx, &edit); err != nil {
			return err
		}

		if err := s.playlists.AppendItem(ctx, pl.ID, item.ID); err != nil {
			return err
		}
		return s.repo.SetTrackMediaItem(ctx, track.ID, item.ID)
	})
	if err != nil {
		return err
	}

	stats.Items++
	s.log.InfoContext(ctx, "track materialised",
		"item_id", item.ID, "playlist_id", pl.ID, "track", track.Identifier)
	return nil
}
