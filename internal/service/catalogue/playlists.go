package catalogue

import (
	"context"
	"errors"
	"fmt"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// PlaylistInput carries the caller-settable fields of a new playlist.
type PlaylistInput struct {
	ChannelID   string
	Title       string
	Description string

	MediaItemIDs []string
}

// PlaylistUpdate is a partial update of a playlist. A non-nil MediaItemIDs
// replaces the ordering wholesale.
type PlaylistUpdate struct {
	Title       *string
	Description *string

	MediaItemIDs []string
}

// CreatePlaylist creates a playlist inside a channel the principal may
// edit. New playlists are born public; unlike items there is no processing
// step to hide.
func (s *Service) CreatePlaylist(ctx context.Context, p domain.Principal, m domain.Membership, in PlaylistInput) (*domain.Playlist, error) {
	if p.IsAnonymous() {
		return nil, fmt.Errorf("create playlist: %w", domain.ErrForbidden)
	}

	ch, err := s.channels.GetByID(ctx, in.ChannelID)
	if err != nil {
		return nil, err
	}
	editable, err := s.channelEditable(ctx, p, m, ch)
	if err != nil {
		return nil, err
	}
	if !editable {
		return nil, fmt.Errorf("create playlist in channel %s: %w", ch.ID, domain.ErrForbidden)
	}

	pl := &domain.Playlist{
		ID:           domain.NewToken(),
		ChannelID:    in.ChannelID,
		Title:        in.Title,
		Description:  in.Description,
		MediaItemIDs: in.MediaItemIDs,
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.playlists.Create(ctx, pl); err != nil {
			return err
		}
		view := domain.NewPermission()
		view.AllowsViewPlaylistID = &pl.ID
		view.IsPublic = true
		return s.perms.Create(ctx, &view)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "playlist created", "playlist_id", pl.ID, "channel_id", in.ChannelID, "user", p.Username)
	return pl, nil
}

// GetPlaylist returns a single playlist with access flags. Playlists the
// principal may not view report as not found.
func (s *Service) GetPlaylist(ctx context.Context, p domain.Principal, m domain.Membership, id string) (*domain.AnnotatedPlaylist, error) {
	pl, err := s.playlists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	editable, err := s.playlistEditable(ctx, p, m, pl)
	if err != nil {
		return nil, err
	}
	if err := s.loadPlaylistView(ctx, pl); err != nil {
		return nil, err
	}
	if !s.eval.PlaylistViewable(p, m, pl, editable) {
		return nil, fmt.Errorf("playlist %s: %w", id, domain.ErrNotFound)
	}

	return &domain.AnnotatedPlaylist{Playlist: *pl, Viewable: true, Editable: editable}, nil
}

// ListPlaylists returns the channel's playlists visible to the principal,
// optionally restricted to a full-text search over title and description.
func (s *Service) ListPlaylists(ctx context.Context, p domain.Principal, m domain.Membership, channelID, search string) ([]domain.AnnotatedPlaylist, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	editable, err := s.channelEditable(ctx, p, m, ch)
	if err != nil {
		return nil, err
	}

	playlists, err := s.playlists.ListByChannel(ctx, channelID, search)
	if err != nil {
		return nil, err
	}

	out := make([]domain.AnnotatedPlaylist, 0, len(playlists))
	for i := range playlists {
		pl := &playlists[i]
		if err := s.loadPlaylistView(ctx, pl); err != nil {
			return nil, err
		}
		if !s.eval.PlaylistViewable(p, m, pl, editable) {
			continue
		}
		out = append(out, domain.AnnotatedPlaylist{Playlist: *pl, Viewable: true, Editable: editable})
	}
	return out, nil
}

// UpdatePlaylist applies a partial update to a playlist the principal may
// edit.
func (s *Service) UpdatePlaylist(ctx context.Context, p domain.Principal, m domain.Membership, id string, in PlaylistUpdate) (*domain.Playlist, error) {
	pl, err := s.requireEditablePlaylist(ctx, p, m, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		pl.Title = *in.Title
	}
	if in.Description != nil {
		pl.Description = *in.Description
	}
	if in.MediaItemIDs != nil {
		pl.MediaItemIDs = in.MediaItemIDs
	}

	if err := s.playlists.Update(ctx, pl); err != nil {
		return nil, err
	}
	return pl, nil
}

// DeletePlaylist soft-deletes a playlist the principal may edit.
func (s *Service) DeletePlaylist(ctx context.Context, p domain.Principal, m domain.Membership, id string) error {
	if _, err := s.requireEditablePlaylist(ctx, p, m, id); err != nil {
		return err
	}
	if err := s.playlists.Delete(ctx, id); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "playlist deleted", "playlist_id", id, "user", p.Username)
	return nil
}

// UpdatePlaylistViewPermission replaces the access fields of the playlist's
// view permission.
func (s *Service) UpdatePlaylistViewPermission(ctx context.Context, p domain.Principal, m domain.Membership, playlistID string, in PermissionInput) (*domain.Permission, error) {
	if _, err := s.requireEditablePlaylist(ctx, p, m, playlistID); err != nil {
		return nil, err
	}

	view, err := s.perms.GetViewForPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	in.applyTo(view)
	if err := s.perms.Update(ctx, view); err != nil {
		return nil, err
	}
	return view, nil
}

// playlistEditable evaluates editability, which flows entirely from the
// containing channel.
func (s *Service) playlistEditable(ctx context.Context, p domain.Principal, m domain.Membership, pl *domain.Playlist) (bool, error) {
	ch, err := s.channels.GetByID(ctx, pl.ChannelID)
	if errors.Is(err, domain.ErrNotFound) {
		// Channel deleted from under the playlist; nobody ordinary edits it.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.channelEditable(ctx, p, m, ch)
}

func (s *Service) loadPlaylistView(ctx context.Context, pl *domain.Playlist) error {
	view, err := s.perms.GetViewForPlaylist(ctx, pl.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	pl.ViewPermission = view
	return nil
}

// playlistVisible reports whether the playlist exists and the principal may
// view it. Used by item listings filtering on a playlist.
func (s *Service) playlistVisible(ctx context.Context, p domain.Principal, m domain.Membership, id string) (bool, error) {
	pl, err := s.playlists.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	editable, err := s.playlistEditable(ctx, p, m, pl)
	if err != nil {
		return false, err
	}
	if err := s.loadPlaylistView(ctx, pl); err != nil {
		return false, err
	}
	return s.eval.PlaylistViewable(p, m, pl, editable), nil
}

// requireEditablePlaylist loads a playlist and fails unless the principal
// may edit it through the containing channel. Playlists the principal may
// not view report as not found.
func (s *Service) requireEditablePlaylist(ctx context.Context, p domain.Principal, m domain.Membership, id string) (*domain.Playlist, error) {
	pl, err := s.playlists.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	editable, err := s.playlistEditable(ctx, p, m, pl)
	if err != nil {
		return nil, err
	}
	if editable {
		return pl, nil
	}

	if err := s.loadPlaylistView(ctx, pl); err != nil {
		return nil, err
	}
	if s.eval.PlaylistViewable(p, m, pl, false) {
		return nil, fmt.Errorf("edit playlist %s: %w", id, domain.ErrForbidden)
	}
	return nil, fmt.Errorf("playlist %s: %w", id, domain.ErrNotFound)
}
