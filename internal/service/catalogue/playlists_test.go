package catalogue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

func playlistWorld(view *domain.Permission) *deps {
	d := &deps{
		playlists: &playlistRepoMock{
			GetByIDFunc: func(_ context.Context, id string) (*domain.Playlist, error) {
				if id != "pl-1" {
					return nil, notFound("playlist", id)
				}
				return &domain.Playlist{ID: "pl-1", ChannelID: "chan-1", Title: "A playlist"}, nil
			},
		},
		channels: &channelRepoMock{},
		perms:    &permissionRepoMock{},
	}
	editableChannel(d)
	d.perms.GetViewForPlaylistFunc = func(_ context.Context, playlistID string) (*domain.Permission, error) {
		if view == nil {
			return nil, notFound("permission", playlistID)
		}
		return view, nil
	}
	return d
}

func TestCreatePlaylist_BornPublic(t *testing.T) {
	t.Parallel()

	d := &deps{channels: &channelRepoMock{}, perms: &permissionRepoMock{}, playlists: &playlistRepoMock{}}
	editableChannel(d)

	var view *domain.Permission
	d.perms.CreateFunc = func(_ context.Context, p *domain.Permission) error {
		view = p
		return nil
	}

	svc, _ := newTestService(d)
	pl, err := svc.CreatePlaylist(context.Background(), editor, noGroups, PlaylistInput{
		ChannelID:    "chan-1",
		Title:        "Lent term",
		MediaItemIDs: []string{"item-1", "item-2"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"item-1", "item-2"}, pl.MediaItemIDs)
	require.NotNil(t, view)
	require.NotNil(t, view.AllowsViewPlaylistID)
	assert.Equal(t, pl.ID, *view.AllowsViewPlaylistID)
	assert.True(t, view.IsPublic)
}

func TestCreatePlaylist_ChannelNotEditable(t *testing.T) {
	t.Parallel()

	d := &deps{channels: &channelRepoMock{}, perms: &permissionRepoMock{}}
	editableChannel(d)

	svc, _ := newTestService(d)
	_, err := svc.CreatePlaylist(context.Background(), stranger, noGroups, PlaylistInput{ChannelID: "chan-1"})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestGetPlaylist_HiddenReportsNotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(playlistWorld(&domain.Permission{ID: "perm-pl", CRSIDs: []string{"someoneelse"}}))

	_, err := svc.GetPlaylist(context.Background(), stranger, noGroups, "pl-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetPlaylist_EditorSeesHidden(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(playlistWorld(nil))

	got, err := svc.GetPlaylist(context.Background(), editor, noGroups, "pl-1")
	require.NoError(t, err)
	assert.True(t, got.Editable)
	assert.True(t, got.Viewable)
}

func TestListPlaylists_FiltersInvisible(t *testing.T) {
	t.Parallel()

	d := &deps{channels: &channelRepoMock{}, perms: &permissionRepoMock{}}
	editableChannel(d)
	d.playlists = &playlistRepoMock{
		ListByChannelFunc: func(_ context.Context, channelID, _ string) ([]domain.Playlist, error) {
			return []domain.Playlist{
				{ID: "pl-public", ChannelID: channelID},
				{ID: "pl-private", ChannelID: channelID},
			}, nil
		},
	}
	d.perms.GetViewForPlaylistFunc = func(_ context.Context, playlistID string) (*domain.Permission, error) {
		if playlistID == "pl-public" {
			return &domain.Permission{ID: "perm-pub", IsPublic: true}, nil
		}
		return &domain.Permission{ID: "perm-priv", CRSIDs: []string{"someoneelse"}}, nil
	}

	svc, _ := newTestService(d)

	visible, err := svc.ListPlaylists(context.Background(), stranger, noGroups, "chan-1", "")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "pl-public", visible[0].ID)

	// Channel editors see everything.
	all, err := svc.ListPlaylists(context.Background(), editor, noGroups, "chan-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdatePlaylist_ReplacesOrdering(t *testing.T) {
	t.Parallel()

	d := playlistWorld(nil)
	var updated *domain.Playlist
	d.playlists.UpdateFunc = func(_ context.Context, pl *domain.Playlist) error {
		updated = pl
		return nil
	}

	svc, _ := newTestService(d)
	pl, err := svc.UpdatePlaylist(context.Background(), editor, noGroups, "pl-1", PlaylistUpdate{
		MediaItemIDs: []string{"item-3", "item-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"item-3", "item-1"}, pl.MediaItemIDs)
	require.NotNil(t, updated)
	assert.Equal(t, "A playlist", updated.Title)
}

func TestDeletePlaylist_ForbiddenVsNotFound(t *testing.T) {
	t.Parallel()

	// Viewable but not editable: forbidden.
	svc, _ := newTestService(playlistWorld(&domain.Permission{ID: "perm-pl", IsPublic: true}))
	err := svc.DeletePlaylist(context.Background(), stranger, noGroups, "pl-1")
	require.ErrorIs(t, err, domain.ErrForbidden)

	// Invisible: reported as not found so callers cannot confirm existence.
	svc, _ = newTestService(playlistWorld(nil))
	err = svc.DeletePlaylist(context.Background(), stranger, noGroups, "pl-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
