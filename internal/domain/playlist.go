package domain

import "time"

// Playlist is an ordered collection of media items within a channel.
//
// MediaItemIDs may contain ids which no longer resolve to live items;
// readers must tolerate such stragglers.
type Playlist struct {
	ID          string
	ChannelID   string
	Title       string
	Description string

	MediaItemIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	// ViewPermission gates who may see the playlist. Edit rights flow from
	// the containing channel.
	ViewPermission *Permission
}

// IsDeleted reports whether the playlist has been soft-deleted.
func (p *Playlist) IsDeleted() bool { return p.DeletedAt != nil }

// UploadEndpoint is a URL to which media bytes for an item may be uploaded.
// At most one live endpoint exists per item.
type UploadEndpoint struct {
	ID        string
	ItemID    string
	URL       string
	ExpiresAt time.Time
}
