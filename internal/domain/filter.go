package domain

// Ordering names a supported listing order for media items.
type Ordering string

const (
	OrderPublishedAtDesc Ordering = "-published_at"
	OrderPublishedAtAsc  Ordering = "published_at"
	OrderUpdatedAtDesc   Ordering = "-updated_at"
	OrderUpdatedAtAsc    Ordering = "updated_at"
)

// MediaItemFilter contains filtering and pagination parameters for media
// item listings.
type MediaItemFilter struct {
	// Search matches the precomputed text search vector or any tag exactly
	// (lowercased). Empty means no text filter.
	Search string

	// ChannelID restricts the listing to a single channel.
	ChannelID *string

	// PlaylistID restricts the listing to items of a playlist. The playlist
	// itself must be viewable by the caller; if it is not, the listing is
	// empty.
	PlaylistID *string

	Ordering Ordering

	// Cursor is an opaque keyset cursor returned by a previous page.
	Cursor *string

	Limit int

	// IncludeCount requests a total result count. Off by default to keep
	// listing cost proportional to the page size.
	IncludeCount bool
}

// AnnotatedMediaItem is a media item decorated with per-principal access
// flags, as produced by listing queries.
type AnnotatedMediaItem struct {
	MediaItem

	Viewable           bool
	Editable           bool
	DownloadableByUser bool
}

// MediaItemPage is one page of a media item listing.
type MediaItemPage struct {
	Items []AnnotatedMediaItem

	// NextCursor is set when another page exists.
	NextCursor *string

	// Count is the total number of matching items, present only when
	// requested via MediaItemFilter.IncludeCount.
	Count *int
}

// AnnotatedPlaylist is a playlist decorated with per-principal access flags.
type AnnotatedPlaylist struct {
	Playlist

	Viewable bool
	Editable bool
}

// AnnotatedChannel is a channel decorated with per-principal access flags.
// Channels are always viewable.
type AnnotatedChannel struct {
	Channel

	Editable bool
}
