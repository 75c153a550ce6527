package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MediaType is the broad media classification of an item.
type MediaType string

const (
	MediaTypeVideo   MediaType = "video"
	MediaTypeAudio   MediaType = "audio"
	MediaTypeUnknown MediaType = "unknown"
)

// MaxTagLength is the maximum length of a single tag, in characters.
const MaxTagLength = 256

// MediaItem is an individual media item in the media platform.
//
// Most fields can hold blank values since they are synced from external
// providers who may not have the degree of rigour we want.
type MediaItem struct {
	ID        string
	ChannelID *string

	Title       string
	Description string
	Duration    float64
	Type        MediaType

	// PublishedAt is the time from which the item is visible. Nil means the
	// item is visible immediately; a future value means not yet published.
	PublishedAt *time.Time

	Downloadable bool

	// Language is an ISO 639-3 three letter code, or empty.
	Language string

	Copyright string
	Tags      []string

	// InitiallyFetchedFromURL, when non-empty on a new item, tells the
	// content delivery backend to fetch the media bytes itself.
	InitiallyFetchedFromURL string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	// ViewPermission is the item's view permission. Loaded on demand.
	ViewPermission *Permission

	// EditPermission is the item's own edit permission row, stored as a
	// hook for per-item overrides. Authorization never consults it; edit
	// decisions always route through the containing channel. Loaded on
	// demand.
	EditPermission *Permission
}

// IsDeleted reports whether the item has been soft-deleted.
func (i *MediaItem) IsDeleted() bool { return i.DeletedAt != nil }

// IsPublished reports whether the item's publication time has passed (or is
// unset) as of now.
func (i *MediaItem) IsPublished(now time.Time) bool {
	return i.PublishedAt == nil || !i.PublishedAt.After(now)
}

// Source is an encoded media stream for a media item.
type Source struct {
	MimeType string
	URL      string

	// Width and Height are zero for audio streams.
	Width  int
	Height int
}

// NormalizeTags lowercases and trims tags, truncates them to MaxTagLength
// and drops whitespace-only entries.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		// Truncate in characters, not bytes, so a multibyte tag is never
		// cut mid-rune.
		if runes := []rune(tag); len(runes) > MaxTagLength {
			tag = string(runes[:MaxTagLength])
		}
		out = append(out, tag)
	}
	return out
}

// ValidateTags rejects whitespace-only or over-long tags. Used on user
// mutation paths where silently fixing input would hide mistakes.
func ValidateTags(tags []string) error {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return NewValidationError("tags", "tag must not be blank")
		}
		if utf8.RuneCountInString(tag) > MaxTagLength {
			return NewValidationError("tags", "tag too long")
		}
	}
	return nil
}
