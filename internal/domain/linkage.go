package domain

import (
	"encoding/json"
	"time"
)

// CacheResourceType is the type of a cached CDB resource.
type CacheResourceType string

const (
	CacheResourceVideo   CacheResourceType = "video"
	CacheResourceChannel CacheResourceType = "channel"
)

// CacheResource is a locally stored mirror of a CDB resource, used by the
// reconciler as an intermediate synchronisation point.
type CacheResource struct {
	Key  string
	Type CacheResourceType

	// Data is the resource document exactly as returned by the CDB.
	Data json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// VideoLink ties a media item to a CDB video resource. Its Updated field
// mirrors the CDB resource's updated timestamp and is the authoritative
// "we have seen updated=X" cursor; only the reconciler mutates it.
type VideoLink struct {
	Key    string
	ItemID *string

	// Updated is the CDB updated timestamp at which the item's metadata was
	// last synchronised. Kept as an integer so comparisons with the CDB's
	// own timestamps compare apples to apples.
	Updated int64
}

// ChannelLink ties a catalogue channel to a CDB channel resource.
type ChannelLink struct {
	Key       string
	ChannelID *string
	Updated   int64
}

// LegacyItem links a media item to its record on the legacy system. Items
// with a legacy link are edit-locked.
type LegacyItem struct {
	ID            int64
	ItemID        *string
	LastUpdatedAt *time.Time
}

// LegacyCollection links a channel to a collection on the legacy system.
// Every legacy collection has exactly one "shadow" playlist.
type LegacyCollection struct {
	ID            int64
	ChannelID     *string
	PlaylistID    *string
	LastUpdatedAt *time.Time
}
