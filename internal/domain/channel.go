package domain

import "time"

// Channel is a container which owns media items and playlists. View access
// to a channel itself is always public; edit access is governed by the
// channel's edit permission.
type Channel struct {
	ID               string
	Title            string
	Description      string
	BillingAccountID string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time

	// EditPermission gates edits to the channel and to everything it owns.
	EditPermission *Permission

	// ItemCount is an annotation: the number of items in the channel which
	// are visible to the requesting principal. Populated by listing queries
	// only.
	ItemCount int
}

// IsDeleted reports whether the channel has been soft-deleted.
func (c *Channel) IsDeleted() bool { return c.DeletedAt != nil }

// BillingAccount pays for the storage used by one or more channels and
// gates who may create channels under it.
type BillingAccount struct {
	ID           string
	Description  string
	LookupInstID string

	CreatedAt time.Time
	UpdatedAt time.Time

	// ChannelCreatePermission gates creation of channels under this account.
	ChannelCreatePermission *Permission
}
