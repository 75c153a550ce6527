// Package perm decides what a principal may do to catalogue objects.
//
// Every decision is made twice in this codebase: once here in Go for single
// objects, and once as a SQL condition (see Condition) pushed down into
// listing queries so that filtering and counting happen in the database.
// The two must agree; perm_test.go cross-checks them.
package perm

import (
	"time"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// Capability names which override ordinary permission checks. They are
// granted out of band (operator configuration), not stored in the catalogue.
const (
	CapViewItem      = "view_mediaitem"
	CapDownloadItem  = "download_mediaitem"
	CapEditItem      = "change_mediaitem"
	CapViewPlaylist  = "view_playlist"
	CapEditChannel   = "change_channel"
	CapCreateChannel = "create_channel"
)

// Evaluator answers permission questions for single objects. The zero value
// is not usable; use New.
type Evaluator struct {
	now func() time.Time
}

// New creates an Evaluator. now is used for publication checks; pass
// time.Now outside tests.
func New(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// ItemEditable reports whether the principal may edit the item.
//
// Edit rights always flow through the containing channel's edit permission;
// the item's own stored edit permission is not consulted. Items linked to
// the legacy system are edit-locked for everyone without the capability.
func (e *Evaluator) ItemEditable(p domain.Principal, m domain.Membership, item *domain.MediaItem, channelEdit *domain.Permission, legacyLocked bool) bool {
	if p.HasCapability(CapEditItem) {
		return true
	}
	if item.ChannelID == nil || channelEdit == nil || legacyLocked {
		return false
	}
	return channelEdit.Satisfies(p, m)
}

// ItemViewable reports whether the principal may see the item. An item is
// viewable when its view permission is satisfied, it is published and its
// delivery backend resource is ready, or when the principal may edit it
// anyway (editors see their own unpublished or erroring content).
//
// ready is false only when the item has a delivery backend resource whose
// cached status is "error"; items with no such resource are ready.
func (e *Evaluator) ItemViewable(p domain.Principal, m domain.Membership, item *domain.MediaItem, editable, ready bool) bool {
	if item.IsDeleted() {
		return false
	}
	if p.HasCapability(CapViewItem) {
		return true
	}
	if editable {
		return true
	}
	if item.ViewPermission == nil {
		return false
	}
	return item.ViewPermission.Satisfies(p, m) && item.IsPublished(e.now()) && ready
}

// ItemDownloadable reports whether the principal may download the item's
// media. A viewability check must have passed already.
func (e *Evaluator) ItemDownloadable(p domain.Principal, item *domain.MediaItem) bool {
	return item.Downloadable || p.HasCapability(CapDownloadItem)
}

// ChannelEditable reports whether the principal may edit the channel and
// create objects inside it. Channels mirrored from the legacy system are
// edit-locked.
func (e *Evaluator) ChannelEditable(p domain.Principal, m domain.Membership, ch *domain.Channel, legacyLocked bool) bool {
	if p.HasCapability(CapEditChannel) {
		return true
	}
	if ch.IsDeleted() || ch.EditPermission == nil || legacyLocked {
		return false
	}
	return ch.EditPermission.Satisfies(p, m)
}

// PlaylistViewable reports whether the principal may see the playlist.
// As with items, edit rights imply view rights.
func (e *Evaluator) PlaylistViewable(p domain.Principal, m domain.Membership, pl *domain.Playlist, editable bool) bool {
	if pl.IsDeleted() {
		return false
	}
	if p.HasCapability(CapViewPlaylist) {
		return true
	}
	if editable {
		return true
	}
	if pl.ViewPermission == nil {
		return false
	}
	return pl.ViewPermission.Satisfies(p, m)
}

// CanCreateChannels reports whether the principal may create channels under
// the billing account.
func (e *Evaluator) CanCreateChannels(p domain.Principal, m domain.Membership, acct *domain.BillingAccount) bool {
	if p.HasCapability(CapCreateChannel) {
		return true
	}
	if acct.ChannelCreatePermission == nil {
		return false
	}
	return acct.ChannelCreatePermission.Satisfies(p, m)
}
