package domain

import "slices"

// Permission specifies whether a principal may perform some action.
//
// A principal has the permission if any of the following hold:
//
//   - IsPublic is true (this includes the anonymous principal)
//   - IsSignedIn is true and the principal is not anonymous
//   - the principal's crsid appears in CRSIDs
//   - one of the principal's lookup groups appears in LookupGroups
//   - one of the principal's lookup institutions appears in LookupInsts
type Permission struct {
	ID string

	// Exactly one of the following refs is set, tying the permission to its
	// parent object. AllowsEditItemID is stored but never consulted when
	// authorizing an edit; edit decisions route through the containing
	// channel.
	AllowsViewItemID      *string
	AllowsEditItemID      *string
	AllowsEditChannelID   *string
	AllowsViewPlaylistID  *string
	AllowsCreateForAcctID *string

	CRSIDs       []string
	LookupGroups []string
	LookupInsts  []string
	IsPublic     bool
	IsSignedIn   bool
}

// NewPermission returns a blank "allow nobody" permission with a fresh id.
func NewPermission() Permission {
	return Permission{ID: NewToken()}
}

// Reset returns the permission to the "allow nobody" state. Idempotent.
func (p *Permission) Reset() {
	p.CRSIDs = nil
	p.LookupGroups = nil
	p.LookupInsts = nil
	p.IsPublic = false
	p.IsSignedIn = false
}

// Satisfies reports whether the given principal, with the given membership
// snapshot, holds this permission.
func (p *Permission) Satisfies(principal Principal, m Membership) bool {
	if p.IsPublic {
		return true
	}
	if principal.IsAnonymous() {
		return false
	}
	if p.IsSignedIn {
		return true
	}
	if slices.Contains(p.CRSIDs, principal.Username) {
		return true
	}
	if overlaps(p.LookupGroups, m.GroupIDs) {
		return true
	}
	return overlaps(p.LookupInsts, m.InstIDs)
}

func overlaps(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}
	return false
}
