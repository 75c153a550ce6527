package domain

// Principal identifies the caller of a request. The zero value is the
// anonymous principal.
type Principal struct {
	// Username is the principal's crsid. Empty for the anonymous principal.
	Username string

	// Capabilities is the set of superuser capabilities held by the
	// principal, e.g. "view_mediaitem". Normal users have none.
	Capabilities map[string]bool
}

// Anonymous is the unauthenticated principal.
var Anonymous = Principal{}

// IsAnonymous reports whether the principal is unauthenticated.
func (p Principal) IsAnonymous() bool { return p.Username == "" }

// HasCapability reports whether the principal holds the named superuser
// capability.
func (p Principal) HasCapability(name string) bool { return p.Capabilities[name] }

// Membership is an immutable snapshot of a principal's directory memberships,
// captured once at request entry and reused for every authorization decision
// within the request.
type Membership struct {
	GroupIDs []string
	InstIDs  []string
}

// EmptyMembership is the membership snapshot of the anonymous principal and
// of principals whose directory lookup failed.
var EmptyMembership = Membership{}
