// Package cdb talks to the content delivery backend's management API and
// understands the conventions used to smuggle catalogue metadata through
// the backend's free-form custom fields.
package cdb

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/uisautomation/mediaplatform/internal/domain"
)

// Custom field values have the form "<type>:<value>:". The value part may
// itself contain colons.
var fieldPattern = regexp.MustCompile(`^([a-zA-Z0-9_]+):(.*):$`)

// ParseCustomField extracts the value from a custom field, checking that
// the field's recorded type matches the expected one.
func ParseCustomField(expectedType, field string) (string, error) {
	m := fieldPattern.FindStringSubmatch(field)
	if m == nil {
		return "", fmt.Errorf("invalid custom field %q", field)
	}
	if m[1] != expectedType {
		return "", fmt.Errorf("expected custom field of type %q, got %q", expectedType, m[1])
	}
	return m[2], nil
}

// FormatCustomField renders a typed custom field value.
func FormatCustomField(fieldType, value string) string {
	return fieldType + ":" + value + ":"
}

// ACL atom prefixes. An ACL is a comma-separated list of atoms; access is
// granted when any atom matches.
const (
	aclWorld       = "WORLD"
	aclCam         = "CAM"
	aclInstPrefix  = "INST_"
	aclGroupPrefix = "GROUP_"
	aclUserPrefix  = "USER_"
)

// ParseACL splits an ACL custom field value into its atoms. Some historic
// records hold a Python list repr such as "['WORLD']" instead of the plain
// form; both are accepted. Blank atoms are dropped.
func ParseACL(value string) []string {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
		value = strings.TrimPrefix(value, "[")
		value = strings.TrimSuffix(value, "]")
	}

	var atoms []string
	for _, atom := range strings.Split(value, ",") {
		atom = strings.Trim(strings.TrimSpace(atom), `'"`)
		if atom == "" {
			continue
		}
		atoms = append(atoms, atom)
	}
	return atoms
}

// ACLToPermission fills the permission's access fields from ACL atoms.
// Unrecognised atoms are returned so callers can log them. The permission's
// previous access fields are discarded.
func ACLToPermission(atoms []string, p *domain.Permission) (unknown []string) {
	p.Reset()
	for _, atom := range atoms {
		switch {
		case atom == aclWorld:
			p.IsPublic = true
		case atom == aclCam:
			p.IsSignedIn = true
		case strings.HasPrefix(atom, aclInstPrefix):
			p.LookupInsts = append(p.LookupInsts, strings.TrimPrefix(atom, aclInstPrefix))
		case strings.HasPrefix(atom, aclGroupPrefix):
			p.LookupGroups = append(p.LookupGroups, strings.TrimPrefix(atom, aclGroupPrefix))
		case strings.HasPrefix(atom, aclUserPrefix):
			p.CRSIDs = append(p.CRSIDs, strings.TrimPrefix(atom, aclUserPrefix))
		default:
			unknown = append(unknown, atom)
		}
	}
	return unknown
}

// PermissionToACL renders a permission's access fields as ACL atoms, the
// inverse of ACLToPermission.
func PermissionToACL(p *domain.Permission) []string {
	var atoms []string
	if p.IsPublic {
		atoms = append(atoms, aclWorld)
	}
	if p.IsSignedIn {
		atoms = append(atoms, aclCam)
	}
	for _, inst := range p.LookupInsts {
		atoms = append(atoms, aclInstPrefix+inst)
	}
	for _, group := range p.LookupGroups {
		atoms = append(atoms, aclGroupPrefix+group)
	}
	for _, crsid := range p.CRSIDs {
		atoms = append(atoms, aclUserPrefix+crsid)
	}
	return atoms
}
