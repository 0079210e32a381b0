package workflow

import (
	"sort"
	"strings"
)

// Role represents an actor category authorized to act on requests
type Role string

const (
	RoleRequester          Role = "requester"
	RoleInstitutionManager Role = "institution_manager"
	RoleSOPVerifier        Role = "sop_verifier"
	RoleAccountant         Role = "accountant"
	RoleVP                 Role = "vp"
	RoleHeadOfInstitution  Role = "head_of_institution"
	RoleDean               Role = "dean"
	RoleMMA                Role = "mma"
	RoleHR                 Role = "hr"
	RoleAudit              Role = "audit"
	RoleIT                 Role = "it"
	RoleChiefDirector      Role = "chief_director"
	RoleChairman           Role = "chairman"
)

var validRoles = map[Role]bool{
	RoleRequester:          true,
	RoleInstitutionManager: true,
	RoleSOPVerifier:        true,
	RoleAccountant:         true,
	RoleVP:                 true,
	RoleHeadOfInstitution:  true,
	RoleDean:               true,
	RoleMMA:                true,
	RoleHR:                 true,
	RoleAudit:              true,
	RoleIT:                 true,
	RoleChiefDirector:      true,
	RoleChairman:           true,
}

// IsValid returns true if the role is a known actor category
func (r Role) IsValid() bool {
	return validRoles[r]
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// RoleSet is an unordered collection of distinct roles
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// ParseRoleSet rebuilds a set from its Encode form. Empty input yields an
// empty set.
func ParseRoleSet(encoded string) RoleSet {
	s := make(RoleSet)
	if encoded == "" {
		return s
	}
	for _, part := range strings.Split(encoded, ",") {
		if part != "" {
			s[Role(part)] = struct{}{}
		}
	}
	return s
}

// Has returns true if the role is a member of the set
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Add inserts the role into the set. Adding an existing member is a no-op.
func (s RoleSet) Add(r Role) {
	s[r] = struct{}{}
}

// Equal returns true if both sets contain exactly the same roles
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set
func (s RoleSet) Clone() RoleSet {
	c := make(RoleSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// Sorted returns the members in lexical order
func (s RoleSet) Sorted() []Role {
	roles := make([]Role, 0, len(s))
	for r := range s {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// Encode serializes the set as a comma-joined, lexically ordered string
func (s RoleSet) Encode() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, r := range sorted {
		parts[i] = string(r)
	}
	return strings.Join(parts, ",")
}
