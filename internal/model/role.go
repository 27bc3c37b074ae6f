package model

// Role is the single role every user carries.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

// Capability names what a route needs from the acting user's role.
type Capability int

const (
	// CapAuthenticated is granted to every valid role.
	CapAuthenticated Capability = iota
	// CapManageCatalog covers the admin CRUD surface.
	CapManageCatalog
	// CapParticipate covers joining groups, reading and discussing.
	CapParticipate
)

// Allows reports whether r grants c. Admins do not participate: member
// routes are closed to them, matching the admin/member split of the UI.
func (r Role) Allows(c Capability) bool {
	switch c {
	case CapAuthenticated:
		return r.Valid()
	case CapManageCatalog:
		return r == RoleAdmin
	case CapParticipate:
		return r == RoleMember
	default:
		return false
	}
}
