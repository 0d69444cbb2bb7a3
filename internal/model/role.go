package model

// Role scopes which surfaces a user can reach. The two roles see disjoint
// menus; case-management intake is reachable only by the admin role.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleAgencyManager Role = "agency_manager"
)

// Valid reports whether the role is one this engine knows.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleAgencyManager
}

// CanManageCases reports whether the role may enter the case-intake and
// status-update surfaces.
func (r Role) CanManageCases() bool {
	return r == RoleAdmin
}
