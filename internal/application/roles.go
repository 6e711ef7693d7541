package application

// Role is the closed set of authorization roles. Only types in this package
// implement it.
type Role interface {
	isRole()
}

// AdminRole may act on any user.
type AdminRole struct{}

// StandardRole may act only on its own user id.
type StandardRole struct {
	OwnerID int64
}

func (AdminRole) isRole()    {}
func (StandardRole) isRole() {}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID int64
	Role   Role
}

// NewPrincipal derives the role from the stored admin flag.
func NewPrincipal(userID int64, isAdmin bool) Principal {
	if isAdmin {
		return Principal{UserID: userID, Role: AdminRole{}}
	}
	return Principal{UserID: userID, Role: StandardRole{OwnerID: userID}}
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	_, ok := p.Role.(AdminRole)
	return ok
}

// CanActOnUser reports whether the principal may act on behalf of userID.
// Unknown or missing roles are denied.
func (p Principal) CanActOnUser(userID int64) bool {
	switch role := p.Role.(type) {
	case AdminRole:
		return true
	case StandardRole:
		return role.OwnerID == userID
	default:
		return false
	}
}
