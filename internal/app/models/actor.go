package models

// Actor is the authenticated caller of a service operation together with the
// request origin recorded in activity logs.
type Actor struct {
	UserID       int64
	Role         RoleType
	DepartmentID *int64
	IPAddress    string
	UserAgent    string
}

// Is reports whether the actor has one of roles.
func (a *Actor) Is(roles ...RoleType) bool {
	if a == nil {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
