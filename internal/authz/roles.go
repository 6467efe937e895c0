package authz

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
	RoleViewer  Role = "viewer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleAgent, RoleViewer:
		return true
	}
	return false
}

// IsElevated reports whether the role sees and edits every record, not only its own.
func IsElevated(r Role) bool {
	return r == RoleAdmin || r == RoleManager
}

func IsReadOnly(r Role) bool {
	return r == RoleViewer
}

// CanSeeAll: elevated roles plus the read-only viewer.
func CanSeeAll(r Role) bool {
	return IsElevated(r) || r == RoleViewer
}
