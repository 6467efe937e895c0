package services

import (
	"reicrm/internal/authz"
)

// Actor is the authenticated caller as carried in the access token.
type Actor struct {
	UserID int64
	Role   authz.Role
	Plan   authz.Plan
}

func (a Actor) Elevated() bool { return authz.IsElevated(a.Role) }

func (a Actor) ReadOnly() bool { return authz.IsReadOnly(a.Role) }

// scope returns the user a listing must be limited to, nil when the actor sees everything.
func (a Actor) scope() *int64 {
	if authz.CanSeeAll(a.Role) {
		return nil
	}
	id := a.UserID
	return &id
}
