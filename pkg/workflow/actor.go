package workflow

import (
	"slices"
	"strings"

	"p9e.in/launchpad/models"
)

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	ID   string
	Name string
	Role models.Role
}

func (a Actor) Authenticated() bool {
	return a.ID != ""
}

func (a Actor) HasRole(roles ...models.Role) bool {
	return slices.Contains(roles, a.Role)
}

// requireRole fails with Unauthenticated for anonymous callers and
// Forbidden when the caller's role is not listed.
func requireRole(a Actor, roles ...models.Role) error {
	if !a.Authenticated() {
		return Unauthenticated()
	}
	if !a.HasRole(roles...) {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		return Forbidden("role %q may not perform this action (allowed: %s)", a.Role, strings.Join(names, ", "))
	}
	return nil
}
