// Package admin provides site-wide user administration: listing accounts,
// changing roles, and disabling or re-enabling sign-in. Every route
// requires the users.manage permission.
package admin

import (
	"github.com/keyxmakerx/minutes/internal/plugins/auth"
)

// usersPerPage is the default page size for the user listing.
const usersPerPage = 25

// maxUsersPerPage caps the per_page query parameter.
const maxUsersPerPage = 100

// UserPage is one page of the user listing.
type UserPage struct {
	Users   []auth.User `json:"users"`
	Total   int         `json:"total"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

// ChangeRoleRequest is the body of PUT /users/:id/role.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}
