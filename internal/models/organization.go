package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant: an artist's team or an agency roster.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Roles a user can hold inside an organization.
const (
	OrgRoleOwner   = "owner"
	OrgRoleManager = "manager"
	OrgRoleMember  = "member"
	OrgRoleViewer  = "viewer"
)

// CanWrite reports whether an organization role may modify tenant data.
func CanWrite(orgRole string) bool {
	switch orgRole {
	case OrgRoleOwner, OrgRoleManager, OrgRoleMember:
		return true
	}
	return false
}

// ValidOrgRole reports whether role is one of the organization roles.
func ValidOrgRole(role string) bool {
	return role == OrgRoleOwner || CanWrite(role) || role == OrgRoleViewer
}

// OrganizationUser links a user to an organization with a role.
type OrganizationUser struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	UserID         uuid.UUID `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
