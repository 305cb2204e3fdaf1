package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ontour-app/backend/internal/models"
	"github.com/ontour-app/backend/pkg/response"
)

const (
	// ContextOrganizationID is the key for the verified tenant ID in gin context.
	ContextOrganizationID = "organization_id"
	// ContextOrgRole is the key for the caller's role in that organization.
	ContextOrgRole = "org_role"
)

// OrgRoleLookup resolves a user's role in an organization.
type OrgRoleLookup interface {
	GetUserRole(ctx context.Context, orgID, userID uuid.UUID) (string, error)
}

// RequireOrgAccess validates that the caller is a member of the organization in the :orgId path param.
// Call after JWT. Non-members get 403, so other tenants' ids reveal nothing.
func RequireOrgAccess(lookup OrgRoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID, err := uuid.Parse(c.Param("orgId"))
		if err != nil {
			response.BadRequest(c, "invalid organization id")
			c.Abort()
			return
		}
		userID, ok := UserID(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, err := lookup.GetUserRole(c.Request.Context(), orgID, userID)
		if err != nil || role == "" {
			response.Forbidden(c, "not authorized for this organization")
			c.Abort()
			return
		}
		c.Set(ContextOrganizationID, orgID)
		c.Set(ContextOrgRole, role)
		c.Next()
	}
}

// RequireOrgWrite rejects callers whose organization role is read-only. Call after RequireOrgAccess.
func RequireOrgWrite() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextOrgRole)
		if !models.CanWrite(role) {
			response.Forbidden(c, "write access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// OrganizationID returns the tenant verified by RequireOrgAccess.
func OrganizationID(c *gin.Context) uuid.UUID {
	v, _ := c.Get(ContextOrganizationID)
	id, _ := v.(uuid.UUID)
	return id
}

// UserID returns the authenticated user set by JWT.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
