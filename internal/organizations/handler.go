package organizations

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
	"github.com/ontour-app/backend/pkg/response"
)

// Slug must be lowercase alphanumeric and hyphens only, 2-64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// Store is the persistence the organizations handler needs.
type Store interface {
	CreateWithOwner(ctx context.Context, org *models.Organization, ownerID uuid.UUID) error
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	Join(ctx context.Context, orgID, userID uuid.UUID, role string) error
	GetUserRole(ctx context.Context, orgID, userID uuid.UUID) (string, error)
	SetRole(ctx context.Context, orgID, userID uuid.UUID, role string) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	ListMembers(ctx context.Context, orgID uuid.UUID) ([]Member, error)
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an organizations handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

// JoinOrganizationRequest is the body for POST /organizations/join.
type JoinOrganizationRequest struct {
	Slug string `json:"slug" binding:"required"`
}

// SetRoleRequest is the body for PATCH /orgs/:orgId/members/:userId.
type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// CreateOrganization handles POST /organizations. The caller becomes owner.
func (h *Handler) CreateOrganization(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and slug required")
		return
	}
	body.Slug = strings.ToLower(strings.TrimSpace(body.Slug))
	if !slugRegex.MatchString(body.Slug) {
		response.BadRequest(c, "slug must be 2-64 chars, lowercase letters, numbers, hyphens only")
		return
	}
	body.Name = strings.TrimSpace(body.Name)
	if len(body.Name) < 1 || len(body.Name) > 255 {
		response.BadRequest(c, "name must be 1-255 characters")
		return
	}
	org := &models.Organization{Name: body.Name, Slug: body.Slug}
	if err := h.store.CreateWithOwner(c.Request.Context(), org, userID); err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique") {
			response.Conflict(c, "an organization with this slug already exists")
			return
		}
		h.logger.Error("create organization", zap.Error(err))
		response.Internal(c, "failed to create organization")
		return
	}
	response.Created(c, org)
}

// JoinOrganization handles POST /organizations/join. New members join as member.
func (h *Handler) JoinOrganization(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	var body JoinOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "slug required")
		return
	}
	slug := strings.ToLower(strings.TrimSpace(body.Slug))
	if slug == "" {
		response.BadRequest(c, "slug required")
		return
	}
	org, err := h.store.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "organization not found")
			return
		}
		h.logger.Error("get organization", zap.Error(err))
		response.Internal(c, "failed to join organization")
		return
	}
	if err := h.store.Join(c.Request.Context(), org.ID, userID, models.OrgRoleMember); err != nil {
		h.logger.Error("join organization", zap.Error(err))
		response.Internal(c, "failed to join organization")
		return
	}
	response.OK(c, org)
}

// ListMyOrganizations handles GET /organizations.
func (h *Handler) ListMyOrganizations(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	orgs, err := h.store.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list organizations", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, orgs)
}

// ListMembers handles GET /orgs/:orgId/members. Requires RequireOrgAccess.
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.store.ListMembers(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		h.logger.Error("list members", zap.Error(err))
		response.Internal(c, "failed to load members")
		return
	}
	response.OK(c, members)
}

// SetMemberRole handles PATCH /orgs/:orgId/members/:userId. Owners only.
func (h *Handler) SetMemberRole(c *gin.Context) {
	if c.GetString(middleware.ContextOrgRole) != models.OrgRoleOwner {
		response.Forbidden(c, "only owners can change roles")
		return
	}
	memberID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var body SetRoleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "role required")
		return
	}
	role := strings.ToLower(strings.TrimSpace(body.Role))
	if !models.ValidOrgRole(role) {
		response.BadRequest(c, "role must be owner, manager, member or viewer")
		return
	}
	err = h.store.SetRole(c.Request.Context(), middleware.OrganizationID(c), memberID, role)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "member not found")
	case errors.Is(err, ErrLastOwner):
		response.Conflict(c, err.Error())
	case err != nil:
		h.logger.Error("set member role", zap.Error(err))
		response.Internal(c, "failed to change role")
	default:
		response.OK(c, gin.H{"user_id": memberID, "role": role})
	}
}
