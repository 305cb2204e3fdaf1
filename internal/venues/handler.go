package venues

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
	"github.com/ontour-app/backend/pkg/response"
)

// Store is the persistence the venues handler needs.
type Store interface {
	List(ctx context.Context, orgID uuid.UUID, search string) ([]models.Venue, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Venue, error)
	Create(ctx context.Context, v *models.Venue) error
	Update(ctx context.Context, v *models.Venue) error
	SoftDelete(ctx context.Context, orgID, id uuid.UUID) error
}

// Handler handles venue endpoints under /api/orgs/:orgId/venues.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a venues handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// VenueRequest is the body for POST and PATCH.
type VenueRequest struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	City     *string `json:"city"`
	Country  *string `json:"country"`
	Capacity *int    `json:"capacity"`
	Notes    *string `json:"notes"`
}

func (r VenueRequest) apply(v *models.Venue) {
	if r.Name != nil {
		v.Name = strings.TrimSpace(*r.Name)
	}
	if r.Address != nil {
		v.Address = *r.Address
	}
	if r.City != nil {
		v.City = *r.City
	}
	if r.Country != nil {
		v.Country = strings.ToUpper(strings.TrimSpace(*r.Country))
	}
	if r.Capacity != nil {
		v.Capacity = *r.Capacity
	}
	if r.Notes != nil {
		v.Notes = *r.Notes
	}
}

func validate(v *models.Venue) error {
	if v.Name == "" {
		return errors.New("name is required")
	}
	if v.Capacity < 0 {
		return errors.New("capacity must not be negative")
	}
	return nil
}

// List handles GET /venues?q=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), middleware.OrganizationID(c), strings.TrimSpace(c.Query("q")))
	if err != nil {
		h.logger.Error("list venues", zap.Error(err))
		response.Internal(c, "failed to list venues")
		return
	}
	response.OK(c, list)
}

// Create handles POST /venues.
func (h *Handler) Create(c *gin.Context) {
	var req VenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v := models.Venue{OrganizationID: middleware.OrganizationID(c)}
	req.apply(&v)
	if err := validate(&v); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Create(c.Request.Context(), &v); err != nil {
		h.logger.Error("create venue", zap.Error(err))
		response.Internal(c, "failed to create venue")
		return
	}
	response.Created(c, v)
}

// Get handles GET /venues/:venueId.
func (h *Handler) Get(c *gin.Context) {
	id, ok := venueID(c)
	if !ok {
		return
	}
	v, err := h.store.Get(c.Request.Context(), middleware.OrganizationID(c), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.OK(c, v)
}

// Update handles PATCH /venues/:venueId.
func (h *Handler) Update(c *gin.Context) {
	id, ok := venueID(c)
	if !ok {
		return
	}
	var req VenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	v, err := h.store.Get(c.Request.Context(), middleware.OrganizationID(c), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	req.apply(v)
	if err := validate(v); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Update(c.Request.Context(), v); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.OK(c, v)
}

// Delete handles DELETE /venues/:venueId.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := venueID(c)
	if !ok {
		return
	}
	if err := h.store.SoftDelete(c.Request.Context(), middleware.OrganizationID(c), id); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.NoContent(c)
}

func venueID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("venueId"))
	if err != nil {
		response.BadRequest(c, "invalid venue id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "venue not found")
		return
	}
	h.logger.Error("venue store", zap.Error(err))
	response.Internal(c, "venue operation failed")
}
