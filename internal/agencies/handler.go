package agencies

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

// Store is the persistence the agencies handler needs.
type Store interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.AgencyConfig, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.AgencyConfig, error)
	Create(ctx context.Context, a *models.AgencyConfig) error
	CreateMany(ctx context.Context, orgID uuid.UUID, list []models.AgencyConfig) ([]models.AgencyConfig, error)
	Update(ctx context.Context, a *models.AgencyConfig) error
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

// Handler handles agency HTTP endpoints under /api/orgs/:orgId/agencies.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an agencies handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// AgencyRequest is the body for POST and PATCH.
type AgencyRequest struct {
	Name          *string   `json:"name"`
	Type          *string   `json:"type"`
	CommissionPct *float64  `json:"commission_pct"`
	TerritoryMode *string   `json:"territory_mode"`
	Continents    *[]string `json:"continents"`
	Countries     *[]string `json:"countries"`
	AmericasPct   *float64  `json:"americas_pct"`
	Notes         *string   `json:"notes"`
}

func (r AgencyRequest) apply(a *models.AgencyConfig) {
	if r.Name != nil {
		a.Name = *r.Name
	}
	if r.Type != nil {
		a.Type = models.AgencyType(strings.ToLower(*r.Type))
	}
	if r.CommissionPct != nil {
		a.CommissionPct = *r.CommissionPct
	}
	if r.TerritoryMode != nil {
		a.TerritoryMode = models.TerritoryMode(strings.ToLower(*r.TerritoryMode))
	}
	if r.Continents != nil {
		a.Continents = *r.Continents
	}
	if r.Countries != nil {
		a.Countries = *r.Countries
	}
	if r.AmericasPct != nil {
		a.AmericasPct = r.AmericasPct
	}
	if r.Notes != nil {
		a.Notes = *r.Notes
	}
}

// List handles GET /agencies.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		response.Internal(c, "failed to list agencies")
		return
	}
	response.OK(c, list)
}

// Create handles POST /agencies.
func (h *Handler) Create(c *gin.Context) {
	var req AgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a := models.AgencyConfig{OrganizationID: middleware.OrganizationID(c)}
	req.apply(&a)
	if err := Validate(&a); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Create(c.Request.Context(), &a); err != nil {
		if isUniqueViolation(err) {
			response.Conflict(c, "an agency with this name already exists")
			return
		}
		h.logger.Error("create agency", zap.Error(err))
		response.Internal(c, "failed to create agency")
		return
	}
	response.Created(c, a)
}

// Update handles PATCH /agencies/:agencyId.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("agencyId"))
	if err != nil {
		response.BadRequest(c, "invalid agency id")
		return
	}
	var req AgencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.store.Get(c.Request.Context(), middleware.OrganizationID(c), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	req.apply(a)
	if err := Validate(a); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Update(c.Request.Context(), a); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.OK(c, a)
}

// Delete handles DELETE /agencies/:agencyId.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("agencyId"))
	if err != nil {
		response.BadRequest(c, "invalid agency id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), middleware.OrganizationID(c), id); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.NoContent(c)
}

// LoadPresets handles POST /agencies/presets. Adds the built-in agencies the organization lacks.
func (h *Handler) LoadPresets(c *gin.Context) {
	orgID := middleware.OrganizationID(c)
	presets, err := Presets()
	if err != nil {
		h.logger.Error("load presets", zap.Error(err))
		response.Internal(c, "failed to load presets")
		return
	}
	existing, err := h.store.List(c.Request.Context(), orgID)
	if err != nil {
		response.Internal(c, "failed to list agencies")
		return
	}
	missing := MergePresets(existing, presets)
	if len(missing) == 0 {
		response.OK(c, []models.AgencyConfig{})
		return
	}
	created, err := h.store.CreateMany(c.Request.Context(), orgID, missing)
	if err != nil {
		h.logger.Error("create presets", zap.Error(err))
		response.Internal(c, "failed to create presets")
		return
	}
	response.Created(c, created)
}

// PreviewRequest is an unsaved show to compute commission for.
type PreviewRequest struct {
	Fee              float64 `json:"fee"`
	Country          string  `json:"country" binding:"required"`
	Status           string  `json:"status"`
	BookingAgency    string  `json:"booking_agency"`
	ManagementAgency string  `json:"management_agency"`
}

// Preview handles POST /agencies/commission/preview.
func (h *Handler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	show := models.Show{
		Fee:              req.Fee,
		Country:          req.Country,
		Status:           models.ShowStatus(strings.ToLower(req.Status)),
		BookingAgency:    req.BookingAgency,
		ManagementAgency: req.ManagementAgency,
	}
	if show.Status == "" {
		show.Status = models.ShowConfirmed
	}
	list, err := h.store.List(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		response.Internal(c, "failed to list agencies")
		return
	}
	response.OK(c, ComputeBreakdown(show, list))
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "agency not found")
		return
	}
	h.logger.Error("agency store", zap.Error(err))
	response.Internal(c, "agency operation failed")
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique")
}
