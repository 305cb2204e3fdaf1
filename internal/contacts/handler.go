package contacts

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
	"github.com/ontour-app/backend/pkg/response"
)

// Store is the persistence the contacts handler needs.
type Store interface {
	List(ctx context.Context, orgID uuid.UUID, search string) ([]models.Contact, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Contact, error)
	Create(ctx context.Context, ct *models.Contact) error
	Update(ctx context.Context, ct *models.Contact) error
	SoftDelete(ctx context.Context, orgID, id uuid.UUID) error
}

// Handler handles contact endpoints under /api/orgs/:orgId/contacts.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a contacts handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// ContactRequest is the body for POST and PATCH.
type ContactRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Role    *string `json:"role"`
	Company *string `json:"company"`
	Notes   *string `json:"notes"`
}

func (r ContactRequest) apply(ct *models.Contact) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&ct.Name, r.Name)
	set(&ct.Email, r.Email)
	set(&ct.Phone, r.Phone)
	set(&ct.Role, r.Role)
	set(&ct.Company, r.Company)
	if r.Notes != nil {
		ct.Notes = *r.Notes
	}
}

func validate(ct *models.Contact) error {
	if ct.Name == "" {
		return errors.New("name is required")
	}
	if ct.Email != "" {
		addr, err := mail.ParseAddress(ct.Email)
		if err != nil {
			return errors.New("invalid email")
		}
		ct.Email = strings.ToLower(addr.Address)
	}
	return nil
}

// List handles GET /contacts?q=.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context(), middleware.OrganizationID(c), strings.TrimSpace(c.Query("q")))
	if err != nil {
		h.logger.Error("list contacts", zap.Error(err))
		response.Internal(c, "failed to list contacts")
		return
	}
	response.OK(c, list)
}

// Create handles POST /contacts.
func (h *Handler) Create(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ct := models.Contact{OrganizationID: middleware.OrganizationID(c)}
	req.apply(&ct)
	if err := validate(&ct); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Create(c.Request.Context(), &ct); err != nil {
		h.logger.Error("create contact", zap.Error(err))
		response.Internal(c, "failed to create contact")
		return
	}
	response.Created(c, ct)
}

// Get handles GET /contacts/:contactId.
func (h *Handler) Get(c *gin.Context) {
	ct, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, ct)
}

// Update handles PATCH /contacts/:contactId.
func (h *Handler) Update(c *gin.Context) {
	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ct, ok := h.load(c)
	if !ok {
		return
	}
	req.apply(ct)
	if err := validate(ct); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Update(c.Request.Context(), ct); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.OK(c, ct)
}

// Delete handles DELETE /contacts/:contactId.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("contactId"))
	if err != nil {
		response.BadRequest(c, "invalid contact id")
		return
	}
	if err := h.store.SoftDelete(c.Request.Context(), middleware.OrganizationID(c), id); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) load(c *gin.Context) (*models.Contact, bool) {
	id, err := uuid.Parse(c.Param("contactId"))
	if err != nil {
		response.BadRequest(c, "invalid contact id")
		return nil, false
	}
	ct, err := h.store.Get(c.Request.Context(), middleware.OrganizationID(c), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return nil, false
	}
	return ct, true
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "contact not found")
		return
	}
	h.logger.Error("contact store", zap.Error(err))
	response.Internal(c, "contact operation failed")
}
