package shows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/agencies"
	"github.com/ontour-app/backend/internal/ics"
	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
	"github.com/ontour-app/backend/pkg/response"
)

// ShowDuration is the length of the calendar entry created for a show.
const ShowDuration = 4 * time.Hour

// Store is the persistence the shows handler needs.
type Store interface {
	List(ctx context.Context, orgID uuid.UUID, f Filter) ([]models.Show, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.Show, error)
	Create(ctx context.Context, s *models.Show) error
	Update(ctx context.Context, s *models.Show) error
	Cancel(ctx context.Context, orgID, id uuid.UUID) error
}

// AgencyLister loads an organization's agencies for commission.
type AgencyLister interface {
	List(ctx context.Context, orgID uuid.UUID) ([]models.AgencyConfig, error)
}

// EventCreator adds calendar entries for shows.
type EventCreator interface {
	Create(ctx context.Context, e *models.CalendarEvent) error
}

// Handler handles show endpoints under /api/orgs/:orgId/shows.
type Handler struct {
	store    Store
	agencies AgencyLister
	calendar EventCreator
	logger   *zap.Logger
}

// NewHandler creates a shows handler. calendar may be nil.
func NewHandler(store Store, agencyList AgencyLister, calendar EventCreator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, agencies: agencyList, calendar: calendar, logger: logger}
}

// ShowRequest is the body for POST and PATCH.
type ShowRequest struct {
	Name             *string  `json:"name"`
	Date             *string  `json:"date"`
	Venue            *string  `json:"venue"`
	City             *string  `json:"city"`
	Country          *string  `json:"country"`
	Fee              *float64 `json:"fee"`
	Currency         *string  `json:"currency"`
	Status           *string  `json:"status"`
	BookingAgency    *string  `json:"booking_agency"`
	ManagementAgency *string  `json:"management_agency"`
	Notes            *string  `json:"notes"`
	// AddToCalendar creates a linked show event on POST.
	AddToCalendar bool `json:"add_to_calendar"`
}

func (r ShowRequest) apply(s *models.Show) error {
	if r.Name != nil {
		s.Name = strings.TrimSpace(*r.Name)
	}
	if r.Date != nil {
		t, err := parseDate(*r.Date)
		if err != nil {
			return fmt.Errorf("invalid date %q", *r.Date)
		}
		s.Date = t
	}
	if r.Venue != nil {
		s.Venue = *r.Venue
	}
	if r.City != nil {
		s.City = *r.City
	}
	if r.Country != nil {
		s.Country = strings.ToUpper(strings.TrimSpace(*r.Country))
	}
	if r.Fee != nil {
		s.Fee = *r.Fee
	}
	if r.Currency != nil {
		s.Currency = strings.ToUpper(strings.TrimSpace(*r.Currency))
	}
	if r.Status != nil {
		s.Status = models.ShowStatus(strings.ToLower(*r.Status))
	}
	if r.BookingAgency != nil {
		s.BookingAgency = *r.BookingAgency
	}
	if r.ManagementAgency != nil {
		s.ManagementAgency = *r.ManagementAgency
	}
	if r.Notes != nil {
		s.Notes = *r.Notes
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

// Validate fills defaults and checks a show before it is stored.
func Validate(s *models.Show) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Date.IsZero() {
		return errors.New("date is required")
	}
	if len(s.Country) != 2 {
		return errors.New("country must be an ISO-3166 alpha-2 code")
	}
	if s.Fee < 0 {
		return errors.New("fee must not be negative")
	}
	if s.Currency == "" {
		s.Currency = "EUR"
	}
	if len(s.Currency) != 3 {
		return errors.New("currency must be a 3-letter code")
	}
	if s.Status == "" {
		s.Status = models.ShowPending
	}
	if !s.Status.Valid() {
		return fmt.Errorf("invalid status %q", s.Status)
	}
	return nil
}

// List handles GET /shows?from&to&status.
func (h *Handler) List(c *gin.Context) {
	var f Filter
	for param, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		v := c.Query(param)
		if v == "" {
			continue
		}
		t, err := parseDate(v)
		if err != nil {
			response.BadRequest(c, "invalid "+param)
			return
		}
		*dst = &t
	}
	if st := c.Query("status"); st != "" {
		f.Status = models.ShowStatus(strings.ToLower(st))
		if !f.Status.Valid() {
			response.BadRequest(c, "invalid status")
			return
		}
	}
	list, err := h.store.List(c.Request.Context(), middleware.OrganizationID(c), f)
	if err != nil {
		h.logger.Error("list shows", zap.Error(err))
		response.Internal(c, "failed to list shows")
		return
	}
	response.OK(c, list)
}

// Create handles POST /shows.
func (h *Handler) Create(c *gin.Context) {
	var req ShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, _ := middleware.UserID(c)
	s := models.Show{OrganizationID: middleware.OrganizationID(c), CreatedBy: userID}
	if err := req.apply(&s); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := Validate(&s); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Create(c.Request.Context(), &s); err != nil {
		h.logger.Error("create show", zap.Error(err))
		response.Internal(c, "failed to create show")
		return
	}
	if req.AddToCalendar && h.calendar != nil {
		ev := EventFor(s, userID)
		if err := h.calendar.Create(c.Request.Context(), &ev); err != nil {
			// The show is stored; the calendar entry can be added later.
			h.logger.Warn("create show event", zap.String("show_id", s.ID.String()), zap.Error(err))
		}
	}
	response.Created(c, s)
}

// EventFor builds the calendar entry that represents a show.
func EventFor(s models.Show, userID uuid.UUID) models.CalendarEvent {
	status := models.EventConfirmed
	switch s.Status {
	case models.ShowPending, models.ShowOffer:
		status = models.EventPending
	case models.ShowCancelled:
		status = models.EventCancelled
	}
	showID := s.ID
	return models.CalendarEvent{
		OrganizationID: s.OrganizationID,
		UserID:         userID,
		Title:          s.Name,
		Start:          s.Date,
		End:            s.Date.Add(ShowDuration),
		Location:       ics.LocationOf(s.Venue, s.City, s.Country),
		Description:    ics.Describe("", s.Notes, s.Fee, s.Currency),
		Status:         status,
		Type:           models.EventShow,
		ShowID:         &showID,
	}
}

// Get handles GET /shows/:showId.
func (h *Handler) Get(c *gin.Context) {
	s, ok := h.load(c)
	if !ok {
		return
	}
	response.OK(c, s)
}

// Update handles PATCH /shows/:showId.
func (h *Handler) Update(c *gin.Context) {
	var req ShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	s, ok := h.load(c)
	if !ok {
		return
	}
	if err := req.apply(s); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := Validate(s); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Update(c.Request.Context(), s); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.OK(c, s)
}

// Delete handles DELETE /shows/:showId by cancelling the show.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("showId"))
	if err != nil {
		response.BadRequest(c, "invalid show id")
		return
	}
	if err := h.store.Cancel(c.Request.Context(), middleware.OrganizationID(c), id); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.NoContent(c)
}

// Commission handles GET /shows/:showId/commission.
func (h *Handler) Commission(c *gin.Context) {
	s, ok := h.load(c)
	if !ok {
		return
	}
	list, err := h.agencies.List(c.Request.Context(), s.OrganizationID)
	if err != nil {
		h.logger.Error("list agencies", zap.Error(err))
		response.Internal(c, "failed to list agencies")
		return
	}
	response.OK(c, agencies.ComputeBreakdown(*s, list))
}

func (h *Handler) load(c *gin.Context) (*models.Show, bool) {
	id, err := uuid.Parse(c.Param("showId"))
	if err != nil {
		response.BadRequest(c, "invalid show id")
		return nil, false
	}
	s, err := h.store.Get(c.Request.Context(), middleware.OrganizationID(c), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "show not found")
		return
	}
	h.logger.Error("show store", zap.Error(err))
	response.Internal(c, "show operation failed")
}
