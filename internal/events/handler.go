package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontour-app/backend/internal/ics"
	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
	"github.com/ontour-app/backend/pkg/response"
)

const defaultWindow = 90 * 24 * time.Hour

// Store is the persistence the events handler needs.
type Store interface {
	ListRange(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]models.CalendarEvent, error)
	ListAll(ctx context.Context, orgID uuid.UUID) ([]models.CalendarEvent, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.CalendarEvent, error)
	Create(ctx context.Context, e *models.CalendarEvent) error
	Update(ctx context.Context, e *models.CalendarEvent) error
	SoftDelete(ctx context.Context, orgID, id uuid.UUID) error
}

// Handler handles calendar event endpoints under /api/orgs/:orgId/events.
type Handler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler creates an events handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// EventRequest is the body for POST and PATCH. Times are RFC 3339.
type EventRequest struct {
	Title       *string `json:"title"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Type        *string `json:"type"`
	ShowID      *string `json:"show_id"`
	RRule       *string `json:"rrule"`
}

func (r EventRequest) apply(e *models.CalendarEvent) error {
	if r.Title != nil {
		e.Title = strings.TrimSpace(*r.Title)
	}
	if r.Start != nil {
		t, err := parseTime(*r.Start)
		if err != nil {
			return errors.New("invalid start")
		}
		e.Start = t
	}
	if r.End != nil {
		t, err := parseTime(*r.End)
		if err != nil {
			return errors.New("invalid end")
		}
		e.End = t
	}
	if r.Location != nil {
		e.Location = *r.Location
	}
	if r.Description != nil {
		e.Description = *r.Description
	}
	if r.Status != nil {
		e.Status = models.EventStatus(strings.ToLower(*r.Status))
	}
	if r.Type != nil {
		e.Type = models.EventType(strings.ToLower(*r.Type))
	}
	if r.ShowID != nil {
		if *r.ShowID == "" {
			e.ShowID = nil
		} else {
			id, err := uuid.Parse(*r.ShowID)
			if err != nil {
				return errors.New("invalid show_id")
			}
			e.ShowID = &id
		}
	}
	if r.RRule != nil {
		e.RRule = strings.TrimPrefix(strings.TrimSpace(*r.RRule), "RRULE:")
	}
	return nil
}

// Validate fills defaults and checks an event before it is stored.
func Validate(e *models.CalendarEvent) error {
	if e.Title == "" {
		return errors.New("title is required")
	}
	if e.Start.IsZero() || e.End.IsZero() {
		return errors.New("start and end are required")
	}
	if e.End.Before(e.Start) {
		return errors.New("end must not be before start")
	}
	if e.Status == "" {
		e.Status = models.EventConfirmed
	}
	switch e.Status {
	case models.EventConfirmed, models.EventPending, models.EventCancelled:
	default:
		return fmt.Errorf("invalid status %q", e.Status)
	}
	if e.Type == "" {
		e.Type = models.EventOther
	}
	if !models.ValidEventType(e.Type) {
		return fmt.Errorf("invalid type %q", e.Type)
	}
	return ics.ValidateRule(e.RRule)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

// ListResponse carries stored events and their concrete occurrences in the window.
type ListResponse struct {
	From        time.Time              `json:"from"`
	To          time.Time              `json:"to"`
	Events      []models.CalendarEvent `json:"events"`
	Occurrences []models.Occurrence    `json:"occurrences"`
}

// List handles GET /events?from&to. Recurring events are expanded into occurrences.
func (h *Handler) List(c *gin.Context) {
	from := h.now().UTC().Truncate(24 * time.Hour)
	to := from.Add(defaultWindow)
	if s := c.Query("from"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			response.BadRequest(c, "invalid from")
			return
		}
		from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := parseTime(s)
		if err != nil {
			response.BadRequest(c, "invalid to")
			return
		}
		to = t
	}
	if !to.After(from) {
		response.BadRequest(c, "to must be after from")
		return
	}

	list, err := h.store.ListRange(c.Request.Context(), middleware.OrganizationID(c), from, to)
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	response.OK(c, ListResponse{From: from, To: to, Events: list, Occurrences: h.occurrences(list, from, to)})
}

func (h *Handler) occurrences(list []models.CalendarEvent, from, to time.Time) []models.Occurrence {
	out := []models.Occurrence{}
	for _, e := range list {
		spans, truncated, err := ics.Expand(e.Start, e.End, e.RRule, from, to, 0)
		if err != nil {
			h.logger.Warn("expand event", zap.String("event_id", e.ID.String()), zap.Error(err))
			continue
		}
		if truncated {
			h.logger.Warn("expand event truncated", zap.String("event_id", e.ID.String()))
		}
		for _, s := range spans {
			out = append(out, models.Occurrence{
				EventID: e.ID, Title: e.Title, Start: s.Start, End: s.End, Type: e.Type, Status: e.Status,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Create handles POST /events.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	userID, _ := middleware.UserID(c)
	e := models.CalendarEvent{OrganizationID: middleware.OrganizationID(c), UserID: userID}
	if err := req.apply(&e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := Validate(&e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Create(c.Request.Context(), &e); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// Get handles GET /events/:eventId.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.store.Get(c.Request.Context(), middleware.OrganizationID(c), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /events/:eventId.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.store.Get(c.Request.Context(), middleware.OrganizationID(c), id)
	if err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	if err := req.apply(e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := Validate(e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Update(c.Request.Context(), e); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.OK(c, e)
}

// Delete handles DELETE /events/:eventId.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.store.SoftDelete(c.Request.Context(), middleware.OrganizationID(c), id); err != nil {
		h.notFoundOrInternal(c, err)
		return
	}
	response.NoContent(c)
}

// Export handles GET /calendar.ics.
func (h *Handler) Export(c *gin.Context) {
	orgID := middleware.OrganizationID(c)
	text, err := RenderCalendar(c.Request.Context(), h.store, orgID, "On Tour", h.now(), h.logger)
	if err != nil {
		h.logger.Error("export events", zap.Error(err))
		response.Internal(c, "failed to export calendar")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="ontour-`+orgID.String()+`.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(text))
}

// Lister is the subset of Store needed to render a calendar.
type Lister interface {
	ListAll(ctx context.Context, orgID uuid.UUID) ([]models.CalendarEvent, error)
}

// RenderCalendar renders every live event of an organization as one ICS document.
// Events that cannot be serialized are left out and logged.
func RenderCalendar(ctx context.Context, store Lister, orgID uuid.UUID, name string, now time.Time, logger *zap.Logger) (string, error) {
	list, err := store.ListAll(ctx, orgID)
	if err != nil {
		return "", err
	}
	evs := make([]ics.Event, 0, len(list))
	for _, e := range list {
		ev := ToICS(e)
		if ev.UID == "" {
			ev.UID = e.ID.String() + "@ontour.app"
		}
		evs = append(evs, ev)
	}
	text, errs := ics.FormatCalendar(name, evs, now)
	if len(errs) > 0 && logger != nil {
		for _, err := range errs {
			logger.Warn("event left out of calendar export", zap.String("organization_id", orgID.String()), zap.Error(err))
		}
	}
	return text, nil
}

func (h *Handler) notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "event not found")
		return
	}
	h.logger.Error("event store", zap.Error(err))
	response.Internal(c, "event operation failed")
}
