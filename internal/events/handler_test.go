package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
)

type memStore struct {
	events map[uuid.UUID]*models.CalendarEvent
}

func newMemStore() *memStore { return &memStore{events: map[uuid.UUID]*models.CalendarEvent{}} }

func (m *memStore) live(orgID uuid.UUID) []models.CalendarEvent {
	var out []models.CalendarEvent
	for _, e := range m.events {
		if e.OrganizationID == orgID && e.DeletedAt == nil {
			out = append(out, *e)
		}
	}
	return out
}

func (m *memStore) ListRange(_ context.Context, orgID uuid.UUID, from, to time.Time) ([]models.CalendarEvent, error) {
	var out []models.CalendarEvent
	for _, e := range m.live(orgID) {
		if e.Start.Before(to) && (e.End.After(from) || e.RRule != "") {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListAll(_ context.Context, orgID uuid.UUID) ([]models.CalendarEvent, error) {
	return m.live(orgID), nil
}

func (m *memStore) Get(_ context.Context, orgID, id uuid.UUID) (*models.CalendarEvent, error) {
	e, ok := m.events[id]
	if !ok || e.OrganizationID != orgID || e.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, e *models.CalendarEvent) error {
	e.ID = uuid.New()
	e.CreatedAt, e.UpdatedAt = time.Now(), time.Now()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, e *models.CalendarEvent) error {
	if _, ok := m.events[e.ID]; !ok {
		return ErrNotFound
	}
	e.UpdatedAt = time.Now()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *memStore) SoftDelete(_ context.Context, orgID, id uuid.UUID) error {
	e, ok := m.events[id]
	if !ok || e.OrganizationID != orgID || e.DeletedAt != nil {
		return ErrNotFound
	}
	now := time.Now()
	e.DeletedAt, e.UpdatedAt = &now, now
	return nil
}

func setupRouter(store Store, orgID, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil)
	h.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	r := gin.New()
	org := r.Group("/orgs/:orgId", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextOrganizationID, orgID)
	})
	org.GET("/calendar.ics", h.Export)
	g := org.Group("/events")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:eventId", h.Get)
	g.PATCH("/:eventId", h.Update)
	g.DELETE("/:eventId", h.Delete)
	return r
}

func send(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateGetUpdateDelete(t *testing.T) {
	orgID, userID := uuid.New(), uuid.New()
	store := newMemStore()
	r := setupRouter(store, orgID, userID)
	base := "/orgs/" + orgID.String() + "/events"

	w := send(r, http.MethodPost, base, gin.H{
		"title": "Festival set", "start": "2025-03-14T20:00:00Z", "end": "2025-03-14T21:30:00Z", "type": "show",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data models.CalendarEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, models.EventConfirmed, created.Data.Status)
	assert.Equal(t, userID, created.Data.UserID)
	id := created.Data.ID.String()

	w = send(r, http.MethodPatch, base+"/"+id, gin.H{"status": "pending", "location": "Primavera"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.EventPending, store.events[created.Data.ID].Status)
	assert.Equal(t, "Primavera", store.events[created.Data.ID].Location)

	w = send(r, http.MethodPatch, base+"/"+id, gin.H{"end": "2025-03-14T19:00:00Z"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodDelete, base+"/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotNil(t, store.events[created.Data.ID].DeletedAt)

	w = send(r, http.MethodGet, base+"/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateValidation(t *testing.T) {
	orgID := uuid.New()
	r := setupRouter(newMemStore(), orgID, uuid.New())
	base := "/orgs/" + orgID.String() + "/events"

	for name, body := range map[string]gin.H{
		"no title":  {"start": "2025-03-14T20:00:00Z", "end": "2025-03-14T21:00:00Z"},
		"bad type":  {"title": "x", "start": "2025-03-14T20:00:00Z", "end": "2025-03-14T21:00:00Z", "type": "party"},
		"bad rrule": {"title": "x", "start": "2025-03-14T20:00:00Z", "end": "2025-03-14T21:00:00Z", "rrule": "FREQ=OFTEN"},
		"bad start": {"title": "x", "start": "tomorrow", "end": "2025-03-14T21:00:00Z"},
	} {
		w := send(r, http.MethodPost, base, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}
}

func TestGetOtherTenantIsNotFound(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	store := newMemStore()
	e := &models.CalendarEvent{OrganizationID: orgB, Title: "private", Start: time.Now(), End: time.Now()}
	require.NoError(t, store.Create(context.Background(), e))

	r := setupRouter(store, orgA, uuid.New())
	w := send(r, http.MethodGet, "/orgs/"+orgA.String()+"/events/"+e.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "private")
}

func TestListExpandsRecurring(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.CalendarEvent{
		OrganizationID: orgID, Title: "Rehearsal", Type: models.EventRehearsal, Status: models.EventConfirmed,
		Start: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC),
		RRule: "FREQ=WEEKLY;COUNT=6",
	}))
	require.NoError(t, store.Create(ctx, &models.CalendarEvent{
		OrganizationID: orgID, Title: "Show", Type: models.EventShow, Status: models.EventConfirmed,
		Start: time.Date(2025, 3, 8, 20, 0, 0, 0, time.UTC), End: time.Date(2025, 3, 8, 23, 0, 0, 0, time.UTC),
	}))

	r := setupRouter(store, orgID, uuid.New())
	w := send(r, http.MethodGet, "/orgs/"+orgID.String()+"/events?from=2025-03-01&to=2025-03-15", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data ListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Events, 2)
	require.Len(t, resp.Data.Occurrences, 3)
	assert.Equal(t, "Rehearsal", resp.Data.Occurrences[0].Title)
	assert.Equal(t, "Show", resp.Data.Occurrences[1].Title)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), resp.Data.Occurrences[2].Start)

	w = send(r, http.MethodGet, "/orgs/"+orgID.String()+"/events?from=2025-03-15&to=2025-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	require.NoError(t, store.Create(context.Background(), &models.CalendarEvent{
		OrganizationID: orgID, Title: "Live in Lisbon", Type: models.EventShow, Status: models.EventPending,
		Start: time.Date(2025, 4, 2, 21, 0, 0, 0, time.UTC), End: time.Date(2025, 4, 2, 23, 0, 0, 0, time.UTC),
	}))

	r := setupRouter(store, orgID, uuid.New())
	w := send(r, http.MethodGet, "/orgs/"+orgID.String()+"/calendar.ics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))
	body := w.Body.String()
	assert.Contains(t, body, "SUMMARY:Live in Lisbon")
	assert.Contains(t, body, "DTSTART:20250402T210000Z")
	assert.Contains(t, body, "STATUS:TENTATIVE")
	assert.Contains(t, body, "DESCRIPTION:[SHOW] ")
}

func TestRenderCalendarLogsSkippedEvents(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	start := time.Date(2025, 4, 2, 21, 0, 0, 0, time.UTC)
	require.NoError(t, store.Create(context.Background(), &models.CalendarEvent{
		OrganizationID: orgID, Title: "Live in Lisbon", Type: models.EventShow, Start: start, End: start.Add(2 * time.Hour),
	}))
	broken := &models.CalendarEvent{
		OrganizationID: orgID, Title: "Backwards bus call", Type: models.EventTravel, Start: start, End: start.Add(-time.Hour),
	}
	require.NoError(t, store.Create(context.Background(), broken))

	core, logs := observer.New(zapcore.WarnLevel)
	text, err := RenderCalendar(context.Background(), store, orgID, "On Tour", start, zap.New(core))

	require.NoError(t, err)
	assert.Contains(t, text, "SUMMARY:Live in Lisbon")
	assert.NotContains(t, text, "Backwards bus call")
	entries := logs.FilterMessage("event left out of calendar export").All()
	require.Len(t, entries, 1)
	assert.Equal(t, orgID.String(), entries[0].ContextMap()["organization_id"])
	assert.Contains(t, entries[0].ContextMap()["error"], broken.ID.String())
}
