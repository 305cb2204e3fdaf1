package venues

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

	"github.com/ontour-app/backend/internal/middleware"
	"github.com/ontour-app/backend/internal/models"
)

type memStore struct {
	venues map[uuid.UUID]*models.Venue
}

func (m *memStore) List(_ context.Context, orgID uuid.UUID, search string) ([]models.Venue, error) {
	list := []models.Venue{}
	for _, v := range m.venues {
		if v.OrganizationID != orgID || v.DeletedAt != nil {
			continue
		}
		q := strings.ToLower(search)
		if q != "" && !strings.Contains(strings.ToLower(v.Name), q) && !strings.Contains(strings.ToLower(v.City), q) {
			continue
		}
		list = append(list, *v)
	}
	return list, nil
}

func (m *memStore) Get(_ context.Context, orgID, id uuid.UUID) (*models.Venue, error) {
	v, ok := m.venues[id]
	if !ok || v.OrganizationID != orgID || v.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, v *models.Venue) error {
	v.ID = uuid.New()
	v.CreatedAt, v.UpdatedAt = time.Now(), time.Now()
	cp := *v
	m.venues[v.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, v *models.Venue) error {
	cp := *v
	m.venues[v.ID] = &cp
	return nil
}

func (m *memStore) SoftDelete(ctx context.Context, orgID, id uuid.UUID) error {
	if _, err := m.Get(ctx, orgID, id); err != nil {
		return err
	}
	now := time.Now()
	m.venues[id].DeletedAt = &now
	return nil
}

func setupRouter(store Store, orgID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil)
	r := gin.New()
	g := r.Group("/orgs/:orgId/venues", func(c *gin.Context) {
		c.Set(middleware.ContextOrganizationID, orgID)
	})
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:venueId", h.Get)
	g.PATCH("/:venueId", h.Update)
	g.DELETE("/:venueId", h.Delete)
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

func TestVenueCRUD(t *testing.T) {
	orgID, otherOrg := uuid.New(), uuid.New()
	store := &memStore{venues: map[uuid.UUID]*models.Venue{}}
	r := setupRouter(store, orgID)
	other := setupRouter(store, otherOrg)
	base := "/orgs/" + orgID.String() + "/venues"

	w := send(r, http.MethodPost, base, gin.H{"capacity": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, base, gin.H{"name": "Paradiso", "city": "Amsterdam", "country": "nl", "capacity": 1500})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data models.Venue `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID.String()
	assert.Equal(t, "NL", created.Data.Country)

	w = send(r, http.MethodPatch, base+"/"+id, gin.H{"capacity": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = send(r, http.MethodPatch, base+"/"+id, gin.H{"capacity": 1550})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1550, store.venues[created.Data.ID].Capacity)

	w = send(r, http.MethodGet, base+"?q=amster", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Paradiso")

	w = send(other, http.MethodGet, "/orgs/"+otherOrg.String()+"/venues/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = send(r, http.MethodDelete, base+"/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.NotNil(t, store.venues[created.Data.ID].DeletedAt, "row is kept")

	w = send(r, http.MethodGet, base+"/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = send(r, http.MethodDelete, base+"/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = send(r, http.MethodGet, base+"/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
