package contacts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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
	rows map[uuid.UUID]*models.Contact
}

func (m *memStore) List(_ context.Context, orgID uuid.UUID, _ string) ([]models.Contact, error) {
	list := []models.Contact{}
	for _, ct := range m.rows {
		if ct.OrganizationID == orgID && ct.DeletedAt == nil {
			list = append(list, *ct)
		}
	}
	return list, nil
}

func (m *memStore) Get(_ context.Context, orgID, id uuid.UUID) (*models.Contact, error) {
	ct, ok := m.rows[id]
	if !ok || ct.OrganizationID != orgID || ct.DeletedAt != nil {
		return nil, ErrNotFound
	}
	cp := *ct
	return &cp, nil
}

func (m *memStore) Create(_ context.Context, ct *models.Contact) error {
	ct.ID = uuid.New()
	ct.CreatedAt, ct.UpdatedAt = time.Now(), time.Now()
	cp := *ct
	m.rows[ct.ID] = &cp
	return nil
}

func (m *memStore) Update(_ context.Context, ct *models.Contact) error {
	cp := *ct
	m.rows[ct.ID] = &cp
	return nil
}

func (m *memStore) SoftDelete(ctx context.Context, orgID, id uuid.UUID) error {
	if _, err := m.Get(ctx, orgID, id); err != nil {
		return err
	}
	now := time.Now()
	m.rows[id].DeletedAt = &now
	return nil
}

func setupRouter(store Store, orgID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(store, nil)
	r := gin.New()
	g := r.Group("/orgs/:orgId/contacts", func(c *gin.Context) {
		c.Set(middleware.ContextOrganizationID, orgID)
	})
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:contactId", h.Get)
	g.PATCH("/:contactId", h.Update)
	g.DELETE("/:contactId", h.Delete)
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

func TestContactCRUD(t *testing.T) {
	orgID := uuid.New()
	store := &memStore{rows: map[uuid.UUID]*models.Contact{}}
	r := setupRouter(store, orgID)
	base := "/orgs/" + orgID.String() + "/contacts"

	w := send(r, http.MethodPost, base, gin.H{"name": "Ana", "email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, http.MethodPost, base, gin.H{"name": " Ana Promoter ", "email": "Ana@Example.com", "company": "Live Nation"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Data models.Contact `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Ana Promoter", created.Data.Name)
	assert.Equal(t, "ana@example.com", created.Data.Email)
	id := created.Data.ID.String()

	w = send(r, http.MethodPatch, base+"/"+id, gin.H{"phone": "+34 600 000 000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "+34 600 000 000", store.rows[created.Data.ID].Phone)

	w = send(r, http.MethodPatch, base+"/"+id, gin.H{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(setupRouter(store, uuid.New()), http.MethodDelete, base+"/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "other tenants cannot delete")

	w = send(r, http.MethodDelete, base+"/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = send(r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}
