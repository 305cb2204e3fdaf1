package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontour-app/backend/internal/auth"
	"github.com/ontour-app/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRoles map[[2]uuid.UUID]string

func (f fakeRoles) GetUserRole(_ context.Context, orgID, userID uuid.UUID) (string, error) {
	role, ok := f[[2]uuid.UUID{orgID, userID}]
	if !ok {
		return "", errors.New("no rows")
	}
	return role, nil
}

func newRouter(jwtSvc *auth.JWTService, roles OrgRoleLookup) *gin.Engine {
	r := gin.New()
	api := r.Group("/api", JWT(jwtSvc))
	org := api.Group("/orgs/:orgId", RequireOrgAccess(roles))
	org.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, OrganizationID(c).String())
	})
	org.POST("/ping", RequireOrgWrite(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func do(t *testing.T, r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearer(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := newRouter(svc, fakeRoles{})

	w := do(t, r, http.MethodGet, "/api/orgs/"+uuid.NewString()+"/ping", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"missing authorization header"`)

	w = do(t, r, http.MethodGet, "/api/orgs/"+uuid.NewString()+"/ping", "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTenantIsolation(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	alice, bob := uuid.New(), uuid.New()
	orgA, orgB := uuid.New(), uuid.New()
	roles := fakeRoles{
		{orgA, alice}: models.OrgRoleOwner,
		{orgB, bob}:   models.OrgRoleViewer,
	}
	r := newRouter(svc, roles)

	aliceToken, err := svc.Generate(alice, "alice@example.com", "artist")
	require.NoError(t, err)
	bobToken, err := svc.Generate(bob, "bob@example.com", "agent")
	require.NoError(t, err)

	w := do(t, r, http.MethodGet, "/api/orgs/"+orgA.String()+"/ping", aliceToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orgA.String(), w.Body.String())

	w = do(t, r, http.MethodGet, "/api/orgs/"+orgB.String()+"/ping", aliceToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodGet, "/api/orgs/not-a-uuid/ping", aliceToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Viewers can read but not write.
	w = do(t, r, http.MethodGet, "/api/orgs/"+orgB.String()+"/ping", bobToken)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, r, http.MethodPost, "/api/orgs/"+orgB.String()+"/ping", bobToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/api/orgs/"+orgA.String()+"/ping", aliceToken)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("secret", 1)
	r := gin.New()
	r.GET("/admin", JWT(svc), RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })

	artist, err := svc.Generate(uuid.New(), "a@example.com", "artist")
	require.NoError(t, err)
	admin, err := svc.Generate(uuid.New(), "b@example.com", "admin")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(t, r, http.MethodGet, "/admin", artist).Code)
	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/admin", admin).Code)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://localhost:5173"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
