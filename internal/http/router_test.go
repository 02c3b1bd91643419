package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-idm-docstore/internal/http/middleware"
	"github.com/tendant/simple-idm-docstore/pkg/accountstore"
	"github.com/tendant/simple-idm-docstore/pkg/roles"
	"github.com/tendant/simple-idm-docstore/pkg/storage/memory"
)

var secret = []byte("0123456789abcdef0123456789abcdef")

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	registry := roles.NewStatic("admin", "user")
	reg := prometheus.NewRegistry()
	return NewRouter(RouterConfig{
		Logger:                     slog.New(slog.DiscardHandler),
		Accounts:                   accountstore.New(memory.New(), registry),
		Roles:                      registry,
		AdminAuth:                  middleware.AdminAuthConfig{Secret: secret, Role: "admin"},
		RateLimitEnabled:           true,
		RateLimitRequestsPerMinute: 100,
		SecurityHeadersEnabled:     true,
		MaxRequestBodySize:         1024,
		Registerer:                 reg,
		Gatherer:                   reg,
	})
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.AdminClaims{
		Roles: []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/roles", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRolesAndAccounts(t *testing.T) {
	router := newRouter(t)
	token := adminToken(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/roles", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []string{"admin", "user"}, body["roles"])

	req = httptest.NewRequest(http.MethodPost, "/v1/accounts", strings.NewReader(`{"userName":"alice"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestBodyLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts",
		strings.NewReader(`{"userName":"`+strings.Repeat("a", 2048)+`"}`))
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router := newRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idm_docstore_http_requests_total")
}
