package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tendant/simple-idm-docstore/internal/http/middleware"
	"github.com/tendant/simple-idm-docstore/internal/httputil"
	"github.com/tendant/simple-idm-docstore/pkg/accountstore"
	"github.com/tendant/simple-idm-docstore/pkg/auth"
	"github.com/tendant/simple-idm-docstore/pkg/domain"
	"github.com/tendant/simple-idm-docstore/pkg/roles"
	"github.com/tendant/simple-idm-docstore/pkg/storage/memory"
	"github.com/tendant/simple-idm-docstore/pkg/storage/mocks"
)

type testServer struct {
	t        *testing.T
	router   chi.Router
	handler  *Handler
	accounts *memory.Collection
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	accounts := memory.New()
	h := NewHandler(
		slog.New(slog.DiscardHandler),
		accountstore.New(accounts, roles.NewStatic("admin", "user")),
		&auth.PasswordPolicy{MinLength: 8},
		LockoutPolicy{MaxFailedAttempts: 3, Duration: time.Hour},
	)
	h.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &testServer{t: t, router: r, handler: h, accounts: accounts}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) create(body CreateRequest) AccountResponse {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/v1/accounts", body)
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeAccount(s.t, rec)
}

func decodeAccount(t *testing.T, rec *httptest.ResponseRecorder) AccountResponse {
	t.Helper()
	var resp AccountResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	msg, _ := resp["error"].(string)
	return msg
}

func TestCreate(t *testing.T) {
	s := newTestServer(t)

	acc := s.create(CreateRequest{
		UserName:    "alice",
		Email:       "alice@example.com",
		PhoneNumber: "+15550100",
		Password:    "correct horse",
		Roles:       []string{"user", "user"},
	})

	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, "alice", acc.UserName)
	assert.True(t, acc.HasCredential)
	assert.True(t, acc.LockoutEnabled)
	assert.Equal(t, []string{"user"}, acc.Roles)

	stored, ok, err := s.accounts.FindByKey(context.Background(), acc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, auth.VerifyPassword("correct horse", stored.CredentialHash))
	assert.NotEmpty(t, stored.SecurityStamp)
}

func TestCreate_Rejections(t *testing.T) {
	s := newTestServer(t)
	s.create(CreateRequest{UserName: "alice"})

	tests := []struct {
		name       string
		body       any
		wantStatus int
	}{
		{name: "duplicate user name", body: CreateRequest{UserName: "alice"}, wantStatus: http.StatusConflict},
		{name: "missing user name", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "invalid email", body: CreateRequest{UserName: "bob", Email: "nope"}, wantStatus: http.StatusBadRequest},
		{name: "weak password", body: CreateRequest{UserName: "bob", Password: "short"}, wantStatus: http.StatusBadRequest},
		{name: "unknown role", body: CreateRequest{UserName: "bob", Roles: []string{"root"}}, wantStatus: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/v1/accounts", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, 1, s.accounts.Len())
}

func TestFind(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice", Email: "alice@example.com"})
	rec := s.do(http.MethodPost, "/v1/accounts/"+alice.ID+"/logins", LoginRequest{LoginProvider: "google", ProviderKey: "g-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{name: "by user name", query: "?userName=alice", wantStatus: http.StatusOK},
		{name: "by email", query: "?email=alice@example.com", wantStatus: http.StatusOK},
		{name: "by login", query: "?loginProvider=google&providerKey=g-1", wantStatus: http.StatusOK},
		{name: "absent user name", query: "?userName=bob", wantStatus: http.StatusNotFound},
		{name: "no filter", query: "", wantStatus: http.StatusBadRequest},
		{name: "provider without key", query: "?loginProvider=google", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, "/v1/accounts"+tt.query, nil)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, alice.ID, decodeAccount(t, rec).ID)
			}
		})
	}
}

func TestGetAndDelete(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice"})

	rec := s.do(http.MethodGet, "/v1/accounts/"+alice.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decodeAccount(t, rec).UserName)

	rec = s.do(http.MethodDelete, "/v1/accounts/"+alice.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/v1/accounts/"+alice.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodDelete, "/v1/accounts/"+alice.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdate(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice", Email: "alice@example.com"})

	rec := s.do(http.MethodPatch, "/v1/accounts/"+alice.ID, `{"emailConfirmed":true,"twoFactorEnabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acc := decodeAccount(t, rec)
	assert.True(t, acc.EmailConfirmed)
	assert.True(t, acc.TwoFactorEnabled)

	rec = s.do(http.MethodPatch, "/v1/accounts/"+alice.ID, `{"email":"new@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	acc = decodeAccount(t, rec)
	assert.Equal(t, "new@example.com", acc.Email)
	assert.False(t, acc.EmailConfirmed)
	assert.Equal(t, alice.ID, acc.ID)

	rec = s.do(http.MethodPatch, "/v1/accounts/"+alice.ID, `{"phoneNumber":"not-a-phone"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetPassword_RotatesSecurityStamp(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice"})
	ctx := context.Background()

	before, _, err := s.accounts.FindByKey(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, alice.HasCredential)

	rec := s.do(http.MethodPut, "/v1/accounts/"+alice.ID+"/password", PasswordRequest{Password: "new password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeAccount(t, rec).HasCredential)

	after, _, err := s.accounts.FindByKey(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotEqual(t, before.SecurityStamp, after.SecurityStamp)
	assert.True(t, auth.VerifyPassword("new password", after.CredentialHash))

	rec = s.do(http.MethodPut, "/v1/accounts/"+alice.ID+"/password", PasswordRequest{Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeakPassword_ReportsRequirements(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "set password", method: http.MethodPut, path: "/v1/accounts/" + alice.ID + "/password", body: PasswordRequest{Password: "short"}},
		{name: "create", method: http.MethodPost, path: "/v1/accounts", body: CreateRequest{UserName: "bob", Password: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp httputil.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "Password must contain at least 8 characters", resp.Details["password"])
		})
	}

	_, found, err := s.handler.store.FindByName(context.Background(), "bob")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAdminSubjectIsLogged(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	var logs bytes.Buffer
	h := NewHandler(
		slog.New(slog.NewJSONHandler(&logs, nil)),
		accountstore.New(memory.New(), roles.NewStatic("admin")),
		nil,
		DefaultLockoutPolicy,
	)
	r := chi.NewRouter()
	r.Use(middleware.AdminAuth(middleware.AdminAuthConfig{Secret: secret, Role: "admin"}))
	h.RegisterRoutes(r)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.AdminClaims{
		Roles: []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/v1/accounts", `{"userName":"alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeAccount(t, rec)

	rec = send(http.MethodDelete, "/v1/accounts/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	var entries []map[string]any
	dec := json.NewDecoder(&logs)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		entries = append(entries, entry)
	}
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "ops@example.com", entry["admin"], entry["msg"])
	}
}

func TestRoles(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice"})
	base := "/v1/accounts/" + alice.ID + "/roles"

	rec := s.do(http.MethodPost, base, RoleRequest{Role: "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"admin"}, decodeAccount(t, rec).Roles)

	rec = s.do(http.MethodPost, base, RoleRequest{Role: "root"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec), "root")

	rec = s.do(http.MethodDelete, base+"/admin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeAccount(t, rec).Roles)

	// Removing a role the account does not hold is accepted.
	rec = s.do(http.MethodDelete, base+"/user", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClaims(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice"})
	base := "/v1/accounts/" + alice.ID + "/claims"

	s.do(http.MethodPost, base, ClaimRequest{Type: "dept", Value: "eng"})
	rec := s.do(http.MethodPost, base, ClaimRequest{Type: "dept", Value: "eng"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []ClaimResponse{{Type: "dept", Value: "eng"}}, decodeAccount(t, rec).Claims)

	rec = s.do(http.MethodDelete, base+"?type=dept", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodDelete, base+"?type=dept&value=eng", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeAccount(t, rec).Claims)
}

func TestLogins(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice"})
	bob := s.create(CreateRequest{UserName: "bob"})
	login := LoginRequest{LoginProvider: "google", ProviderKey: "g-1"}

	rec := s.do(http.MethodPost, "/v1/accounts/"+alice.ID+"/logins", login)
	require.Equal(t, http.StatusOK, rec.Code)
	// Re-adding to the same account is a no-op.
	rec = s.do(http.MethodPost, "/v1/accounts/"+alice.ID+"/logins", login)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeAccount(t, rec).Logins, 1)

	rec = s.do(http.MethodPost, "/v1/accounts/"+bob.ID+"/logins", login)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodDelete, "/v1/accounts/"+alice.ID+"/logins/google/g-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeAccount(t, rec).Logins)
}

func TestLockout(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice"})
	base := "/v1/accounts/" + alice.ID

	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60))
	rec := s.do(http.MethodPut, base+"/lockout", LockoutRequest{LockoutEnd: &end})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acc := decodeAccount(t, rec)
	require.NotNil(t, acc.LockoutEnd)
	assert.True(t, acc.LockoutEnd.Equal(end))
	assert.True(t, acc.LockedOut)

	rec = s.do(http.MethodPut, base+"/lockout", `{"lockoutEnd":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	acc = decodeAccount(t, rec)
	assert.Nil(t, acc.LockoutEnd)
	assert.False(t, acc.LockedOut)
}

func TestRecordAccessFailure_LocksAtThreshold(t *testing.T) {
	s := newTestServer(t)
	alice := s.create(CreateRequest{UserName: "alice"})
	path := "/v1/accounts/" + alice.ID + "/access-failures"

	for want := 1; want <= 2; want++ {
		rec := s.do(http.MethodPost, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		acc := decodeAccount(t, rec)
		assert.Equal(t, want, acc.AccessFailedCount)
		assert.False(t, acc.LockedOut)
	}

	rec := s.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	acc := decodeAccount(t, rec)
	assert.True(t, acc.LockedOut)
	assert.Equal(t, 0, acc.AccessFailedCount)
	require.NotNil(t, acc.LockoutEnd)
	assert.Equal(t, time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC), acc.LockoutEnd.UTC())
}

func TestRecordAccessFailure_LockoutDisabled(t *testing.T) {
	s := newTestServer(t)
	disabled := false
	alice := s.create(CreateRequest{UserName: "alice", LockoutEnabled: &disabled})
	path := "/v1/accounts/" + alice.ID + "/access-failures"

	for i := 0; i < 5; i++ {
		s.do(http.MethodPost, path, nil)
	}
	rec := s.do(http.MethodGet, "/v1/accounts/"+alice.ID, nil)
	acc := decodeAccount(t, rec)
	assert.Equal(t, 5, acc.AccessFailedCount)
	assert.False(t, acc.LockedOut)

	rec = s.do(http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeAccount(t, rec).AccessFailedCount)
}

func TestStorageFailureIs500(t *testing.T) {
	ctrl := gomock.NewController(t)
	coll := mocks.NewMockCollection(ctrl)
	coll.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(iter.Seq2[*domain.Account, error](
		func(yield func(*domain.Account, error) bool) {
			yield(nil, errors.New("connection reset"))
		},
	))

	h := NewHandler(slog.New(slog.DiscardHandler), accountstore.New(coll, roles.NewStatic()), nil, LockoutPolicy{})
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/accounts?userName=alice", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeError(t, rec))
}
