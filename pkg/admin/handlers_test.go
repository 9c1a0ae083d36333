package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/middleware"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"
)

func newTestRouter(t *testing.T) (*mux.Router, *storage.MemoryKV) {
	t.Helper()
	kv := storage.NewMemoryKV()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc := NewService(kv, newFakeIdentity(), logger)

	auth, err := middleware.NewAuthenticator(context.Background(), kv, "us-east-1", "", "")
	require.NoError(t, err)

	router := mux.NewRouter()
	NewHandlers(svc, auth).RegisterRoutes(router)
	return router, kv
}

func seedUser(t *testing.T, kv *storage.MemoryKV, user models.User) {
	t.Helper()
	user.SetKeys()
	require.NoError(t, kv.Put(context.Background(), &user))
}

func doJSON(t *testing.T, router *mux.Router, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSignUpSignInEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/signup", "", SignUpRequest{
		Email: "a@x.com", Password: "Password1!", Name: "A",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var signUp SignUpResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signUp))
	assert.NotEmpty(t, signUp.UserID)

	rec = doJSON(t, router, http.MethodPost, "/auth/confirm", "", ConfirmRequest{
		Email: "a@x.com", Code: "123456",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/signin", "", SignInRequest{
		Email: "a@x.com", Password: "Password1!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var signIn SignInResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &signIn))
	assert.Equal(t, signUp.UserID, signIn.User.UserID)
	assert.Equal(t, models.RoleUser, signIn.User.Role)
}

func TestSignInEndpointRejects(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/auth/signin", "", SignInRequest{
		Email: "nobody@x.com", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileEndpoints(t *testing.T) {
	router, kv := newTestRouter(t)
	seedUser(t, kv, models.User{
		UserID: "u-1", Email: "a@x.com", Name: "A", Role: models.RoleUser,
		CreatedAt: "2025-01-01T00:00:00.000Z",
	})

	rec := doJSON(t, router, http.MethodGet, "/auth/profile?userId=u-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/auth/profile?userId=ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/auth/profile?userId=u-1", "", UpdateProfileRequest{Name: "Alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "Alice", user.Name)
}

func TestAdminUsersEndpointAuth(t *testing.T) {
	router, kv := newTestRouter(t)
	seedUser(t, kv, models.User{
		UserID: "oa-1", Email: "oa@x.com", Role: models.RoleOrgAdmin,
		Scope:     models.Scope{OrganizationID: "org-1"},
		CreatedAt: "2025-01-01T00:00:00.000Z",
	})
	seedUser(t, kv, models.User{
		UserID: "u-1", Email: "u@x.com", Role: models.RoleUser,
		Scope:     models.Scope{OrganizationID: "org-1", CompanyID: "c-1"},
		CreatedAt: "2025-01-02T00:00:00.000Z",
	})

	// No bearer: 401.
	rec := doJSON(t, router, http.MethodGet, "/admin/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Org admin sees its organization.
	rec = doJSON(t, router, http.MethodGet, "/admin/users", "oa-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Len(t, listing.Users, 2)

	// A plain user is forbidden.
	rec = doJSON(t, router, http.MethodGet, "/admin/users", "u-1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminCreateUserEndpoint(t *testing.T) {
	router, kv := newTestRouter(t)
	seedUser(t, kv, models.User{
		UserID: "oa-1", Email: "oa@x.com", Role: models.RoleOrgAdmin,
		Scope:     models.Scope{OrganizationID: "org-1"},
		CreatedAt: "2025-01-01T00:00:00.000Z",
	})

	rec := doJSON(t, router, http.MethodPost, "/admin/users", "oa-1", CreateUserRequest{
		Email: "new@x.com", Name: "New", Role: models.RoleUser,
		OrganizationID: "org-1", CompanyID: "c-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CreateUserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, len(resp.TemporaryPassword), 12)
	assert.Equal(t, "org-1", resp.User.OrganizationID)

	// Outside the admin's organization: 403.
	rec = doJSON(t, router, http.MethodPost, "/admin/users", "oa-1", CreateUserRequest{
		Email: "x@x.com", Name: "X", Role: models.RoleUser, OrganizationID: "org-2",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
