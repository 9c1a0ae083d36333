package admin

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/httputil"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/middleware"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
)

// Handlers exposes the admin/auth service over HTTP.
type Handlers struct {
	service *Service
	auth    *middleware.Authenticator
}

// NewHandlers creates HTTP handlers for the admin service.
func NewHandlers(service *Service, auth *middleware.Authenticator) *Handlers {
	return &Handlers{service: service, auth: auth}
}

// RegisterRoutes registers the public auth routes and the
// bearer-protected admin routes.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/signup", h.SignUp).Methods(http.MethodPost)
	r.HandleFunc("/auth/confirm", h.Confirm).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", h.SignIn).Methods(http.MethodPost)
	r.HandleFunc("/auth/profile", h.GetProfile).Methods(http.MethodGet)
	r.HandleFunc("/auth/profile", h.UpdateProfile).Methods(http.MethodPut)

	r.Handle("/admin/users", h.auth.Handler(http.HandlerFunc(h.ListUsers))).Methods(http.MethodGet)
	r.Handle("/admin/users", h.auth.Handler(http.HandlerFunc(h.CreateUser))).Methods(http.MethodPost)
}

// SignUp handles POST /auth/signup.
func (h *Handlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.SignUp(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// Confirm handles POST /auth/confirm.
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.Confirm(r.Context(), &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "confirmed"})
}

// SignIn handles POST /auth/signin.
func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.SignIn(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// GetProfile handles GET /auth/profile.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := httputil.ParseQueryString(r, "userId", "")
	if !httputil.RequireNonEmpty(w, userID, "userId") {
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// UpdateProfile handles PUT /auth/profile.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := httputil.ParseQueryString(r, "userId", "")
	if !httputil.RequireNonEmpty(w, userID, "userId") {
		return
	}
	var req UpdateProfileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// ListUsers handles GET /admin/users.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	organizationID := httputil.ParseQueryString(r, "organizationId", "")

	users, err := h.service.ListUsers(r.Context(), actor, organizationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"users": users})
}

// CreateUser handles POST /admin/users.
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r)
	if actor == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	var req CreateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.CreateUser(r.Context(), actor, &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}
