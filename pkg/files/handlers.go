package files

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/httputil"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
)

// Handlers exposes the file service over HTTP.
type Handlers struct {
	service *Service
}

// NewHandlers creates HTTP handlers for the file service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the file routes on the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/files/upload", h.Upload).Methods(http.MethodPost)
	r.HandleFunc("/files", h.List).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/files/{id}", h.UpdateVisibility).Methods(http.MethodPut)
	r.HandleFunc("/files/{id}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/files/{id}/query", h.Query).Methods(http.MethodPost)
}

// actorFromQuery builds the acting user from request query parameters.
func actorFromQuery(r *http.Request) *models.User {
	return &models.User{
		UserID: httputil.ParseQueryString(r, "userId", ""),
		Role:   models.Role(httputil.ParseQueryString(r, "userRole", string(models.RoleUser))),
		Scope: models.Scope{
			OrganizationID: httputil.ParseQueryString(r, "organizationId", ""),
			CompanyID:      httputil.ParseQueryString(r, "companyId", ""),
			DepartmentID:   httputil.ParseQueryString(r, "departmentId", ""),
		},
	}
}

// Upload handles POST /files/upload.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserRole == "" {
		req.UserRole = models.RoleUser
	}

	resp, err := h.service.Upload(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// List handles GET /files.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	actor := actorFromQuery(r)
	if !httputil.RequireNonEmpty(w, actor.UserID, "userId") {
		return
	}
	category := models.FileCategory(httputil.ParseQueryString(r, "category", ""))

	records, err := h.service.List(r.Context(), actor, category)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if records == nil {
		records = []*models.FileRecord{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"files": records})
}

// Get handles GET /files/{id}.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	fileID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	record, err := h.service.Get(r.Context(), fileID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, record)
}

// UpdateVisibility handles PUT /files/{id}.
func (h *Handlers) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	fileID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req UpdateVisibilityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "userId") {
		return
	}
	actor := &models.User{UserID: req.UserID, Role: req.UserRole}

	record, err := h.service.UpdateVisibility(r.Context(), actor, fileID, req.Visibility)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, record)
}

// Delete handles DELETE /files/{id}.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	fileID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	actor := actorFromQuery(r)
	if !httputil.RequireNonEmpty(w, actor.UserID, "userId") {
		return
	}

	if err := h.service.Delete(r.Context(), actor, fileID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"fileId": fileID, "status": "deleted"})
}

// Query handles POST /files/{id}/query.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	fileID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	var req QueryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	var actor *models.User
	if req.UserID != "" {
		actor = &models.User{UserID: req.UserID, Role: req.UserRole}
	}

	resp, err := h.service.Query(r.Context(), actor, fileID, req.Question)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}
