package chat

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/httputil"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
)

// Handlers exposes the chat orchestrator over HTTP.
type Handlers struct {
	service *Service
}

// NewHandlers creates HTTP handlers for the chat service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the chat and conversation routes.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/chat", h.Chat).Methods(http.MethodPost)
	r.HandleFunc("/models", h.Models).Methods(http.MethodGet)
	r.HandleFunc("/conversations", h.ListConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", h.GetConversation).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}", h.DeleteConversation).Methods(http.MethodDelete)
}

// Chat handles POST /chat.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	resp, err := h.service.Chat(r.Context(), &req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// Models handles GET /models.
func (h *Handlers) Models(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{"models": models.ListModels()})
}

// ListConversations handles GET /conversations.
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := httputil.ParseQueryString(r, "userId", "")
	if !httputil.RequireNonEmpty(w, userID, "userId") {
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	conversations, err := h.service.ListConversations(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if conversations == nil {
		conversations = []*models.Conversation{}
	}
	httputil.WriteSuccess(w, map[string]interface{}{"conversations": conversations})
}

// GetConversation handles GET /conversations/{id}.
func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.service.GetConversation(r.Context(), conversationID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, detail)
}

// DeleteConversation handles DELETE /conversations/{id}.
func (h *Handlers) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteConversation(r.Context(), conversationID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"conversationId": conversationID, "status": "deleted"})
}
