package chat

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/files"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/provider"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	kv := storage.NewMemoryKV()
	blob := storage.NewMemoryBlob()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	fileService, err := files.NewService(kv, blob, nil, logger)
	require.NoError(t, err)

	invoker := &fakeInvoker{response: &provider.ChatResponse{
		Content:  "pong",
		ModelID:  testModel,
		Provider: models.ProviderBedrock,
		Usage:    &provider.Usage{InputTokens: 10, OutputTokens: 5},
	}}
	svc := NewService(kv, fileService, map[string]provider.Invoker{models.ProviderBedrock: invoker}, nil, logger, 0)

	router := mux.NewRouter()
	NewHandlers(svc).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatEndpointTurn(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/chat", Request{
		Model:    testModel,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "ping"}},
		UserID:   "u-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pong", resp.Content)
	assert.Equal(t, models.ProviderBedrock, resp.Provider)
	require.NotEmpty(t, resp.ConversationID)

	// The ordering law holds through the HTTP surface.
	rec = doJSON(t, router, http.MethodGet, "/conversations/"+resp.ConversationID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail ConversationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "user", detail.Messages[0].Role)
	assert.Equal(t, "assistant", detail.Messages[1].Role)
	assert.Equal(t, 2, detail.Conversation.MessageCount)
}

func TestChatEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/chat", Request{
		Model: testModel,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/chat", Request{
		Model:    "unknown-model",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// No body at all.
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Models []models.ModelInfo `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Models, len(models.Registry))
}

func TestConversationEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/chat", Request{
		Model:    testModel,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
		UserID:   "u-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = doJSON(t, router, http.MethodGet, "/conversations?userId=u-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Conversations, 1)

	rec = doJSON(t, router, http.MethodDelete, "/conversations/"+resp.ConversationID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/conversations/"+resp.ConversationID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/conversations?userId=u-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	assert.Empty(t, listing.Conversations)
}

func TestConversationsRequireUserID(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/conversations", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
