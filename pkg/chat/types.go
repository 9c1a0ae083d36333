package chat

import (
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/provider"
)

// Request is the body of POST /chat.
type Request struct {
	Model          string             `json:"model"`
	Messages       []provider.Message `json:"messages"`
	SystemPrompt   string             `json:"systemPrompt,omitempty"`
	MaxTokens      int                `json:"maxTokens,omitempty"`
	Temperature    *float64           `json:"temperature,omitempty"`
	ConversationID string             `json:"conversationId,omitempty"`
	UserID         string             `json:"userId,omitempty"`
	FileIDs        []string           `json:"fileIds,omitempty"`
	SaveHistory    *bool              `json:"saveHistory,omitempty"`
}

// Response is the body returned by POST /chat. ConversationID is empty
// when history was not saved (by request or by write failure).
type Response struct {
	Content        string          `json:"content"`
	Model          string          `json:"model"`
	Provider       string          `json:"provider"`
	ConversationID string          `json:"conversationId,omitempty"`
	Usage          *provider.Usage `json:"usage,omitempty"`
}

// ConversationDetail is the body of GET /conversations/{id}.
type ConversationDetail struct {
	Conversation *models.Conversation          `json:"conversation"`
	Messages     []*models.ConversationMessage `json:"messages"`
}
