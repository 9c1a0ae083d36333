package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
)

const geminiDefaultMaxTokens = 8192

// Gemini implements Invoker over the direct Gemini SDK.
type Gemini struct {
	client *genai.Client
	log    *logrus.Entry
}

// NewGemini creates the SDK-backed adapter from an API key.
func NewGemini(ctx context.Context, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		log:    logrus.WithField("provider", models.ProviderGemini),
	}, nil
}

// Invoke translates the neutral request to the Gemini content model
// and returns the candidate text with token usage.
func (g *Gemini) Invoke(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	contents, config := geminiTranslate(req)

	resp, err := g.client.Models.GenerateContent(ctx, req.ModelID, contents, config)
	if err != nil {
		g.log.WithField("model", req.ModelID).WithError(err).Warn("generate content failed")
		return nil, fmt.Errorf("%w: generate content %s: %v", apperr.ErrProvider, req.ModelID, err)
	}

	result := &ChatResponse{
		Content:  resp.Text(),
		ModelID:  req.ModelID,
		Provider: models.ProviderGemini,
	}
	if resp.UsageMetadata != nil {
		result.Usage = &Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return result, nil
}

// geminiTranslate maps the neutral request onto Gemini contents and
// generation config: assistant turns become the model role, the system
// prompt becomes a system instruction, and image attachments become
// inline-data parts.
func geminiTranslate(req ChatRequest) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := genai.RoleUser
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}

		parts := []*genai.Part{{Text: msg.Content}}
		for _, att := range msg.Attachments {
			if !strings.HasPrefix(att.MediaType, "image/") {
				continue
			}
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: att.MediaType,
					Data:     att.Data,
				},
			})
		}

		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = geminiDefaultMaxTokens
	}
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	return contents, config
}
