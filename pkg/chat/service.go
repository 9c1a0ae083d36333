package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/access"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/files"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/provider"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"
)

const (
	// titleLimit bounds the conversation title derived from the first
	// user message.
	titleLimit = 50

	ragInstruction = "以下の参照ファイルの内容に基づいて回答してください。"
	ragBlockStart  = "--- ファイル内容 ---"
	ragBlockEnd    = "--- ファイル終了 ---"
)

// Service orchestrates chat turns and owns conversation persistence.
type Service struct {
	kv            storage.KV
	files         *files.Service
	invokers      map[string]provider.Invoker
	metrics       *observability.Metrics
	logger        *observability.Logger
	invokeTimeout time.Duration
}

// NewService creates a chat service. The invokers map is keyed by the
// registry's provider tags. Metrics may be nil.
func NewService(kv storage.KV, fileService *files.Service, invokers map[string]provider.Invoker,
	metrics *observability.Metrics, logger *observability.Logger, invokeTimeout time.Duration) *Service {
	if invokeTimeout <= 0 {
		invokeTimeout = 60 * time.Second
	}
	return &Service{
		kv:            kv,
		files:         fileService,
		invokers:      invokers,
		metrics:       metrics,
		logger:        logger,
		invokeTimeout: invokeTimeout,
	}
}

// Chat runs one turn: validate, assemble RAG context, dispatch,
// account cost, persist.
func (s *Service) Chat(ctx context.Context, req *Request) (*Response, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("%w: model is required", apperr.ErrValidation)
	}
	info, ok := models.LookupModel(req.Model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnknownModel, req.Model)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", apperr.ErrValidation)
	}

	systemPrompt, err := s.assembleContext(ctx, req)
	if err != nil {
		return nil, err
	}

	invoker, ok := s.invokers[info.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: provider %s is not configured", apperr.ErrProvider, info.Provider)
	}

	invokeCtx, cancel := context.WithTimeout(ctx, s.invokeTimeout)
	defer cancel()

	start := time.Now()
	resp, err := invoker.Invoke(invokeCtx, provider.ChatRequest{
		ModelID:      req.Model,
		Messages:     req.Messages,
		SystemPrompt: systemPrompt,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if s.metrics != nil {
		var in, out int
		if resp != nil && resp.Usage != nil {
			in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
		}
		s.metrics.RecordProviderInvocation(info.Provider, req.Model, in, out, err, time.Since(start))
	}
	if err != nil {
		return nil, err
	}

	var inputTokens, outputTokens int
	var cost float64
	if resp.Usage != nil {
		inputTokens = resp.Usage.InputTokens
		outputTokens = resp.Usage.OutputTokens
		cost = models.Cost(info.Pricing, inputTokens, outputTokens)
	}

	result := &Response{
		Content:  resp.Content,
		Model:    req.Model,
		Provider: resp.Provider,
		Usage:    resp.Usage,
	}

	if req.SaveHistory != nil && !*req.SaveHistory {
		return result, nil
	}

	conversationID, err := s.persistTurn(ctx, req, resp.Content, inputTokens, outputTokens, cost)
	if err != nil {
		// The provider call succeeded; the turn is returned without a
		// conversation id and the failure is logged.
		observability.FromContext(ctx).WithError(err).Error("failed to persist chat turn")
		return result, nil
	}
	result.ConversationID = conversationID
	return result, nil
}

// assembleContext appends the referenced files' text to the system
// prompt. Files the caller cannot access, and files that do not exist,
// are skipped silently: a guessed id must be indistinguishable from a
// missing one. Reads fan out; ordering is preserved on concatenation.
func (s *Service) assembleContext(ctx context.Context, req *Request) (string, error) {
	if len(req.FileIDs) == 0 {
		return req.SystemPrompt, nil
	}

	actor := s.loadActor(ctx, req.UserID)

	texts := make([]string, len(req.FileIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, fileID := range req.FileIDs {
		g.Go(func() error {
			record, err := s.files.Get(gctx, fileID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return nil
				}
				return err
			}
			if !access.CanAccessFile(record, actor) {
				return nil
			}
			text, err := s.files.FileText(gctx, record)
			if err != nil {
				return err
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var blocks []string
	for _, text := range texts {
		if text == "" {
			continue
		}
		blocks = append(blocks, ragBlockStart+"\n"+text+"\n"+ragBlockEnd)
	}
	if len(blocks) == 0 {
		return req.SystemPrompt, nil
	}

	var b strings.Builder
	if req.SystemPrompt != "" {
		b.WriteString(req.SystemPrompt)
		b.WriteString("\n\n")
	}
	b.WriteString(ragInstruction)
	b.WriteString("\n")
	b.WriteString(strings.Join(blocks, "\n"))
	return b.String(), nil
}

// loadActor resolves the caller's user record so the access predicate
// sees real scopes; an unknown id yields a bare actor that can still
// read its own and system-wide files.
func (s *Service) loadActor(ctx context.Context, userID string) *models.User {
	actor := &models.User{UserID: userID, Role: models.RoleUser}
	if userID == "" {
		return actor
	}
	pk, sk := models.UserKey(userID)
	var user models.User
	if found, err := s.kv.Get(ctx, pk, sk, &user); err == nil && found {
		return &user
	}
	return actor
}

// persistTurn upserts the conversation and appends the user and
// assistant messages. The metadata update is a single expression so
// concurrent turns interleave but still converge.
func (s *Service) persistTurn(ctx context.Context, req *Request, content string, inputTokens, outputTokens int, cost float64) (string, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	now := time.Now()
	userAt := models.FormatTime(now)
	// The assistant entry sorts after the user entry even within one
	// clock millisecond.
	assistantAt := models.FormatTime(now.Add(time.Millisecond))

	pk, sk := models.ConversationKey(conversationID)
	var existing models.Conversation
	found, err := s.kv.Get(ctx, pk, sk, &existing)
	if err != nil {
		return "", err
	}
	if !found {
		conv := &models.Conversation{
			ConversationID: conversationID,
			Title:          deriveTitle(req.Messages),
			UserID:         req.UserID,
			Scope:          s.loadActor(ctx, req.UserID).Scope,
			ModelID:        req.Model,
			CreatedAt:      userAt,
			UpdatedAt:      userAt,
		}
		conv.SetKeys()
		if err := s.kv.Put(ctx, conv); err != nil {
			return "", err
		}
	}

	userMsg := &models.ConversationMessage{
		ConversationID: conversationID,
		MessageID:      uuid.NewString(),
		Role:           string(provider.RoleUser),
		Content:        lastUserContent(req.Messages),
		CreatedAt:      userAt,
	}
	userMsg.SetKeys()
	if err := s.kv.Put(ctx, userMsg); err != nil {
		return "", err
	}

	assistantMsg := &models.ConversationMessage{
		ConversationID: conversationID,
		MessageID:      uuid.NewString(),
		Role:           string(provider.RoleAssistant),
		Content:        content,
		ModelID:        req.Model,
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		Cost:           cost,
		CreatedAt:      assistantAt,
	}
	assistantMsg.SetKeys()
	if err := s.kv.Put(ctx, assistantMsg); err != nil {
		return "", err
	}

	// Both messages land before the totals move, so a listing that
	// observes the new counts also observes the messages.
	err = s.kv.Update(ctx, pk, sk, storage.UpdateInput{
		Set: map[string]interface{}{
			"updatedAt": assistantAt,
			"GSI1SK":    models.ConvPrefix + assistantAt,
		},
		Add: map[string]float64{
			"messageCount":      2,
			"totalInputTokens":  float64(inputTokens),
			"totalOutputTokens": float64(outputTokens),
			"totalCost":         cost,
		},
	})
	if err != nil {
		// Messages remain; they are dangling but valid.
		return "", err
	}
	return conversationID, nil
}

// deriveTitle takes the first user message's head as the conversation
// title.
func deriveTitle(messages []provider.Message) string {
	for _, msg := range messages {
		if msg.Role != provider.RoleUser {
			continue
		}
		runes := []rune(msg.Content)
		if len(runes) > titleLimit {
			return string(runes[:titleLimit])
		}
		return msg.Content
	}
	return "新しい会話"
}

// lastUserContent returns the content of the turn's user message.
func lastUserContent(messages []provider.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == provider.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// ListConversations returns a user's conversations most-recent-first.
func (s *Service) ListConversations(ctx context.Context, userID string, limit int) ([]*models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", apperr.ErrValidation)
	}
	var page []models.Conversation
	err := s.kv.Query(ctx, storage.QueryInput{
		Index:         storage.IndexGSI1,
		PartitionKey:  models.UserPrefix + userID,
		SortKeyPrefix: models.ConvPrefix,
		ScanForward:   false,
		Limit:         limit,
	}, &page)
	if err != nil {
		return nil, err
	}
	result := make([]*models.Conversation, len(page))
	for i := range page {
		result[i] = &page[i]
	}
	return result, nil
}

// GetConversation returns the metadata record and the messages in
// chronological order.
func (s *Service) GetConversation(ctx context.Context, conversationID string) (*ConversationDetail, error) {
	pk, sk := models.ConversationKey(conversationID)
	var conv models.Conversation
	found, err := s.kv.Get(ctx, pk, sk, &conv)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, conversationID)
	}

	var page []models.ConversationMessage
	err = s.kv.Query(ctx, storage.QueryInput{
		PartitionKey:  pk,
		SortKeyPrefix: models.MsgPrefix,
		ScanForward:   true,
	}, &page)
	if err != nil {
		return nil, err
	}

	messages := make([]*models.ConversationMessage, len(page))
	for i := range page {
		messages[i] = &page[i]
	}
	return &ConversationDetail{Conversation: &conv, Messages: messages}, nil
}

// DeleteConversation removes the metadata record and every message in
// the partition.
func (s *Service) DeleteConversation(ctx context.Context, conversationID string) error {
	pk, _ := models.ConversationKey(conversationID)

	var items []models.Keys
	err := s.kv.Query(ctx, storage.QueryInput{
		PartitionKey: pk,
		ScanForward:  true,
	}, &items)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: conversation %s", apperr.ErrNotFound, conversationID)
	}

	keys := make([]storage.Key, len(items))
	for i, item := range items {
		keys[i] = storage.Key{PK: item.PK, SK: item.SK}
	}
	return s.kv.BatchDelete(ctx, keys)
}
