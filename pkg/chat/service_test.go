package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/files"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/provider"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"
)

const testModel = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"

// fakeInvoker records the last request and replies with a canned
// response.
type fakeInvoker struct {
	lastRequest *provider.ChatRequest
	response    *provider.ChatResponse
	err         error
}

func (f *fakeInvoker) Invoke(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	f.lastRequest = &req
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func newTestChat(t *testing.T) (*Service, *fakeInvoker, *storage.MemoryKV, *files.Service) {
	t.Helper()
	kv := storage.NewMemoryKV()
	blob := storage.NewMemoryBlob()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	fileService, err := files.NewService(kv, blob, nil, logger)
	require.NoError(t, err)

	invoker := &fakeInvoker{response: &provider.ChatResponse{
		Content:  "Alice is 30.",
		ModelID:  testModel,
		Provider: models.ProviderBedrock,
		Usage:    &provider.Usage{InputTokens: 120, OutputTokens: 40},
	}}
	invokers := map[string]provider.Invoker{
		models.ProviderBedrock: invoker,
		models.ProviderGemini:  invoker,
	}
	svc := NewService(kv, fileService, invokers, nil, logger, 0)
	return svc, invoker, kv, fileService
}

func chatReq(content string) *Request {
	return &Request{
		Model:    testModel,
		Messages: []provider.Message{{Role: provider.RoleUser, Content: content}},
		UserID:   "u-1",
	}
}

func TestChatValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestChat(t)

	_, err := svc.Chat(ctx, &Request{Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Chat(ctx, &Request{Model: "made-up-model", Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}}})
	assert.ErrorIs(t, err, apperr.ErrUnknownModel)

	_, err = svc.Chat(ctx, &Request{Model: testModel})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestChatTurnPersists(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestChat(t)

	resp, err := svc.Chat(ctx, chatReq("How old is Alice?"))
	require.NoError(t, err)
	assert.Equal(t, "Alice is 30.", resp.Content)
	assert.Equal(t, models.ProviderBedrock, resp.Provider)
	require.NotEmpty(t, resp.ConversationID)
	require.NotNil(t, resp.Usage)

	detail, err := svc.GetConversation(ctx, resp.ConversationID)
	require.NoError(t, err)

	// Ordering law: user first, assistant second.
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "user", detail.Messages[0].Role)
	assert.Equal(t, "How old is Alice?", detail.Messages[0].Content)
	assert.Equal(t, "assistant", detail.Messages[1].Role)
	assert.Equal(t, "Alice is 30.", detail.Messages[1].Content)
	assert.Equal(t, testModel, detail.Messages[1].ModelID)

	// Totals invariant: metadata equals the message sums.
	conv := detail.Conversation
	assert.Equal(t, 2, conv.MessageCount)
	assert.Equal(t, 120, conv.TotalInputTokens)
	assert.Equal(t, 40, conv.TotalOutputTokens)
	wantCost := (120.0*3 + 40.0*15) / 1e6
	assert.InDelta(t, wantCost, conv.TotalCost, 1e-9)
	assert.InDelta(t, wantCost, detail.Messages[1].Cost, 1e-9)

	assert.Equal(t, "How old is Alice?", conv.Title)
}

func TestChatSecondTurnAccumulates(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestChat(t)

	first, err := svc.Chat(ctx, chatReq("How old is Alice?"))
	require.NoError(t, err)

	second := chatReq("And Bob?")
	second.ConversationID = first.ConversationID
	resp, err := svc.Chat(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, resp.ConversationID)

	detail, err := svc.GetConversation(ctx, first.ConversationID)
	require.NoError(t, err)
	assert.Len(t, detail.Messages, 4)
	assert.Equal(t, 4, detail.Conversation.MessageCount)
	assert.Equal(t, 240, detail.Conversation.TotalInputTokens)
	assert.Equal(t, 80, detail.Conversation.TotalOutputTokens)

	// The title stays pinned to the first turn.
	assert.Equal(t, "How old is Alice?", detail.Conversation.Title)
}

func TestChatTitleTruncation(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestChat(t)

	long := strings.Repeat("長い質問です。", 12)
	resp, err := svc.Chat(ctx, chatReq(long))
	require.NoError(t, err)

	detail, err := svc.GetConversation(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, string([]rune(long)[:50]), detail.Conversation.Title)
}

func TestChatSaveHistoryFalse(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestChat(t)

	off := false
	req := chatReq("hi")
	req.SaveHistory = &off
	resp, err := svc.Chat(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, resp.ConversationID)

	conversations, err := svc.ListConversations(ctx, "u-1", 10)
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestChatRAGContextAssembly(t *testing.T) {
	ctx := context.Background()
	svc, invoker, _, fileService := newTestChat(t)

	upload, err := fileService.Upload(ctx, &files.UploadRequest{
		FileName:       "facts.csv",
		FileType:       "csv",
		MimeType:       "text/csv",
		FileDataBase64: base64.StdEncoding.EncodeToString([]byte("name,age\nAlice,30\nBob,40")),
		UserID:         "u-1",
		UserRole:       models.RoleUser,
	})
	require.NoError(t, err)

	req := chatReq("How old is Alice?")
	req.SystemPrompt = "You are a helpful assistant."
	req.FileIDs = []string{upload.FileID}
	_, err = svc.Chat(ctx, req)
	require.NoError(t, err)

	sys := invoker.lastRequest.SystemPrompt
	assert.Contains(t, sys, "You are a helpful assistant.")
	assert.Contains(t, sys, ragInstruction)
	assert.Contains(t, sys, ragBlockStart+"\nname,age\nAlice,30\nBob,40\n"+ragBlockEnd)
}

func TestChatRAGSkipsInaccessibleAndMissingFiles(t *testing.T) {
	ctx := context.Background()
	svc, invoker, _, fileService := newTestChat(t)

	secret, err := fileService.Upload(ctx, &files.UploadRequest{
		FileName:       "secret.txt",
		FileType:       "txt",
		MimeType:       "text/plain",
		FileDataBase64: base64.StdEncoding.EncodeToString([]byte("classified")),
		UserID:         "someone-else",
		UserRole:       models.RoleUser,
	})
	require.NoError(t, err)

	req := chatReq("hi")
	req.SystemPrompt = "base"
	req.FileIDs = []string{secret.FileID, "does-not-exist"}
	resp, err := svc.Chat(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)

	assert.Equal(t, "base", invoker.lastRequest.SystemPrompt)
	assert.NotContains(t, invoker.lastRequest.SystemPrompt, "classified")
}

func TestChatRAGPreservesFileOrder(t *testing.T) {
	ctx := context.Background()
	svc, invoker, _, fileService := newTestChat(t)

	var ids []string
	for _, content := range []string{"first file", "second file"} {
		upload, err := fileService.Upload(ctx, &files.UploadRequest{
			FileName:       "f.txt",
			FileType:       "txt",
			MimeType:       "text/plain",
			FileDataBase64: base64.StdEncoding.EncodeToString([]byte(content)),
			UserID:         "u-1",
			UserRole:       models.RoleUser,
		})
		require.NoError(t, err)
		ids = append(ids, upload.FileID)
	}

	req := chatReq("hi")
	req.FileIDs = ids
	_, err := svc.Chat(ctx, req)
	require.NoError(t, err)

	sys := invoker.lastRequest.SystemPrompt
	assert.Less(t, indexOf(t, sys, "first file"), indexOf(t, sys, "second file"))
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	t.Fatalf("%q not found", needle)
	return -1
}

func TestChatNoUsageMeansNoCost(t *testing.T) {
	ctx := context.Background()
	svc, invoker, _, _ := newTestChat(t)
	invoker.response.Usage = nil

	resp, err := svc.Chat(ctx, chatReq("hi"))
	require.NoError(t, err)
	assert.Nil(t, resp.Usage)

	detail, err := svc.GetConversation(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Zero(t, detail.Conversation.TotalCost)
	assert.Zero(t, detail.Conversation.TotalInputTokens)
}

func TestChatProviderErrorPropagates(t *testing.T) {
	ctx := context.Background()
	svc, invoker, _, _ := newTestChat(t)
	invoker.err = apperr.ErrProvider

	_, err := svc.Chat(ctx, chatReq("hi"))
	assert.ErrorIs(t, err, apperr.ErrProvider)
}

// failingUpdateKV fails the metadata update to exercise the
// degraded-persistence path.
type failingUpdateKV struct {
	*storage.MemoryKV
}

func (f *failingUpdateKV) Update(ctx context.Context, pk, sk string, update storage.UpdateInput) error {
	return errors.New("table throttled")
}

func TestChatPersistenceFailureStillReturnsContent(t *testing.T) {
	ctx := context.Background()
	kv := &failingUpdateKV{MemoryKV: storage.NewMemoryKV()}
	blob := storage.NewMemoryBlob()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	fileService, err := files.NewService(kv, blob, nil, logger)
	require.NoError(t, err)

	invoker := &fakeInvoker{response: &provider.ChatResponse{
		Content: "still here", ModelID: testModel, Provider: models.ProviderBedrock,
	}}
	svc := NewService(kv, fileService, map[string]provider.Invoker{models.ProviderBedrock: invoker}, nil, logger, 0)

	resp, err := svc.Chat(ctx, chatReq("hi"))
	require.NoError(t, err)
	assert.Equal(t, "still here", resp.Content)
	assert.Empty(t, resp.ConversationID)
}

func TestChatForwardsTuningParameters(t *testing.T) {
	ctx := context.Background()
	svc, invoker, _, _ := newTestChat(t)

	zero := 0.0
	req := chatReq("hi")
	req.MaxTokens = 1
	req.Temperature = &zero
	_, err := svc.Chat(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 1, invoker.lastRequest.MaxTokens)
	require.NotNil(t, invoker.lastRequest.Temperature)
	assert.Zero(t, *invoker.lastRequest.Temperature)
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestChat(t)

	first, err := svc.Chat(ctx, chatReq("first"))
	require.NoError(t, err)
	// Listing keys carry millisecond timestamps; the pause keeps the two
	// conversations from sharing one.
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Chat(ctx, chatReq("second"))
	require.NoError(t, err)

	conversations, err := svc.ListConversations(ctx, "u-1", 10)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, second.ConversationID, conversations[0].ConversationID)
	assert.Equal(t, first.ConversationID, conversations[1].ConversationID)
}

func TestDeleteConversationCascades(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestChat(t)

	resp, err := svc.Chat(ctx, chatReq("hi"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteConversation(ctx, resp.ConversationID))

	_, err = svc.GetConversation(ctx, resp.ConversationID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	conversations, err := svc.ListConversations(ctx, "u-1", 10)
	require.NoError(t, err)
	assert.Empty(t, conversations)

	err = svc.DeleteConversation(ctx, resp.ConversationID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
