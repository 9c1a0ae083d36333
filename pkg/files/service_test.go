package files

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryKV, *storage.MemoryBlob) {
	t.Helper()
	kv := storage.NewMemoryKV()
	blob := storage.NewMemoryBlob()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc, err := NewService(kv, blob, nil, logger)
	require.NoError(t, err)
	return svc, kv, blob
}

func uploadReq(userID string, role models.Role, visibility models.Visibility, content string) *UploadRequest {
	return &UploadRequest{
		FileName:       "note.txt",
		FileType:       "txt",
		MimeType:       "text/plain",
		FileDataBase64: base64.StdEncoding.EncodeToString([]byte(content)),
		UserID:         userID,
		UserRole:       role,
		OrganizationID: "org-1",
		CompanyID:      "c-1",
		Visibility:     visibility,
	}
}

func TestUploadRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	content := "こんにちは world"
	resp, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, content))
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, resp.Status)
	assert.NotEmpty(t, resp.FileID)

	record, err := svc.Get(ctx, resp.FileID)
	require.NoError(t, err)
	assert.Equal(t, "note.txt", record.FileName)
	assert.Equal(t, int64(len(content)), record.FileSize)

	text, err := svc.FileText(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, content, text)
}

func TestUploadBlobKeyDefaults(t *testing.T) {
	ctx := context.Background()
	svc, _, blob := newTestService(t)

	req := uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "x")
	req.OrganizationID = ""
	req.CompanyID = ""
	resp, err := svc.Upload(ctx, req)
	require.NoError(t, err)

	keys, err := blob.List(ctx, "default/default/u-1/")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "default/default/u-1/"+resp.FileID+"/note.txt", keys[0])
}

func TestUploadForbiddenVisibility(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityCompany, "x"))
	assert.ErrorIs(t, err, apperr.ErrForbiddenVisibility)

	_, err = svc.Upload(ctx, uploadReq("ca-1", models.RoleCompanyAdmin, models.VisibilityCompany, "x"))
	assert.NoError(t, err)
}

func TestUploadUnsupportedFileType(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	req := uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "x")
	req.FileType = "exe"
	_, err := svc.Upload(ctx, req)
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFileType)
}

func TestUploadBinaryTypeHasNoExtract(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	req := uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "%PDF-1.7 ...")
	req.FileName = "doc.pdf"
	req.FileType = "pdf"
	req.MimeType = "application/pdf"
	resp, err := svc.Upload(ctx, req)
	require.NoError(t, err)

	record, err := svc.Get(ctx, resp.FileID)
	require.NoError(t, err)
	assert.Empty(t, record.ExtractedText)
}

func TestListVisibilityScopes(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	// A company-visible file uploaded by a company admin of c-1.
	resp, err := svc.Upload(ctx, uploadReq("ca-1", models.RoleCompanyAdmin, models.VisibilityCompany, "shared"))
	require.NoError(t, err)

	sameCompany := &models.User{UserID: "v-1", Role: models.RoleUser, Scope: models.Scope{OrganizationID: "org-1", CompanyID: "c-1"}}
	otherCompany := &models.User{UserID: "w-1", Role: models.RoleUser, Scope: models.Scope{OrganizationID: "org-1", CompanyID: "c-2"}}

	visible, err := svc.List(ctx, sameCompany, "")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, resp.FileID, visible[0].FileID)

	hidden, err := svc.List(ctx, otherCompany, "")
	require.NoError(t, err)
	assert.Empty(t, hidden)
}

func TestListIncludesOwnerAndSystem(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "mine"))
	require.NoError(t, err)

	sysReq := uploadReq("admin", models.RoleSystemAdmin, models.VisibilitySystem, "for everyone")
	sysReq.OrganizationID = ""
	sysReq.CompanyID = ""
	_, err = svc.Upload(ctx, sysReq)
	require.NoError(t, err)

	owner := &models.User{UserID: "u-1", Role: models.RoleUser, Scope: models.Scope{OrganizationID: "org-1", CompanyID: "c-1"}}
	listed, err := svc.List(ctx, owner, "")
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	stranger := &models.User{UserID: "x-1", Role: models.RoleUser}
	listed, err = svc.List(ctx, stranger, "")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, models.VisibilitySystem, listed[0].Visibility)
}

func TestListCategoryFilter(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	req := uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "a")
	req.Category = models.CategoryKnowledgeBase
	_, err := svc.Upload(ctx, req)
	require.NoError(t, err)
	_, err = svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "b"))
	require.NoError(t, err)

	owner := &models.User{UserID: "u-1", Role: models.RoleUser}
	kb, err := svc.List(ctx, owner, models.CategoryKnowledgeBase)
	require.NoError(t, err)
	require.Len(t, kb, 1)
	assert.Equal(t, models.CategoryKnowledgeBase, kb[0].Category)
}

func TestUpdateVisibilityRewritesProjection(t *testing.T) {
	ctx := context.Background()
	svc, kv, _ := newTestService(t)

	resp, err := svc.Upload(ctx, uploadReq("ca-1", models.RoleCompanyAdmin, models.VisibilityCompany, "x"))
	require.NoError(t, err)

	owner := &models.User{UserID: "ca-1", Role: models.RoleCompanyAdmin, Scope: models.Scope{OrganizationID: "org-1", CompanyID: "c-1"}}
	_, err = svc.UpdateVisibility(ctx, owner, resp.FileID, models.VisibilityPrivate)
	require.NoError(t, err)

	var companyFiles []models.FileRecord
	err = kv.Query(ctx, storage.QueryInput{Index: storage.IndexGSI2, PartitionKey: "COMPANY#c-1"}, &companyFiles)
	require.NoError(t, err)
	assert.Empty(t, companyFiles)

	record, err := svc.Get(ctx, resp.FileID)
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, record.Visibility)
}

func TestUpdateVisibilityAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	resp, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "x"))
	require.NoError(t, err)

	stranger := &models.User{UserID: "u-2", Role: models.RoleCompanyAdmin}
	_, err = svc.UpdateVisibility(ctx, stranger, resp.FileID, models.VisibilityCompany)
	assert.ErrorIs(t, err, apperr.ErrForbiddenRole)

	// Owner limited to their role's visibility set.
	owner := &models.User{UserID: "u-1", Role: models.RoleUser}
	_, err = svc.UpdateVisibility(ctx, owner, resp.FileID, models.VisibilityCompany)
	assert.ErrorIs(t, err, apperr.ErrForbiddenVisibility)
}

func TestDeleteIdempotence(t *testing.T) {
	ctx := context.Background()
	svc, _, blob := newTestService(t)

	resp, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "x"))
	require.NoError(t, err)

	owner := &models.User{UserID: "u-1", Role: models.RoleUser}
	require.NoError(t, svc.Delete(ctx, owner, resp.FileID))

	keys, err := blob.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Second delete observes the missing record.
	err = svc.Delete(ctx, owner, resp.FileID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Get(ctx, resp.FileID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteForbidden(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	resp, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "x"))
	require.NoError(t, err)

	stranger := &models.User{UserID: "u-2", Role: models.RoleUser}
	err = svc.Delete(ctx, stranger, resp.FileID)
	assert.ErrorIs(t, err, apperr.ErrForbiddenRole)

	sysAdmin := &models.User{UserID: "admin", Role: models.RoleSystemAdmin}
	assert.NoError(t, svc.Delete(ctx, sysAdmin, resp.FileID))
}

func TestQueryCSVSummary(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	req := uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "name,age\nAlice,30\nBob,40")
	req.FileName = "facts.csv"
	req.FileType = "csv"
	req.MimeType = "text/csv"
	resp, err := svc.Upload(ctx, req)
	require.NoError(t, err)

	answer, err := svc.Query(ctx, nil, resp.FileID, "How old is Alice?")
	require.NoError(t, err)

	summary, ok := answer.SourceData.(*CSVSummary)
	require.True(t, ok)
	assert.Equal(t, []string{"name", "age"}, summary.Headers)
	assert.Equal(t, 2, summary.RowCount)
	assert.Contains(t, answer.Answer, "2")
}

func TestQueryTextPreview(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	resp, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "short note"))
	require.NoError(t, err)

	answer, err := svc.Query(ctx, nil, resp.FileID, "what is this?")
	require.NoError(t, err)
	assert.Equal(t, "short note", answer.Answer)
	assert.Nil(t, answer.SourceData)
}

func TestQueryInaccessibleFileIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	resp, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "secret"))
	require.NoError(t, err)

	stranger := &models.User{UserID: "u-2", Role: models.RoleUser}
	_, err = svc.Query(ctx, stranger, resp.FileID, "?")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestReconcileOrphans(t *testing.T) {
	ctx := context.Background()
	svc, _, blob := newTestService(t)

	// A healthy upload and a blob whose record never landed.
	resp, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "kept"))
	require.NoError(t, err)
	require.NoError(t, blob.Put(ctx, "org-1/c-1/u-1/ghost-id/lost.txt", []byte("orphan"), "text/plain"))

	removed, err := svc.ReconcileOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	keys, err := blob.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], resp.FileID)

	// Nothing left to sweep.
	removed, err = svc.ReconcileOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestBuildBlobKey(t *testing.T) {
	assert.Equal(t, "org-1/c-1/u-1/f-1/a.txt", buildBlobKey("org-1", "c-1", "u-1", "f-1", "a.txt"))
	assert.Equal(t, "default/default/u-1/f-1/a.txt", buildBlobKey("", "", "u-1", "f-1", "a.txt"))
}

var errBlobDown = errors.New("blob unavailable")

// failingBlob rejects deletes, for the delete-ordering contract.
type failingBlob struct {
	*storage.MemoryBlob
}

func (f *failingBlob) Delete(ctx context.Context, key string) error { return errBlobDown }

func TestDeleteAbortsWhenBlobFails(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	inner := storage.NewMemoryBlob()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	svc, err := NewService(kv, &failingBlob{MemoryBlob: inner}, nil, logger)
	require.NoError(t, err)

	resp, err := svc.Upload(ctx, uploadReq("u-1", models.RoleUser, models.VisibilityPrivate, "x"))
	require.NoError(t, err)

	owner := &models.User{UserID: "u-1", Role: models.RoleUser}
	err = svc.Delete(ctx, owner, resp.FileID)
	require.Error(t, err)

	// The record survives a failed blob delete.
	_, err = svc.Get(ctx, resp.FileID)
	assert.NoError(t, err)
}
