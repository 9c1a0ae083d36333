package files

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/access"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"
)

// textCacheSize bounds the blob-sourced text cache.
const textCacheSize = 256

// Service provides file upload, listing, visibility, deletion, and
// text retrieval.
type Service struct {
	kv        storage.KV
	blob      storage.Blob
	textCache *lru.Cache[string, string]
	metrics   *observability.Metrics
	logger    *observability.Logger
}

// NewService creates a file service. Metrics may be nil.
func NewService(kv storage.KV, blob storage.Blob, metrics *observability.Metrics, logger *observability.Logger) (*Service, error) {
	cache, err := lru.New[string, string](textCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create text cache: %w", err)
	}
	return &Service{
		kv:        kv,
		blob:      blob,
		textCache: cache,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Upload validates, stores the blob, extracts index text for txt/csv,
// and writes the metadata record with its index projections.
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*UploadResponse, error) {
	if req.FileName == "" {
		return nil, fmt.Errorf("%w: fileName is required", apperr.ErrValidation)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: userId is required", apperr.ErrValidation)
	}
	if req.FileDataBase64 == "" {
		return nil, fmt.Errorf("%w: fileData is required", apperr.ErrValidation)
	}
	fileType := strings.ToLower(req.FileType)
	if !supportedFileTypes[fileType] {
		return nil, fmt.Errorf("%w: %s", apperr.ErrUnsupportedFileType, req.FileType)
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	if !access.VisibilityAllowed(req.UserRole, visibility) {
		return nil, fmt.Errorf("%w: %s may not assign %s", apperr.ErrForbiddenVisibility, req.UserRole, visibility)
	}
	category := req.Category
	if category == "" {
		category = models.CategoryRAGSource
	}

	data, err := base64.StdEncoding.DecodeString(req.FileDataBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: fileData is not valid base64", apperr.ErrValidation)
	}
	if len(data) > maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", apperr.ErrValidation, maxUploadBytes)
	}

	fileID := uuid.NewString()
	blobKey := buildBlobKey(req.OrganizationID, req.CompanyID, req.UserID, fileID, req.FileName)

	if err := s.blob.Put(ctx, blobKey, data, req.MimeType); err != nil {
		return nil, err
	}

	record := &models.FileRecord{
		FileID:        fileID,
		FileName:      req.FileName,
		FileType:      fileType,
		MimeType:      req.MimeType,
		BlobKey:       blobKey,
		UserID:        req.UserID,
		CreatedByRole: req.UserRole,
		Scope: models.Scope{
			OrganizationID: req.OrganizationID,
			CompanyID:      req.CompanyID,
			DepartmentID:   req.DepartmentID,
		},
		UploadedAt:  models.FormatTime(time.Now()),
		FileSize:    int64(len(data)),
		Status:      models.StatusReady,
		Visibility:  visibility,
		Category:    category,
		Description: req.Description,
	}
	if text, ok := extractText(fileType, data); ok {
		record.ExtractedText = text
	}
	record.SetKeys()

	if err := s.kv.Put(ctx, record); err != nil {
		return nil, err
	}

	observability.FromContext(ctx).WithFields(map[string]interface{}{
		"file_id":    fileID,
		"file_type":  fileType,
		"visibility": string(visibility),
		"size":       len(data),
	}).Info("file uploaded")

	return &UploadResponse{
		FileID:     fileID,
		FileName:   record.FileName,
		Status:     record.Status,
		UploadedAt: record.UploadedAt,
	}, nil
}

// buildBlobKey composes the tenant-scoped blob key; absent scope parts
// are the literal "default".
func buildBlobKey(orgID, companyID, userID, fileID, fileName string) string {
	parts := []string{orgID, companyID, userID, fileID, fileName}
	for i, p := range parts[:3] {
		if p == "" {
			parts[i] = "default"
		}
	}
	return strings.Join(parts, "/")
}

// Get loads a file record by id.
func (s *Service) Get(ctx context.Context, fileID string) (*models.FileRecord, error) {
	pk, sk := models.FileKey(fileID)
	var record models.FileRecord
	found, err := s.kv.Get(ctx, pk, sk, &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: file %s", apperr.ErrNotFound, fileID)
	}
	return &record, nil
}

// List unions the owner, system, organization, and company partitions,
// deduplicates, and filters through the access predicate. The predicate
// runs even on owner-path results: stale GSI2 entries can leak through
// the raw queries.
func (s *Service) List(ctx context.Context, actor *models.User, category models.FileCategory) ([]*models.FileRecord, error) {
	queries := []storage.QueryInput{
		{Index: storage.IndexGSI1, PartitionKey: models.UserPrefix + actor.UserID, SortKeyPrefix: models.FilePrefix},
		{Index: storage.IndexGSI2, PartitionKey: models.VisibilitySystemPartition, SortKeyPrefix: models.FilePrefix},
	}
	if actor.OrganizationID != "" {
		queries = append(queries, storage.QueryInput{
			Index: storage.IndexGSI2, PartitionKey: models.OrgPartitionPrefix + actor.OrganizationID, SortKeyPrefix: models.FilePrefix,
		})
	}
	if actor.CompanyID != "" {
		queries = append(queries, storage.QueryInput{
			Index: storage.IndexGSI2, PartitionKey: models.CompanyPartitionPrefix + actor.CompanyID, SortKeyPrefix: models.FilePrefix,
		})
	}

	seen := make(map[string]bool)
	var result []*models.FileRecord
	for _, q := range queries {
		var page []models.FileRecord
		if err := s.kv.Query(ctx, q, &page); err != nil {
			return nil, err
		}
		for i := range page {
			record := &page[i]
			if seen[record.FileID] {
				continue
			}
			seen[record.FileID] = true
			if !access.CanAccessFile(record, actor) {
				continue
			}
			if category != "" && record.Category != category {
				continue
			}
			result = append(result, record)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt > result[j].UploadedAt
	})
	return result, nil
}

// UpdateVisibility relabels a file and rewrites its GSI2 projection in
// the same update. Private and department targets drop the projection
// so the record falls out of tenant-wide listings.
func (s *Service) UpdateVisibility(ctx context.Context, actor *models.User, fileID string, visibility models.Visibility) (*models.FileRecord, error) {
	record, err := s.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !access.CanManageFile(record, actor) {
		return nil, fmt.Errorf("%w: not the owner", apperr.ErrForbiddenRole)
	}
	if !access.VisibilityAllowed(actor.Role, visibility) {
		return nil, fmt.Errorf("%w: %s may not assign %s", apperr.ErrForbiddenVisibility, actor.Role, visibility)
	}

	record.Visibility = visibility
	record.SetKeys()

	update := storage.UpdateInput{
		Set: map[string]interface{}{"visibility": string(visibility)},
	}
	if record.GSI2PK != "" {
		update.Set["GSI2PK"] = record.GSI2PK
		update.Set["GSI2SK"] = record.GSI2SK
	} else {
		update.Remove = []string{"GSI2PK", "GSI2SK"}
	}
	if err := s.kv.Update(ctx, record.PK, record.SK, update); err != nil {
		return nil, err
	}
	return record, nil
}

// Delete removes the blob first, then the record. A blob failure
// aborts and leaves the record intact; a record failure after blob
// success orphans the blob for the reconciliation sweep.
func (s *Service) Delete(ctx context.Context, actor *models.User, fileID string) error {
	record, err := s.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if !access.CanManageFile(record, actor) {
		return fmt.Errorf("%w: not the owner", apperr.ErrForbiddenRole)
	}

	if err := s.blob.Delete(ctx, record.BlobKey); err != nil {
		return err
	}
	s.textCache.Remove(fileID)

	if err := s.kv.BatchDelete(ctx, []storage.Key{{PK: record.PK, SK: record.SK}}); err != nil {
		observability.FromContext(ctx).WithError(err).WithField("file_id", fileID).
			Error("record delete failed after blob delete; blob is orphaned")
		return err
	}
	return nil
}

// FileText returns the indexable content of a file: the inline extract
// when present, otherwise the blob content behind the LRU cache.
func (s *Service) FileText(ctx context.Context, record *models.FileRecord) (string, error) {
	if record.ExtractedText != "" {
		return record.ExtractedText, nil
	}
	if text, ok := s.textCache.Get(record.FileID); ok {
		if s.metrics != nil {
			s.metrics.TextCacheHitsTotal.Inc()
		}
		return text, nil
	}
	if s.metrics != nil {
		s.metrics.TextCacheMissesTotal.Inc()
	}

	key := record.TextBlobKey
	if key == "" {
		key = record.BlobKey
	}
	data, err := s.blob.Get(ctx, key)
	if err != nil {
		return "", err
	}
	text := string(data)
	s.textCache.Add(record.FileID, text)
	return text, nil
}

// Query answers an ad-hoc question about a file with a deterministic
// summary: schema and row count for CSV, a head preview for text. The
// LLM is not invoked on this path.
func (s *Service) Query(ctx context.Context, actor *models.User, fileID, question string) (*QueryResponse, error) {
	record, err := s.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if actor != nil && !access.CanAccessFile(record, actor) {
		return nil, fmt.Errorf("%w: file %s", apperr.ErrNotFound, fileID)
	}

	text, err := s.FileText(ctx, record)
	if err != nil {
		return nil, err
	}

	if record.FileType == "csv" {
		summary, err := summarizeCSV(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
		}
		return &QueryResponse{
			Answer: fmt.Sprintf("%s は %d 行のCSVファイルです。列: %s",
				record.FileName, summary.RowCount, strings.Join(summary.Headers, ", ")),
			SourceData: summary,
		}, nil
	}

	return &QueryResponse{
		Answer: previewText(text),
	}, nil
}

// ReconcileOrphans deletes blobs whose metadata record is gone. Blob
// keys embed the file id as their fourth path segment. Keys that do
// not parse are left alone.
func (s *Service) ReconcileOrphans(ctx context.Context) (int, error) {
	keys, err := s.blob.List(ctx, "")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		parts := strings.Split(key, "/")
		if len(parts) < 5 {
			continue
		}
		fileID := parts[3]

		pk, sk := models.FileKey(fileID)
		var record models.FileRecord
		found, err := s.kv.Get(ctx, pk, sk, &record)
		if err != nil {
			return removed, err
		}
		if found {
			continue
		}
		if err := s.blob.Delete(ctx, key); err != nil {
			s.logger.WithError(err).WithField("blob_key", key).Warn("orphan blob delete failed")
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("orphaned blobs reconciled")
	}
	return removed, nil
}
