package files

import (
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
)

// supportedFileTypes are the upload types the service accepts. Only
// txt and csv are indexed; the rest are stored verbatim.
var supportedFileTypes = map[string]bool{
	"pdf":  true,
	"docx": true,
	"txt":  true,
	"csv":  true,
	"xlsx": true,
}

// indexableFileTypes get their UTF-8 decoding stored inline on the
// record so RAG assembly does not re-read the blob.
var indexableFileTypes = map[string]bool{
	"txt": true,
	"csv": true,
}

// maxUploadBytes bounds the decoded upload payload.
const maxUploadBytes = 10 << 20

// UploadRequest is the body of POST /files/upload.
type UploadRequest struct {
	FileName       string              `json:"fileName"`
	FileType       string              `json:"fileType"`
	MimeType       string              `json:"mimeType"`
	FileDataBase64 string              `json:"fileData"`
	UserID         string              `json:"userId"`
	UserRole       models.Role         `json:"userRole"`
	OrganizationID string              `json:"organizationId,omitempty"`
	CompanyID      string              `json:"companyId,omitempty"`
	DepartmentID   string              `json:"departmentId,omitempty"`
	Visibility     models.Visibility   `json:"visibility,omitempty"`
	Category       models.FileCategory `json:"category,omitempty"`
	Description    string              `json:"description,omitempty"`
}

// UploadResponse is the body returned by POST /files/upload.
type UploadResponse struct {
	FileID     string            `json:"fileId"`
	FileName   string            `json:"fileName"`
	Status     models.FileStatus `json:"status"`
	UploadedAt string            `json:"uploadedAt"`
}

// UpdateVisibilityRequest is the body of PUT /files/{id}.
type UpdateVisibilityRequest struct {
	UserID     string            `json:"userId"`
	UserRole   models.Role       `json:"userRole"`
	Visibility models.Visibility `json:"visibility"`
}

// QueryRequest is the body of POST /files/{id}/query.
type QueryRequest struct {
	Question string      `json:"question"`
	UserID   string      `json:"userId,omitempty"`
	UserRole models.Role `json:"userRole,omitempty"`
}

// QueryResponse is the body returned by POST /files/{id}/query. The
// LLM is never invoked on this path; answers are deterministic
// summaries of the file content.
type QueryResponse struct {
	Answer     string      `json:"answer"`
	SourceData interface{} `json:"sourceData,omitempty"`
}

// CSVSummary is the sourceData payload for CSV files.
type CSVSummary struct {
	Headers  []string `json:"headers"`
	RowCount int      `json:"rowCount"`
}
