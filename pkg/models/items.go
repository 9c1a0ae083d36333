package models

import (
	"time"
)

// TimeFormat is the ISO-8601 layout used in sort keys and timestamp
// fields. Millisecond precision keeps message sort keys ordered within
// a single chat turn.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders a timestamp in the canonical key layout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Key prefixes and partition constants of the wide table.
const (
	UserPrefix = "USER#"
	FilePrefix = "FILE#"
	ConvPrefix = "CONV#"
	MsgPrefix  = "MSG#"

	MetaSK = "META"

	// UsersPartition is the GSI1 partition that holds every user, keyed
	// by creation time, for admin listings.
	UsersPartition = "USERS"

	// VisibilitySystemPartition is the GSI2 partition for system-wide files.
	VisibilitySystemPartition = "VISIBILITY#system"
	OrgPartitionPrefix        = "ORG#"
	CompanyPartitionPrefix    = "COMPANY#"
)

// Role is an actor's authority level.
type Role string

const (
	RoleSystemAdmin  Role = "system_admin"
	RoleOrgAdmin     Role = "org_admin"
	RoleCompanyAdmin Role = "company_admin"
	RoleUser         Role = "user"
)

// Valid reports whether the role is one of the known levels.
func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleOrgAdmin, RoleCompanyAdmin, RoleUser:
		return true
	}
	return false
}

// Visibility is the broadest scope at which a file is readable.
type Visibility string

const (
	VisibilityPrivate      Visibility = "private"
	VisibilityDepartment   Visibility = "department"
	VisibilityCompany      Visibility = "company"
	VisibilityOrganization Visibility = "organization"
	VisibilitySystem       Visibility = "system"
)

// FileCategory classifies what a file is used for.
type FileCategory string

const (
	CategoryChatAttachment FileCategory = "chat_attachment"
	CategoryRAGSource      FileCategory = "rag_source"
	CategoryKnowledgeBase  FileCategory = "knowledge_base"
)

// FileStatus is the upload lifecycle state of a file record.
type FileStatus string

const (
	StatusUploading  FileStatus = "uploading"
	StatusProcessing FileStatus = "processing"
	StatusReady      FileStatus = "ready"
	StatusError      FileStatus = "error"
)

// Keys carries the composite primary key and the index projections of
// an item in the wide table. GSI fields are omitted from the item when
// empty, so records without a projection never appear in that index.
type Keys struct {
	PK     string `json:"-" dynamodbav:"PK"`
	SK     string `json:"-" dynamodbav:"SK"`
	GSI1PK string `json:"-" dynamodbav:"GSI1PK,omitempty"`
	GSI1SK string `json:"-" dynamodbav:"GSI1SK,omitempty"`
	GSI2PK string `json:"-" dynamodbav:"GSI2PK,omitempty"`
	GSI2SK string `json:"-" dynamodbav:"GSI2SK,omitempty"`
}

// Scope is the tenant tuple attached to users and files. Components may
// be absent.
type Scope struct {
	OrganizationID string `json:"organizationId,omitempty" dynamodbav:"organizationId,omitempty"`
	CompanyID      string `json:"companyId,omitempty" dynamodbav:"companyId,omitempty"`
	DepartmentID   string `json:"departmentId,omitempty" dynamodbav:"departmentId,omitempty"`
}

// User is an identity-provider subject with a role and tenant scope.
type User struct {
	Keys
	EntityType string `json:"-" dynamodbav:"entityType"`

	UserID    string `json:"userId" dynamodbav:"userId"`
	Email     string `json:"email" dynamodbav:"email"`
	Name      string `json:"name" dynamodbav:"name"`
	Role      Role   `json:"role" dynamodbav:"role"`
	Scope
	CreatedAt string `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt string `json:"updatedAt" dynamodbav:"updatedAt"`
}

// UserKey returns the composite primary key of a user record.
func UserKey(userID string) (pk, sk string) {
	return UserPrefix + userID, MetaSK
}

// SetKeys derives the base key and the GSI1 listing projection.
func (u *User) SetKeys() {
	u.PK, u.SK = UserKey(u.UserID)
	u.EntityType = "user"
	u.GSI1PK = UsersPartition
	u.GSI1SK = UserPrefix + u.CreatedAt
}

// FileRecord is the metadata record of an uploaded blob.
type FileRecord struct {
	Keys
	EntityType string `json:"-" dynamodbav:"entityType"`

	FileID        string       `json:"fileId" dynamodbav:"fileId"`
	FileName      string       `json:"fileName" dynamodbav:"fileName"`
	FileType      string       `json:"fileType" dynamodbav:"fileType"`
	MimeType      string       `json:"mimeType" dynamodbav:"mimeType"`
	BlobKey       string       `json:"-" dynamodbav:"blobKey"`
	UserID        string       `json:"userId" dynamodbav:"userId"`
	CreatedByRole Role         `json:"createdByRole" dynamodbav:"createdByRole"`
	Scope
	UploadedAt    string       `json:"uploadedAt" dynamodbav:"uploadedAt"`
	FileSize      int64        `json:"fileSize" dynamodbav:"fileSize"`
	Status        FileStatus   `json:"status" dynamodbav:"status"`
	Visibility    Visibility   `json:"visibility" dynamodbav:"visibility"`
	Category      FileCategory `json:"category" dynamodbav:"category"`
	ExtractedText string       `json:"-" dynamodbav:"extractedText,omitempty"`
	TextBlobKey   string       `json:"-" dynamodbav:"textBlobKey,omitempty"`
	Description   string       `json:"description,omitempty" dynamodbav:"description,omitempty"`
	ErrorMessage  string       `json:"errorMessage,omitempty" dynamodbav:"errorMessage,omitempty"`
}

// FileKey returns the composite primary key of a file record.
func FileKey(fileID string) (pk, sk string) {
	return FilePrefix + fileID, MetaSK
}

// SetKeys derives the base key, the owner projection (GSI1), and the
// visibility projection (GSI2). Private and department files carry no
// GSI2 entry; they are reachable through the owner index only.
func (f *FileRecord) SetKeys() {
	f.PK, f.SK = FileKey(f.FileID)
	f.EntityType = "file"
	f.GSI1PK = UserPrefix + f.UserID
	f.GSI1SK = FilePrefix + f.UploadedAt
	f.GSI2PK, f.GSI2SK = fileGSI2(f.Visibility, f.Scope, f.UploadedAt)
}

// fileGSI2 computes the visibility projection keys; empty for
// visibilities that are not listed tenant-wide.
func fileGSI2(v Visibility, scope Scope, uploadedAt string) (pk, sk string) {
	switch v {
	case VisibilitySystem:
		pk = VisibilitySystemPartition
	case VisibilityOrganization:
		if scope.OrganizationID != "" {
			pk = OrgPartitionPrefix + scope.OrganizationID
		}
	case VisibilityCompany:
		if scope.CompanyID != "" {
			pk = CompanyPartitionPrefix + scope.CompanyID
		}
	}
	if pk == "" {
		return "", ""
	}
	return pk, FilePrefix + uploadedAt
}

// Conversation is the metadata record of a chat thread; its messages
// share the partition.
type Conversation struct {
	Keys
	EntityType string `json:"-" dynamodbav:"entityType"`

	ConversationID string `json:"conversationId" dynamodbav:"conversationId"`
	Title          string `json:"title" dynamodbav:"title"`
	UserID         string `json:"userId" dynamodbav:"userId"`
	Scope
	ModelID           string  `json:"modelId" dynamodbav:"modelId"`
	CreatedAt         string  `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt         string  `json:"updatedAt" dynamodbav:"updatedAt"`
	MessageCount      int     `json:"messageCount" dynamodbav:"messageCount"`
	TotalInputTokens  int     `json:"totalInputTokens" dynamodbav:"totalInputTokens"`
	TotalOutputTokens int     `json:"totalOutputTokens" dynamodbav:"totalOutputTokens"`
	TotalCost         float64 `json:"totalCost" dynamodbav:"totalCost"`
}

// ConversationKey returns the composite primary key of a conversation
// metadata record.
func ConversationKey(conversationID string) (pk, sk string) {
	return ConvPrefix + conversationID, MetaSK
}

// SetKeys derives the base key and the per-user recency projection.
// GSI1SK tracks updatedAt, so upserting a turn resorts the listing.
func (c *Conversation) SetKeys() {
	c.PK, c.SK = ConversationKey(c.ConversationID)
	c.EntityType = "conversation"
	c.GSI1PK = UserPrefix + c.UserID
	c.GSI1SK = ConvPrefix + c.UpdatedAt
}

// ConversationMessage is a single turn entry in a conversation's
// partition. The timestamp in the sort key yields chronological scan
// order.
type ConversationMessage struct {
	Keys
	EntityType string `json:"-" dynamodbav:"entityType"`

	ConversationID string  `json:"-" dynamodbav:"conversationId"`
	MessageID      string  `json:"messageId" dynamodbav:"messageId"`
	Role           string  `json:"role" dynamodbav:"role"`
	Content        string  `json:"content" dynamodbav:"content"`
	ModelID        string  `json:"modelId,omitempty" dynamodbav:"modelId,omitempty"`
	InputTokens    int     `json:"inputTokens,omitempty" dynamodbav:"inputTokens,omitempty"`
	OutputTokens   int     `json:"outputTokens,omitempty" dynamodbav:"outputTokens,omitempty"`
	Cost           float64 `json:"cost,omitempty" dynamodbav:"cost,omitempty"`
	CreatedAt      string  `json:"createdAt" dynamodbav:"createdAt"`
}

// MessageSK returns the sort key of a message within its conversation
// partition.
func MessageSK(createdAt, messageID string) string {
	return MsgPrefix + createdAt + "#" + messageID
}

// SetKeys derives the partition-shared key of the message.
func (m *ConversationMessage) SetKeys() {
	m.PK = ConvPrefix + m.ConversationID
	m.SK = MessageSK(m.CreatedAt, m.MessageID)
	m.EntityType = "message"
}
