package admin

import (
	"github.com/daito-dot/AI-CONNECTIVE/pkg/identity"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
)

// SignUpRequest is the body of POST /auth/signup.
type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// SignUpResponse is the body returned by POST /auth/signup.
type SignUpResponse struct {
	UserID    string `json:"userId"`
	Confirmed bool   `json:"confirmed"`
}

// ConfirmRequest is the body of POST /auth/confirm.
type ConfirmRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// SignInRequest is the body of POST /auth/signin.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse is the body returned by POST /auth/signin.
type SignInResponse struct {
	Tokens *identity.Tokens `json:"tokens"`
	User   *models.User     `json:"user"`
}

// UpdateProfileRequest is the body of PUT /auth/profile.
type UpdateProfileRequest struct {
	Name         string `json:"name,omitempty"`
	DepartmentID string `json:"departmentId,omitempty"`
}

// CreateUserRequest is the body of POST /admin/users.
type CreateUserRequest struct {
	Email             string      `json:"email"`
	Name              string      `json:"name"`
	Role              models.Role `json:"role"`
	OrganizationID    string      `json:"organizationId,omitempty"`
	CompanyID         string      `json:"companyId,omitempty"`
	DepartmentID      string      `json:"departmentId,omitempty"`
	TemporaryPassword string      `json:"temporaryPassword,omitempty"`
}

// CreateUserResponse is the body returned by POST /admin/users. The
// temporary password appears here exactly once; the user must change
// it on first sign-in.
type CreateUserResponse struct {
	User              *models.User `json:"user"`
	TemporaryPassword string       `json:"temporaryPassword"`
	Message           string       `json:"message"`
}
