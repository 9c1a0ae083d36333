package admin

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/access"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/identity"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"
)

// Service provides authentication and user administration.
type Service struct {
	kv       storage.KV
	identity identity.Provider
	logger   *observability.Logger
}

// NewService creates an admin service.
func NewService(kv storage.KV, idp identity.Provider, logger *observability.Logger) *Service {
	return &Service{kv: kv, identity: idp, logger: logger}
}

// SignUp provisions a self-service identity and its user record with
// role user and no tenant scope.
func (s *Service) SignUp(ctx context.Context, req *SignUpRequest) (*SignUpResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperr.ErrValidation)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", apperr.ErrValidation)
	}

	result, err := s.identity.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, err
	}

	now := models.FormatTime(time.Now())
	user := &models.User{
		UserID:    result.IdentityID,
		Email:     req.Email,
		Name:      req.Name,
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user.SetKeys()
	if err := s.kv.Put(ctx, user); err != nil {
		return nil, err
	}

	return &SignUpResponse{UserID: user.UserID, Confirmed: result.Confirmed}, nil
}

// Confirm completes email verification.
func (s *Service) Confirm(ctx context.Context, req *ConfirmRequest) error {
	if req.Email == "" || req.Code == "" {
		return fmt.Errorf("%w: email and code are required", apperr.ErrValidation)
	}
	return s.identity.ConfirmSignUp(ctx, req.Email, req.Code)
}

// SignIn authenticates and returns the tokens together with the stored
// profile.
func (s *Service) SignIn(ctx context.Context, req *SignInRequest) (*SignInResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", apperr.ErrValidation)
	}

	tokens, err := s.identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.findByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	return &SignInResponse{Tokens: tokens, User: user}, nil
}

// findByEmail scans the USERS partition for a matching email. Email is
// unique by the identity provider's constraint.
func (s *Service) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var page []models.User
	err := s.kv.Query(ctx, storage.QueryInput{
		Index:         storage.IndexGSI1,
		PartitionKey:  models.UsersPartition,
		SortKeyPrefix: models.UserPrefix,
		ScanForward:   false,
	}, &page)
	if err != nil {
		return nil, err
	}
	for i := range page {
		if page[i].Email == email {
			return &page[i], nil
		}
	}
	return nil, fmt.Errorf("%w: profile for %s", apperr.ErrNotFound, email)
}

// GetProfile loads a user record.
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	pk, sk := models.UserKey(userID)
	var user models.User
	found, err := s.kv.Get(ctx, pk, sk, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: profile %s", apperr.ErrNotFound, userID)
	}
	return &user, nil
}

// UpdateProfile applies the mutable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	update := storage.UpdateInput{Set: map[string]interface{}{
		"updatedAt": models.FormatTime(time.Now()),
	}}
	if req.Name != "" {
		update.Set["name"] = req.Name
		user.Name = req.Name
	}
	if req.DepartmentID != "" {
		update.Set["departmentId"] = req.DepartmentID
		user.DepartmentID = req.DepartmentID
	}
	if err := s.kv.Update(ctx, user.PK, user.SK, update); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns the users the actor may administer. The actor's
// role forces the scope filter; a plain user gets ErrForbiddenRole.
func (s *Service) ListUsers(ctx context.Context, actor *models.User, organizationID string) ([]*models.User, error) {
	switch actor.Role {
	case models.RoleSystemAdmin:
		// optional organization filter passes through
	case models.RoleOrgAdmin:
		organizationID = actor.OrganizationID
	case models.RoleCompanyAdmin:
		organizationID = ""
	default:
		return nil, fmt.Errorf("%w: %s may not list users", apperr.ErrForbiddenRole, actor.Role)
	}

	var page []models.User
	err := s.kv.Query(ctx, storage.QueryInput{
		Index:         storage.IndexGSI1,
		PartitionKey:  models.UsersPartition,
		SortKeyPrefix: models.UserPrefix,
		ScanForward:   false,
	}, &page)
	if err != nil {
		return nil, err
	}

	var result []*models.User
	for i := range page {
		user := &page[i]
		if organizationID != "" && user.OrganizationID != organizationID {
			continue
		}
		if actor.Role == models.RoleCompanyAdmin && user.CompanyID != actor.CompanyID {
			continue
		}
		result = append(result, user)
	}
	return result, nil
}

// CreateUser provisions an identity and user record under the role
// matrix. The temporary password is returned exactly once.
func (s *Service) CreateUser(ctx context.Context, actor *models.User, req *CreateUserRequest) (*CreateUserResponse, error) {
	if req.Email == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: email and name are required", apperr.ErrValidation)
	}
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	scope := models.Scope{
		OrganizationID: req.OrganizationID,
		CompanyID:      req.CompanyID,
		DepartmentID:   req.DepartmentID,
	}
	if !access.CanCreateUser(actor, role, scope) {
		return nil, fmt.Errorf("%w: %s may not create %s in this scope", apperr.ErrForbiddenRole, actor.Role, role)
	}

	temporaryPassword := req.TemporaryPassword
	if temporaryPassword == "" {
		var err error
		temporaryPassword, err = generateTemporaryPassword()
		if err != nil {
			return nil, err
		}
	}

	identityID, err := s.identity.AdminCreateUser(ctx, req.Email, req.Name, map[string]string{}, temporaryPassword)
	if err != nil {
		return nil, err
	}

	now := models.FormatTime(time.Now())
	user := &models.User{
		UserID:    identityID,
		Email:     req.Email,
		Name:      req.Name,
		Role:      role,
		Scope:     scope,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user.SetKeys()
	if err := s.kv.Put(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"created_by": actor.UserID,
		"user_id":    user.UserID,
		"role":       string(role),
	}).Info("user created by admin")

	return &CreateUserResponse{
		User:              user,
		TemporaryPassword: temporaryPassword,
		Message:           "the user must change this password on first sign-in",
	}, nil
}
