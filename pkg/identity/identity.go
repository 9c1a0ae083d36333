package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/apperr"
)

// SignUpResult is the outcome of a self-service sign-up.
type SignUpResult struct {
	// IdentityID is the provider's subject identifier, persisted
	// verbatim as the userId.
	IdentityID string
	// Confirmed is true when the pool auto-confirms sign-ups.
	Confirmed bool
}

// Tokens are the credentials returned by a successful sign-in.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int32  `json:"expiresIn"`
}

// Provider is the capability interface over the identity provider.
type Provider interface {
	SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, email, code string) error
	SignIn(ctx context.Context, email, password string) (*Tokens, error)
	// AdminCreateUser provisions an identity with a temporary password
	// and no welcome mail; returns the subject identifier.
	AdminCreateUser(ctx context.Context, email, name string, attrs map[string]string, temporaryPassword string) (string, error)
}

// Cognito implements Provider against a Cognito user pool.
type Cognito struct {
	client     *cip.Client
	userPoolID string
	clientID   string
}

// NewCognito creates a Cognito-backed identity provider.
func NewCognito(client *cip.Client, userPoolID, clientID string) *Cognito {
	return &Cognito{client: client, userPoolID: userPoolID, clientID: clientID}
}

// SignUp registers a new identity; the pool sends the confirmation
// code mail.
func (c *Cognito) SignUp(ctx context.Context, email, password, name string) (*SignUpResult, error) {
	resp, err := c.client.SignUp(ctx, &cip.SignUpInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(email),
		Password: aws.String(password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("name"), Value: aws.String(name)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sign up %s: %w", email, err)
	}
	return &SignUpResult{
		IdentityID: aws.ToString(resp.UserSub),
		Confirmed:  resp.UserConfirmed,
	}, nil
}

// ConfirmSignUp completes email verification with the mailed code.
func (c *Cognito) ConfirmSignUp(ctx context.Context, email, code string) error {
	_, err := c.client.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		var codeMismatch *types.CodeMismatchException
		var expired *types.ExpiredCodeException
		if errors.As(err, &codeMismatch) || errors.As(err, &expired) {
			return fmt.Errorf("%w: confirmation code rejected", apperr.ErrAuthFailure)
		}
		return fmt.Errorf("confirm sign up %s: %w", email, err)
	}
	return nil
}

// SignIn performs password authentication and returns the session
// tokens.
func (c *Cognito) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	resp, err := c.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(c.clientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		var notAuthorized *types.NotAuthorizedException
		var userNotFound *types.UserNotFoundException
		var notConfirmed *types.UserNotConfirmedException
		if errors.As(err, &notAuthorized) || errors.As(err, &userNotFound) || errors.As(err, &notConfirmed) {
			return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrAuthFailure)
		}
		return nil, fmt.Errorf("sign in %s: %w", email, err)
	}
	result := resp.AuthenticationResult
	if result == nil {
		return nil, fmt.Errorf("%w: challenge flow not supported", apperr.ErrAuthFailure)
	}
	return &Tokens{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    result.ExpiresIn,
	}, nil
}

// AdminCreateUser provisions an identity with a temporary password.
// The welcome mail is suppressed; the caller relays the password once.
func (c *Cognito) AdminCreateUser(ctx context.Context, email, name string, attrs map[string]string, temporaryPassword string) (string, error) {
	userAttrs := []types.AttributeType{
		{Name: aws.String("email"), Value: aws.String(email)},
		{Name: aws.String("email_verified"), Value: aws.String("true")},
		{Name: aws.String("name"), Value: aws.String(name)},
	}
	for k, v := range attrs {
		userAttrs = append(userAttrs, types.AttributeType{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}

	resp, err := c.client.AdminCreateUser(ctx, &cip.AdminCreateUserInput{
		UserPoolId:        aws.String(c.userPoolID),
		Username:          aws.String(email),
		TemporaryPassword: aws.String(temporaryPassword),
		MessageAction:     types.MessageActionTypeSuppress,
		UserAttributes:    userAttrs,
	})
	if err != nil {
		return "", fmt.Errorf("admin create user %s: %w", email, err)
	}

	for _, attr := range resp.User.Attributes {
		if aws.ToString(attr.Name) == "sub" {
			return aws.ToString(attr.Value), nil
		}
	}
	// Some pool configurations omit sub from the response attributes;
	// the username is the stable fallback.
	return aws.ToString(resp.User.Username), nil
}
