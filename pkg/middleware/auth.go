package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/daito-dot/AI-CONNECTIVE/pkg/models"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/observability"
	"github.com/daito-dot/AI-CONNECTIVE/pkg/storage"
)

// ContextKey is a type for context keys
type ContextKey string

// ActorContextKey is the context key for the authenticated actor
const ActorContextKey ContextKey = "actor"

// Authenticator resolves Bearer credentials to user records.
type Authenticator struct {
	verifier *oidc.IDTokenVerifier
	kv       storage.KV
}

// NewAuthenticator creates an authenticator. With a user pool id the
// pool's OIDC issuer is discovered and bearer tokens are verified
// against its signing keys; otherwise the bearer value is trusted as
// the user id.
func NewAuthenticator(ctx context.Context, kv storage.KV, region, userPoolID, clientID string) (*Authenticator, error) {
	a := &Authenticator{kv: kv}
	if userPoolID == "" {
		return a, nil
	}

	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("discover issuer %s: %w", issuer, err)
	}
	a.verifier = provider.Verifier(&oidc.Config{ClientID: clientID})
	return a, nil
}

// Handler wraps an HTTP handler with authentication.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorizedResponse(w, "missing authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}
		bearer := parts[1]

		userID, err := a.resolveSubject(r.Context(), bearer)
		if err != nil {
			unauthorizedResponse(w, "invalid or expired token")
			return
		}

		pk, sk := models.UserKey(userID)
		var actor models.User
		found, err := a.kv.Get(r.Context(), pk, sk, &actor)
		if err != nil || !found {
			unauthorizedResponse(w, "unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), ActorContextKey, &actor)
		ctx = observability.WithActorID(ctx, actor.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveSubject extracts the user id from the bearer credential.
func (a *Authenticator) resolveSubject(ctx context.Context, bearer string) (string, error) {
	if a.verifier == nil {
		return bearer, nil
	}
	token, err := a.verifier.Verify(ctx, bearer)
	if err != nil {
		return "", err
	}
	return token.Subject, nil
}

// GetActor extracts the authenticated actor from the request, nil when
// the request did not pass the auth middleware.
func GetActor(r *http.Request) *models.User {
	actor, ok := r.Context().Value(ActorContextKey).(*models.User)
	if !ok {
		return nil
	}
	return actor
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, message)
}
