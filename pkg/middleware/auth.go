package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/seatlens/seatlens/pkg/contextkeys"
	"github.com/seatlens/seatlens/pkg/httputil"
	"github.com/seatlens/seatlens/pkg/observability"
)

// APIKeyHeader is the header carrying a static API key
const APIKeyHeader = "X-API-Key"

const (
	msgAPIKeyMissing = "API Key missing. Provide X-API-Key header or use OAuth authentication."
	msgAPIKeyInvalid = "Invalid API Key"
)

// Authentication methods recorded on a Principal
const (
	MethodBearer = "bearer"
	MethodAPIKey = "api_key"
)

// ErrNoVerifier is returned when bearer tokens are presented but no issuer
// is configured
var ErrNoVerifier = errors.New("bearer authentication is not configured")

// Principal is the authenticated caller
type Principal struct {
	Subject string
	Method  string
	// Name is the display or user principal name from the token, if any
	Name string
}

// TokenVerifier validates a raw bearer token
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Principal, error)
}

// OIDCVerifier verifies JWT access tokens against an OpenID Connect issuer
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's signing keys. Tokens must carry
// audience in their aud claim.
func NewOIDCVerifier(ctx context.Context, issuer, audience string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

type tokenClaims struct {
	PreferredUsername string `json:"preferred_username"`
	UPN               string `json:"upn"`
	Name              string `json:"name"`
}

// Verify checks signature, issuer, audience and expiry
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	var claims tokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decoding token claims: %w", err)
	}

	name := claims.PreferredUsername
	if name == "" {
		name = claims.UPN
	}
	if name == "" {
		name = claims.Name
	}
	return &Principal{Subject: token.Subject, Method: MethodBearer, Name: name}, nil
}

// Authenticator admits requests carrying a valid bearer token or a known
// API key. A rejected bearer token falls through to the API key check.
type Authenticator struct {
	verifier TokenVerifier
	apiKeys  [][]byte
}

// NewAuthenticator creates the middleware. verifier may be nil when only API
// keys are accepted.
func NewAuthenticator(verifier TokenVerifier, apiKeys []string) *Authenticator {
	keys := make([][]byte, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return &Authenticator{verifier: verifier, apiKeys: keys}
}

// Handler wraps an HTTP handler with authentication
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := observability.FromContext(r.Context())

		if raw, ok := bearerToken(r); ok {
			principal, err := a.verifyBearer(r.Context(), raw)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
				return
			}
			logger.WithError(err).Debug("Bearer token rejected, trying API key")
		}

		presented := r.Header.Get(APIKeyHeader)
		if presented == "" {
			httputil.WriteUnauthorized(w, msgAPIKeyMissing)
			return
		}

		principal, ok := a.matchAPIKey(presented)
		if !ok {
			logger.WithField("remote_addr", r.RemoteAddr).Warn("Invalid API key presented")
			httputil.WriteUnauthorized(w, msgAPIKeyInvalid)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPrincipal(r.Context(), principal)))
	})
}

func (a *Authenticator) verifyBearer(ctx context.Context, raw string) (*Principal, error) {
	if a.verifier == nil {
		return nil, ErrNoVerifier
	}
	return a.verifier.Verify(ctx, raw)
}

// matchAPIKey compares against every configured key so timing does not
// reveal which one matched
func (a *Authenticator) matchAPIKey(presented string) (*Principal, bool) {
	match := -1
	for i, key := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(presented), key) == 1 {
			match = i
		}
	}
	if match < 0 {
		return nil, false
	}
	return &Principal{Subject: fmt.Sprintf("api-key-%d", match+1), Method: MethodAPIKey}, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = contextkeys.WithPrincipal(ctx, p)
	return observability.WithUserID(ctx, p.Subject)
}

// GetPrincipal extracts the authenticated caller from the request
func GetPrincipal(r *http.Request) *Principal {
	p, ok := r.Context().Value(contextkeys.PrincipalKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}
