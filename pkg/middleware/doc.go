// Package middleware provides HTTP authentication middleware.
//
// # Authenticator
//
// A request is admitted when it carries either a bearer JWT that verifies
// against the configured OpenID Connect issuer and audience, or an X-API-Key
// header equal to one of the configured keys:
//
//	verifier, err := middleware.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer, cfg.Auth.OIDCAudience)
//	auth := middleware.NewAuthenticator(verifier, cfg.Auth.APIKeys)
//	router.Use(auth.Handler)
//
// A bearer token that fails verification does not reject the request on its
// own; the API key check still runs. Rejections are 401 with a JSON body.
//
// Handlers read the caller with GetPrincipal(r). The subject is also stored
// for request-scoped logging.
//
// # Related Packages
//
//   - pkg/httputil: Error responses and request id middleware
//   - pkg/contextkeys: Context key definitions
package middleware
