package directory

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// CredentialsConfig identifies the application to the token endpoint
type CredentialsConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Credentials holds a cached client-credentials token source shared by every
// outbound Graph call
type Credentials struct {
	source oauth2.TokenSource
}

// NewCredentials creates the token source. ctx bounds the lifetime of token
// refreshes and should outlive the process's requests.
func NewCredentials(ctx context.Context, cfg CredentialsConfig) *Credentials {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	tokenClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, tokenClient)

	return &Credentials{source: cc.TokenSource(ctx)}
}

// HTTPClient returns a traced client that attaches the bearer token
func (c *Credentials) HTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(&oauth2.Transport{
			Source: c.source,
			Base:   http.DefaultTransport,
		}),
	}
}

// CheckToken reports whether a token can be obtained. A cached, unexpired
// token satisfies the check without a round trip.
func (c *Credentials) CheckToken(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.source.Token(); err != nil {
		return fmt.Errorf("acquiring directory token: %w", err)
	}
	return nil
}
