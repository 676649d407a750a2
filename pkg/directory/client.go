package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/seatlens/seatlens/pkg/observability"
)

var (
	// ErrUserNotFound is returned when Graph has no user for the given id or
	// principal name
	ErrUserNotFound = errors.New("directory user not found")
	// ErrUpstream wraps every other Graph failure
	ErrUpstream = errors.New("directory request failed")
)

// GraphError is a non-2xx Graph response
type GraphError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *GraphError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("graph returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("graph returned status %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func (e *GraphError) Unwrap() error { return ErrUpstream }

// clientFault reports responses that say nothing about Graph's health
func (e *GraphError) clientFault() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// Config tunes the Graph client
type Config struct {
	// BaseURL is the Graph root without version, e.g. https://graph.microsoft.com
	BaseURL string
	// RequestsPerSecond paces calls; 0 disables pacing
	RequestsPerSecond float64
	// LookupCacheSize bounds cached principal-name lookups; 0 disables the cache
	LookupCacheSize int
	LookupCacheTTL  time.Duration
}

// Client is a minimal Microsoft Graph client for users, licenses and SKUs
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	lookups *lru.LRU[string, User]
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewClient creates a Graph client. httpClient must attach the bearer token;
// see Credentials.HTTPClient.
func NewClient(httpClient *http.Client, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	var lookups *lru.LRU[string, User]
	if cfg.LookupCacheSize > 0 {
		lookups = lru.NewLRU[string, User](cfg.LookupCacheSize, nil, cfg.LookupCacheTTL)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "directory",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			var ge *GraphError
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return errors.As(err, &ge) && ge.clientFault()
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: limiter,
		breaker: breaker,
		lookups: lookups,
		logger:  logger,
		metrics: metrics,
	}
}

// endpoint builds a v1.0 URL. Spaces in query values are encoded as %20,
// which OData filters require.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/v1.0" + path
	if len(query) > 0 {
		u += "?" + strings.ReplaceAll(query.Encode(), "+", "%20")
	}
	return u
}

// do sends one request through the limiter and breaker and decodes a 2xx
// JSON body into out when out is non-nil
func (c *Client) do(ctx context.Context, operation, method, rawURL string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() { c.metrics.ObserveDirectoryRequest(operation, start, err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("directory rate limit wait: %w", err)
		}
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, rawURL, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readGraphError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrUpstream, err)
	}
	return nil
}

func readGraphError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	ge := &GraphError{StatusCode: resp.StatusCode}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Code != "" {
		ge.Code = envelope.Error.Code
		ge.Message = envelope.Error.Message
	} else {
		ge.Message = strings.TrimSpace(string(raw))
	}
	return ge
}

func isNotFound(err error) bool {
	var ge *GraphError
	return errors.As(err, &ge) && ge.StatusCode == http.StatusNotFound
}
