package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/seatlens/seatlens/pkg/observability"
)

// FeedConfig configures the usage feed fetcher
type FeedConfig struct {
	// URL is the first page of the usage report feed
	URL string
	// RequestsPerSecond paces page requests; 0 disables pacing
	RequestsPerSecond float64
}

// FeedResult is the outcome of one feed fetch
type FeedResult struct {
	Rows  []UsageRow
	Pages int
	// Truncated is set when a page failed and later pages were not fetched
	Truncated bool
}

// FeedFetcher retrieves the paginated usage report feed
type FeedFetcher struct {
	client  *http.Client
	feedURL string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewFeedFetcher creates a feed fetcher. The client must attach the bearer token.
func NewFeedFetcher(client *http.Client, cfg FeedConfig, logger *observability.Logger, metrics *observability.Metrics) *FeedFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "usage-feed",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// The caller giving up says nothing about the feed's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &FeedFetcher{
		client:  client,
		feedURL: cfg.URL,
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch walks the feed from its first page, following @odata.nextLink until
// it is absent or empty. A failed page ends the walk and the rows collected
// from earlier pages are returned with Truncated set. Context cancellation
// abandons the walk and returns the context error.
func (f *FeedFetcher) Fetch(ctx context.Context) (*FeedResult, error) {
	result := &FeedResult{}
	next := f.feedURL

	for next != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("usage feed rate limit wait: %w", err)
			}
		}

		page, err := f.fetchPage(ctx, next)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			f.logger.WithError(err).WithFields(map[string]interface{}{
				"page":           result.Pages + 1,
				"rows_collected": len(result.Rows),
			}).Warn("Usage feed page failed, returning rows from earlier pages")
			result.Truncated = true
			if f.metrics != nil {
				f.metrics.FeedPagesTotal.WithLabelValues("error").Inc()
				f.metrics.FeedTruncationsTotal.Inc()
			}
			return result, nil
		}

		for _, rec := range page.Value {
			result.Rows = append(result.Rows, rec.toUsageRow())
		}
		result.Pages++
		if f.metrics != nil {
			f.metrics.FeedPagesTotal.WithLabelValues("success").Inc()
			f.metrics.FeedRowsTotal.Add(float64(len(page.Value)))
		}

		next = page.NextLink
	}

	f.logger.Debugf("Fetched %d usage rows across %d feed pages", len(result.Rows), result.Pages)
	return result, nil
}

// feedPage is the envelope of one feed page
type feedPage struct {
	Value    []feedRecord `json:"value"`
	NextLink string       `json:"@odata.nextLink"`
}

// feedRecord keeps raw field values so each one is normalized independently
type feedRecord map[string]json.RawMessage

func (f *FeedFetcher) fetchPage(ctx context.Context, pageURL string) (*feedPage, error) {
	out, err := f.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build usage feed request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("usage feed request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("usage feed returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		var page feedPage
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return nil, fmt.Errorf("failed to decode usage feed page: %w", err)
		}
		return &page, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*feedPage), nil
}

func (r feedRecord) toUsageRow() UsageRow {
	row := UsageRow{
		UserDisplayName:   stringValue(parseNullableString(r["displayName"])),
		UserPrincipalName: stringValue(parseNullableString(r["userPrincipalName"])),
		UserDepartment:    parseNullableString(r["department"]),
		LastActivityDate:  parseNullableTime(r["lastActivityDate"]),
	}
	for i, field := range row.appFields() {
		*field = parseNullableTime(r[TrackedApps[i].FeedField])
	}
	return row
}

func parseNullableString(raw json.RawMessage) *string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Non-string values are treated as absent, like unparseable timestamps
		return nil
	}
	return &s
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// feedTimeLayouts are tried in order; values without a zone are read as UTC
var feedTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

// parseNullableTime maps missing, null, empty, "undefined" and unparseable
// values to nil.
func parseNullableTime(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "undefined") {
		return nil
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
