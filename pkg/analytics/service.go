package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/seatlens/seatlens/pkg/observability"
)

// DefaultMaxConcurrency bounds per-user analytics construction when Config
// leaves it unset
const DefaultMaxConcurrency = 8

// UsageFeed produces the raw usage rows for one query
type UsageFeed interface {
	Fetch(ctx context.Context) (*FeedResult, error)
}

// Config holds the analytics settings fixed at startup
type Config struct {
	// LicenseSKU is the license whose holders are reported on
	LicenseSKU string
	// MaxConcurrency bounds parallel per-user builds
	MaxConcurrency int
	// FetchTimeout bounds the directory listing and feed walk; 0 means no bound
	FetchTimeout time.Duration
}

// Result carries a query's data and whether the usage feed was truncated
type Result[T any] struct {
	Data        T
	Partial     bool
	GeneratedAt time.Time
}

// Service answers the read-only analytics queries. It keeps no state
// between queries.
type Service struct {
	lister  LicensedUserLister
	feed    UsageFeed
	cfg     Config
	logger  *observability.Logger
	metrics *observability.Metrics
	clock   func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source, mainly for tests
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// NewService creates an analytics service
func NewService(lister LicensedUserLister, feed UsageFeed, cfg Config, logger *observability.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Service{
		lister:  lister,
		feed:    feed,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// dataset is the reconciled input of one query, observed at a single instant
type dataset struct {
	rows    []ReconciledUsage
	partial bool
	now     time.Time
}

// load lists licensed users and walks the feed concurrently, then joins them
func (s *Service) load(ctx context.Context) (*dataset, error) {
	now := s.clock()

	ctx, span := observability.Tracer().Start(ctx, "analytics.load")
	defer span.End()

	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	var (
		index *LicensedUserIndex
		feed  *FeedResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		index, err = LoadLicensedUsers(gctx, s.lister, s.cfg.LicenseSKU)
		return err
	})
	g.Go(func() error {
		var err error
		feed, err = s.feed.Fetch(gctx)
		if err != nil {
			return fmt.Errorf("fetching usage feed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	rows := Reconcile(feed.Rows, index)
	span.SetAttributes(
		attribute.Int("seatlens.licensed_users", index.Len()),
		attribute.Int("seatlens.feed_rows", len(feed.Rows)),
		attribute.Int("seatlens.reconciled_rows", len(rows)),
		attribute.Bool("seatlens.feed_truncated", feed.Truncated),
	)
	observability.UpdateLoggerWithTraceContext(ctx, s.logger).WithFields(map[string]interface{}{
		"licensed_users": index.Len(),
		"feed_rows":      len(feed.Rows),
		"reconciled":     len(rows),
		"partial":        feed.Truncated,
	}).Debug("Reconciled usage feed")

	return &dataset{rows: rows, partial: feed.Truncated, now: now}, nil
}

// buildAll builds every user's analytics in parallel. Output order matches
// the reconciled rows.
func (s *Service) buildAll(ds *dataset, days int) ([]UserAnalytics, error) {
	users := make([]UserAnalytics, len(ds.rows))
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrency)
	for i := range ds.rows {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("building analytics for user %s: %w", ds.rows[i].UserID, observability.MustRecover(r))
				}
			}()
			users[i] = BuildUserAnalytics(ds.rows[i], days, ds.now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.AnalyticsQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func validateDays(days int) error {
	if days < 1 {
		return fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalidArgument, days)
	}
	return nil
}

// GetInactiveUsers returns the reconciled usage rows. With days set, only
// users with no recorded activity or none in the last days are kept.
func (s *Service) GetInactiveUsers(ctx context.Context, days *int) (*Result[[]ReconciledUsage], error) {
	defer s.observe("inactive_users", time.Now())

	if days != nil && *days < 0 {
		return nil, fmt.Errorf("%w: days must not be negative, got %d", ErrInvalidArgument, *days)
	}
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &Result[[]ReconciledUsage]{
		Data:        FilterInactive(ds.rows, days, ds.now),
		Partial:     ds.partial,
		GeneratedAt: ds.now,
	}, nil
}

// GetAllUsersAnalytics returns analytics for every reconciled user in feed order
func (s *Service) GetAllUsersAnalytics(ctx context.Context, days int) (*Result[[]UserAnalytics], error) {
	defer s.observe("all_users", time.Now())

	if err := validateDays(days); err != nil {
		return nil, err
	}
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.buildAll(ds, days)
	if err != nil {
		return nil, err
	}
	return &Result[[]UserAnalytics]{Data: users, Partial: ds.partial, GeneratedAt: ds.now}, nil
}

// GetUserAnalytics returns one user's analytics. A user with no reconciled
// usage row yields ErrNotFound.
func (s *Service) GetUserAnalytics(ctx context.Context, userID string, days int) (*Result[UserAnalytics], error) {
	defer s.observe("user", time.Now())

	if err := validateDays(days); err != nil {
		return nil, err
	}
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range ds.rows {
		if r.UserID == userID {
			return &Result[UserAnalytics]{
				Data:        BuildUserAnalytics(r, days, ds.now),
				Partial:     ds.partial,
				GeneratedAt: ds.now,
			}, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
}

// GetUsageSummary returns the organization summary for the activity window
func (s *Service) GetUsageSummary(ctx context.Context, days int) (*Result[SummaryReport], error) {
	defer s.observe("summary", time.Now())

	if err := validateDays(days); err != nil {
		return nil, err
	}
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.buildAll(ds, days)
	if err != nil {
		return nil, err
	}
	return &Result[SummaryReport]{
		Data:        Summarize(users, days, ds.now),
		Partial:     ds.partial,
		GeneratedAt: ds.now,
	}, nil
}

// GetTopUsers returns up to topCount users ordered by total actions, highest
// first. Ties keep feed order.
func (s *Service) GetTopUsers(ctx context.Context, topCount, days int) (*Result[[]UserAnalytics], error) {
	defer s.observe("top_users", time.Now())

	if topCount < 0 {
		return nil, fmt.Errorf("%w: topCount must not be negative, got %d", ErrInvalidArgument, topCount)
	}
	if err := validateDays(days); err != nil {
		return nil, err
	}
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.buildAll(ds, days)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(a, b int) bool {
		return users[a].TotalCopilotActions > users[b].TotalCopilotActions
	})
	if topCount < len(users) {
		users = users[:topCount]
	}
	return &Result[[]UserAnalytics]{Data: users, Partial: ds.partial, GeneratedAt: ds.now}, nil
}

// GetUsersByDepartment returns the users whose department equals department,
// ignoring case. Users without a department never match.
func (s *Service) GetUsersByDepartment(ctx context.Context, department string, days int) (*Result[[]UserAnalytics], error) {
	defer s.observe("department", time.Now())

	if err := validateDays(days); err != nil {
		return nil, err
	}
	ds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.buildAll(ds, days)
	if err != nil {
		return nil, err
	}
	matched := make([]UserAnalytics, 0)
	for _, u := range users {
		if u.Department != nil && strings.EqualFold(*u.Department, department) {
			matched = append(matched, u)
		}
	}
	return &Result[[]UserAnalytics]{Data: matched, Partial: ds.partial, GeneratedAt: ds.now}, nil
}
