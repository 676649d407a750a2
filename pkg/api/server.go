package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/seatlens/seatlens/pkg/analytics"
	"github.com/seatlens/seatlens/pkg/httputil"
	"github.com/seatlens/seatlens/pkg/licensing"
	"github.com/seatlens/seatlens/pkg/middleware"
	"github.com/seatlens/seatlens/pkg/observability"
	"github.com/seatlens/seatlens/pkg/snapshot"
)

// PathPrefix is the root of every API route
const PathPrefix = "/api/copilot"

// PartialHeader marks responses computed from a truncated usage feed
const PartialHeader = "X-Usage-Feed-Partial"

// UsageQueries answers the analytics queries
type UsageQueries interface {
	GetInactiveUsers(ctx context.Context, days *int) (*analytics.Result[[]analytics.ReconciledUsage], error)
	GetUserAnalytics(ctx context.Context, userID string, days int) (*analytics.Result[analytics.UserAnalytics], error)
	GetAllUsersAnalytics(ctx context.Context, days int) (*analytics.Result[[]analytics.UserAnalytics], error)
	GetUsageSummary(ctx context.Context, days int) (*analytics.Result[analytics.SummaryReport], error)
	GetTopUsers(ctx context.Context, topCount, days int) (*analytics.Result[[]analytics.UserAnalytics], error)
	GetUsersByDepartment(ctx context.Context, department string, days int) (*analytics.Result[[]analytics.UserAnalytics], error)
}

// LicenseManager reads seat counts and changes assignments
type LicenseManager interface {
	GetLicenseCounts(ctx context.Context) (licensing.LicenseCounts, error)
	Assign(ctx context.Context, key string) (*licensing.Change, error)
	AssignByEmail(ctx context.Context, email string) (*licensing.Change, error)
	Remove(ctx context.Context, key string) (*licensing.Change, error)
	RemoveByEmail(ctx context.Context, email string) (*licensing.Change, error)
}

// GroupManager changes membership of the managed group
type GroupManager interface {
	AddUserToGroup(ctx context.Context, email string) (*licensing.Change, error)
	RemoveUserFromGroup(ctx context.Context, email string) (*licensing.Change, error)
}

// SnapshotReader serves stored summaries
type SnapshotReader interface {
	Latest(ctx context.Context, days int) (*snapshot.Snapshot, error)
}

var (
	_ UsageQueries   = (*analytics.Service)(nil)
	_ LicenseManager = (*licensing.Service)(nil)
	_ GroupManager   = (*licensing.GroupService)(nil)
	_ SnapshotReader = (*snapshot.Store)(nil)
)

// Config holds request defaults and cross-origin settings
type Config struct {
	DefaultDays int
	DefaultTop  int
	CORSOrigins []string
}

// Server is the HTTP API
type Server struct {
	router    *mux.Router
	usage     UsageQueries
	licenses  LicenseManager
	groups    GroupManager
	snapshots SnapshotReader
	cfg       Config
	logger    *observability.Logger
	metrics   *observability.Metrics
	auth      *middleware.Authenticator
}

// Option configures a Server
type Option func(*Server)

// WithSnapshots serves /usage-summary/latest from reader
func WithSnapshots(reader SnapshotReader) Option {
	return func(s *Server) {
		s.snapshots = reader
	}
}

// WithGroups serves the group membership routes. Without it they answer 503.
func WithGroups(groups GroupManager) Option {
	return func(s *Server) {
		s.groups = groups
	}
}

// WithAuthenticator guards every API route. Without it the API is open.
func WithAuthenticator(auth *middleware.Authenticator) Option {
	return func(s *Server) {
		s.auth = auth
	}
}

// WithMetrics records request metrics
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// NewServer creates the API server and registers its routes
func NewServer(cfg Config, usage UsageQueries, licenses LicenseManager, logger *observability.Logger, opts ...Option) *Server {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 30
	}
	if cfg.DefaultTop <= 0 {
		cfg.DefaultTop = 10
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:   mux.NewRouter(),
		usage:    usage,
		licenses: licenses,
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes. Routes sit on the root router
// with their full path so a known path with the wrong method answers 405.
func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	if s.auth != nil {
		s.router.Use(s.auth.Handler)
	}

	// License routes
	s.handle(http.MethodGet, "/license-counts", s.getLicenseCounts)
	s.handle(http.MethodPost, "/assign-license/{userId}", s.assignLicense)
	s.handle(http.MethodPost, "/assign-license-by-email/{userEmail}", s.assignLicenseByEmail)
	s.handle(http.MethodPost, "/remove-license/{userId}", s.removeLicense)
	s.handle(http.MethodPost, "/remove-license-by-email/{userEmail}", s.removeLicenseByEmail)

	// Group routes
	s.handle(http.MethodPost, "/add-user-to-group/{userEmail}", s.addUserToGroup)
	s.handle(http.MethodPost, "/remove-user-from-group/{userEmail}", s.removeUserFromGroup)

	// Usage routes
	s.handle(http.MethodGet, "/usage-report", s.getUsageReport)
	s.handle(http.MethodGet, "/user-analytics/{userId}", s.getUserAnalytics)
	s.handle(http.MethodGet, "/all-users-analytics", s.getAllUsersAnalytics)
	s.handle(http.MethodGet, "/usage-summary/latest", s.getLatestSummary)
	s.handle(http.MethodGet, "/usage-summary", s.getUsageSummary)
	s.handle(http.MethodGet, "/top-users", s.getTopUsers)
	s.handle(http.MethodGet, "/department-analytics/{department}", s.getDepartmentAnalytics)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) handle(method, path string, h http.HandlerFunc) {
	s.router.HandleFunc(PathPrefix+path, h).Methods(method)
}

// Router exposes the route table, mainly for tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler without the outer middleware
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped with tracing, request ids, logging,
// panic recovery and CORS
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware(s.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(s.cfg.CORSOrigins),
	)
	return otelhttp.NewHandler(chain(s.router), "seatlens-api")
}
