package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seatlens/seatlens/pkg/observability"
)

const (
	// DefaultGraphBaseURL is the Microsoft Graph root used for directory calls
	DefaultGraphBaseURL = "https://graph.microsoft.com"
	// DefaultGraphScope is the client-credentials scope for Graph
	DefaultGraphScope = "https://graph.microsoft.com/.default"
	// DefaultFeedURL is the Copilot per-user usage report
	DefaultFeedURL = "https://graph.microsoft.com/beta/reports/getMicrosoft365CopilotUsageUserDetail(period='D30')?$format=application/json"

	tokenURLTemplate = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Directory     DirectoryConfig     `yaml:"directory"`
	Feed          FeedConfig          `yaml:"feed"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Auth          AuthConfig          `yaml:"auth"`
	Snapshot      SnapshotConfig      `yaml:"snapshot"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`

	CORSOrigins []string `yaml:"cors_origins"`
}

// DirectoryConfig holds the Graph application credentials and client tuning
type DirectoryConfig struct {
	TenantID     string   `yaml:"tenant_id"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"` // derived from TenantID when empty
	Scopes       []string `yaml:"scopes"`
	GraphBaseURL string   `yaml:"graph_base_url"`
	LicenseSKU   string   `yaml:"license_sku"`
	// GroupID is the group managed by the membership routes; empty disables them
	GroupID string `yaml:"group_id"`

	RequestsPerSecond float64       `yaml:"requests_per_second"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	LookupCacheSize   int           `yaml:"lookup_cache_size"`
	LookupCacheTTL    time.Duration `yaml:"lookup_cache_ttl"`
}

// FeedConfig holds the usage feed location
type FeedConfig struct {
	URL               string  `yaml:"url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// AnalyticsConfig holds query execution limits
type AnalyticsConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	FetchTimeout   time.Duration `yaml:"fetch_timeout"`
	DefaultDays    int           `yaml:"default_days"`
	DefaultTop     int           `yaml:"default_top"`
}

// AuthConfig holds inbound authentication settings
type AuthConfig struct {
	Disabled     bool     `yaml:"disabled"`
	APIKeys      []string `yaml:"api_keys"`
	OIDCIssuer   string   `yaml:"oidc_issuer"`
	OIDCAudience string   `yaml:"oidc_audience"`
}

// SnapshotConfig holds the summary snapshot store and reporter schedule
type SnapshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
	Schedule string        `yaml:"schedule"`
	Days     []int         `yaml:"days"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Defaults returns the configuration used when nothing is overridden
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Directory: DirectoryConfig{
			Scopes:            []string{DefaultGraphScope},
			GraphBaseURL:      DefaultGraphBaseURL,
			RequestsPerSecond: 10,
			RequestTimeout:    30 * time.Second,
			LookupCacheSize:   1024,
			LookupCacheTTL:    10 * time.Minute,
		},
		Feed: FeedConfig{
			URL:               DefaultFeedURL,
			RequestsPerSecond: 5,
		},
		Analytics: AnalyticsConfig{
			MaxConcurrency: 8,
			FetchTimeout:   2 * time.Minute,
			DefaultDays:    30,
			DefaultTop:     10,
		},
		Snapshot: SnapshotConfig{
			TTL:      24 * time.Hour,
			Schedule: "0 */6 * * *",
			Days:     []int{7, 30, 90},
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.InfoLevel,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "seatlens",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig loads configuration from defaults, then the YAML file named by
// SEATLENS_CONFIG_FILE if set, then environment variables
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := getEnv("SEATLENS_CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	cfg.Directory.deriveTokenURL()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	loadServerConfig(&cfg.Server)
	loadDirectoryConfig(&cfg.Directory)
	loadFeedConfig(&cfg.Feed)
	loadAnalyticsConfig(&cfg.Analytics)
	loadAuthConfig(&cfg.Auth)
	loadSnapshotConfig(&cfg.Snapshot)
	loadObservabilityConfig(&cfg.Observability)
}

// loadServerConfig loads server configuration from environment
func loadServerConfig(cfg *ServerConfig) {
	cfg.Host = getEnv("SEATLENS_HOST", cfg.Host)
	cfg.Port = getEnv("SEATLENS_PORT", cfg.Port)
	cfg.ReadTimeout = getEnvDuration("SEATLENS_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("SEATLENS_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("SEATLENS_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("SEATLENS_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.HealthPort = getEnv("SEATLENS_HEALTH_PORT", cfg.HealthPort)
	cfg.CORSOrigins = getEnvList("SEATLENS_CORS_ORIGINS", cfg.CORSOrigins)
}

// loadDirectoryConfig loads Graph credentials from environment
func loadDirectoryConfig(cfg *DirectoryConfig) {
	cfg.TenantID = getEnv("SEATLENS_TENANT_ID", cfg.TenantID)
	cfg.ClientID = getEnv("SEATLENS_CLIENT_ID", cfg.ClientID)
	cfg.ClientSecret = getEnv("SEATLENS_CLIENT_SECRET", cfg.ClientSecret)
	cfg.TokenURL = getEnv("SEATLENS_TOKEN_URL", cfg.TokenURL)
	cfg.Scopes = getEnvList("SEATLENS_GRAPH_SCOPES", cfg.Scopes)
	cfg.GraphBaseURL = getEnv("SEATLENS_GRAPH_BASE_URL", cfg.GraphBaseURL)
	cfg.LicenseSKU = getEnv("SEATLENS_LICENSE_SKU", cfg.LicenseSKU)
	cfg.GroupID = getEnv("SEATLENS_GROUP_ID", cfg.GroupID)
	cfg.RequestsPerSecond = getEnvFloat("SEATLENS_GRAPH_RPS", cfg.RequestsPerSecond)
	cfg.RequestTimeout = getEnvDuration("SEATLENS_GRAPH_TIMEOUT", cfg.RequestTimeout)
	cfg.LookupCacheSize = getEnvInt("SEATLENS_LOOKUP_CACHE_SIZE", cfg.LookupCacheSize)
	cfg.LookupCacheTTL = getEnvDuration("SEATLENS_LOOKUP_CACHE_TTL", cfg.LookupCacheTTL)
}

func (c *DirectoryConfig) deriveTokenURL() {
	if c.TokenURL == "" && c.TenantID != "" {
		c.TokenURL = fmt.Sprintf(tokenURLTemplate, url.PathEscape(c.TenantID))
	}
}

func loadFeedConfig(cfg *FeedConfig) {
	cfg.URL = getEnv("SEATLENS_FEED_URL", cfg.URL)
	cfg.RequestsPerSecond = getEnvFloat("SEATLENS_FEED_RPS", cfg.RequestsPerSecond)
}

func loadAnalyticsConfig(cfg *AnalyticsConfig) {
	cfg.MaxConcurrency = getEnvInt("SEATLENS_MAX_CONCURRENCY", cfg.MaxConcurrency)
	cfg.FetchTimeout = getEnvDuration("SEATLENS_FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.DefaultDays = getEnvInt("SEATLENS_DEFAULT_DAYS", cfg.DefaultDays)
	cfg.DefaultTop = getEnvInt("SEATLENS_DEFAULT_TOP", cfg.DefaultTop)
}

func loadAuthConfig(cfg *AuthConfig) {
	cfg.Disabled = getEnvBool("SEATLENS_AUTH_DISABLED", cfg.Disabled)
	cfg.APIKeys = getEnvList("SEATLENS_API_KEYS", cfg.APIKeys)
	cfg.OIDCIssuer = getEnv("SEATLENS_OIDC_ISSUER", cfg.OIDCIssuer)
	cfg.OIDCAudience = getEnv("SEATLENS_OIDC_AUDIENCE", cfg.OIDCAudience)
}

func loadSnapshotConfig(cfg *SnapshotConfig) {
	cfg.RedisURL = getEnv("SEATLENS_REDIS_URL", cfg.RedisURL)
	cfg.Enabled = getEnvBool("SEATLENS_SNAPSHOT_ENABLED", cfg.Enabled || cfg.RedisURL != "")
	cfg.TTL = getEnvDuration("SEATLENS_SNAPSHOT_TTL", cfg.TTL)
	cfg.Schedule = getEnv("SEATLENS_SNAPSHOT_SCHEDULE", cfg.Schedule)
	cfg.Days = getEnvIntList("SEATLENS_SNAPSHOT_DAYS", cfg.Days)
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig(cfg *ObservabilityConfig) {
	if level := getEnv("SEATLENS_LOG_LEVEL", ""); level != "" {
		cfg.LogLevel = observability.ParseLogLevel(level)
	}
	cfg.MetricsEnabled = getEnvBool("SEATLENS_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.OTelEnabled = getEnvBool("SEATLENS_OTEL_ENABLED", cfg.OTelEnabled)
	cfg.OTelEndpoint = getEnv("SEATLENS_OTEL_ENDPOINT", cfg.OTelEndpoint)
	cfg.OTelServiceName = getEnv("SEATLENS_OTEL_SERVICE_NAME", cfg.OTelServiceName)
	cfg.OTelServiceVersion = getEnv("SEATLENS_OTEL_SERVICE_VERSION", cfg.OTelServiceVersion)
	cfg.OTelInsecure = getEnvBool("SEATLENS_OTEL_INSECURE", cfg.OTelInsecure)
	cfg.OTelSampleRatio = getEnvFloat("SEATLENS_OTEL_SAMPLE_RATIO", cfg.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Directory.TenantID == "" && c.Directory.TokenURL == "" {
		return fmt.Errorf("tenant id or token URL is required")
	}
	if c.Directory.ClientID == "" || c.Directory.ClientSecret == "" {
		return fmt.Errorf("client id and client secret are required")
	}
	if c.Directory.LicenseSKU == "" {
		return fmt.Errorf("license SKU is required")
	}
	if c.Directory.GraphBaseURL == "" {
		return fmt.Errorf("graph base URL is required")
	}
	if c.Directory.RequestsPerSecond < 0 || c.Feed.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative")
	}

	if c.Feed.URL == "" {
		return fmt.Errorf("usage feed URL is required")
	}

	if c.Analytics.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.Analytics.MaxConcurrency)
	}
	if c.Analytics.DefaultDays < 1 {
		return fmt.Errorf("default days must be at least 1, got %d", c.Analytics.DefaultDays)
	}
	if c.Analytics.DefaultTop < 1 {
		return fmt.Errorf("default top count must be at least 1, got %d", c.Analytics.DefaultTop)
	}

	if !c.Auth.Disabled && len(c.Auth.APIKeys) == 0 && c.Auth.OIDCIssuer == "" {
		return fmt.Errorf("API keys or an OIDC issuer are required unless auth is disabled")
	}
	if c.Auth.OIDCIssuer != "" && c.Auth.OIDCAudience == "" {
		return fmt.Errorf("OIDC audience is required when an issuer is set")
	}

	if c.Snapshot.Enabled {
		if c.Snapshot.RedisURL == "" {
			return fmt.Errorf("redis URL is required when snapshots are enabled")
		}
		if len(c.Snapshot.Days) == 0 {
			return fmt.Errorf("at least one snapshot window is required")
		}
		for _, d := range c.Snapshot.Days {
			if d < 1 {
				return fmt.Errorf("snapshot window must be at least 1 day, got %d", d)
			}
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default.
// Empty items are dropped.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvIntList returns a comma separated integer list or a default. Any
// unparsable item discards the whole value.
func getEnvIntList(key string, defaultValue []int) []int {
	items := getEnvList(key, nil)
	if items == nil {
		return defaultValue
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}
