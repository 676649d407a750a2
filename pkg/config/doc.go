// Package config provides application configuration management.
//
// # Overview
//
// Configuration starts from Defaults, is overlaid with the YAML file named
// by SEATLENS_CONFIG_FILE when set, and is finally overridden by environment
// variables. The result is validated before use and passed explicitly to
// constructors.
//
// # Configuration Structure
//
// Server settings:
//
//	SEATLENS_HOST="0.0.0.0"
//	SEATLENS_PORT="8080"
//	SEATLENS_HEALTH_PORT="9090"
//	SEATLENS_READ_TIMEOUT="15s"
//	SEATLENS_WRITE_TIMEOUT="60s"
//
// Directory (Microsoft Graph) settings:
//
//	SEATLENS_TENANT_ID="..."
//	SEATLENS_CLIENT_ID="..."
//	SEATLENS_CLIENT_SECRET="..."
//	SEATLENS_LICENSE_SKU="639dec6b-bb19-468b-871c-c5c441c4b0cb"
//	SEATLENS_GRAPH_RPS="10"
//	SEATLENS_FEED_URL="https://graph.microsoft.com/beta/reports/..."
//
// Authentication:
//
//	SEATLENS_API_KEYS="key-one,key-two"
//	SEATLENS_OIDC_ISSUER="https://login.microsoftonline.com/<tenant>/v2.0"
//	SEATLENS_OIDC_AUDIENCE="api://seatlens"
//
// Snapshots:
//
//	SEATLENS_REDIS_URL="redis://localhost:6379/0"
//	SEATLENS_SNAPSHOT_SCHEDULE="0 */6 * * *"
//	SEATLENS_SNAPSHOT_DAYS="7,30,90"
//
// Observability settings:
//
//	SEATLENS_LOG_LEVEL="info"  # debug, info, warn, error
//	SEATLENS_METRICS_ENABLED="true"
//	SEATLENS_OTEL_ENABLED="true"
//	SEATLENS_OTEL_ENDPOINT="otel-collector:4317"
//
// The same settings in YAML:
//
//	server:
//	  port: "8080"
//	directory:
//	  tenant_id: contoso
//	  license_sku: 639dec6b-bb19-468b-871c-c5c441c4b0cb
//	snapshot:
//	  days: [7, 30, 90]
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// # Related Packages
//
//   - pkg/directory: Uses directory configuration
//   - pkg/observability: Uses observability configuration
package config
