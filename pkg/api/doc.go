// Package api provides the HTTP REST API for license management and Copilot
// usage analytics.
//
// # Routes
//
// Every route lives under /api/copilot and requires a bearer token or an
// X-API-Key header when an authenticator is configured:
//
//	GET  /license-counts
//	POST /assign-license/{userId}
//	POST /assign-license-by-email/{userEmail}
//	POST /remove-license/{userId}
//	POST /remove-license-by-email/{userEmail}
//	GET  /usage-report?days=
//	GET  /user-analytics/{userId}?days=30
//	GET  /all-users-analytics?days=30
//	GET  /usage-summary?days=30
//	GET  /usage-summary/latest?days=30
//	GET  /top-users?topCount=10&days=30
//	GET  /department-analytics/{department}?days=30
//	POST /add-user-to-group/{userEmail}
//	POST /remove-user-from-group/{userEmail}
//
// # Errors
//
// Error bodies are {"error": "..."}. Invalid parameters answer 400, unknown
// users 404, a known path with the wrong method 405, directory failures 502
// and directory timeouts 504. Group routes answer 503 unless WithGroups is
// set. Anything else
// is logged and answered with a generic 500.
//
// Analytics computed from a usage feed that stopped early carry the header
// X-Usage-Feed-Partial: true.
//
// # Usage
//
//	server := api.NewServer(api.Config{DefaultDays: 30, DefaultTop: 10}, analyticsSvc, licenseSvc, logger,
//		api.WithAuthenticator(auth),
//		api.WithMetrics(metrics),
//		api.WithSnapshots(store),
//	)
//	http.ListenAndServe(":8080", server.Handler())
package api
