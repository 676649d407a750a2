// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, summary)
//	httputil.WriteBadRequest(w, "days must be at least 1")
//	httputil.WriteNotFoundError(w, "User with id 42 not found.")
//	httputil.WriteBadGateway(w, "directory unavailable")
//
// Every error body has the shape {"error": "..."}.
//
// # Request Parsing
//
//	userID, ok := httputil.ParsePathStringOrError(w, r, "userId")
//	days, ok := httputil.ParseQueryIntOrError(w, r, "days", 30)
//	days, err := httputil.ParseOptionalQueryInt(r, "days") // nil when absent
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.CORSMiddleware(origins),
//	)
//
// RequestIDMiddleware must run first so later middleware log with the
// request id.
//
// # Related Packages
//
//   - pkg/middleware: Authentication middleware
package httputil
