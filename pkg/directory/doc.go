// Package directory is a small Microsoft Graph client for the calls this
// service makes: listing license holders, resolving user principal names,
// assigning and removing licenses, and reading tenant SKU counts.
//
// Authentication uses the OAuth2 client-credentials flow. One Credentials
// value owns the cached token and hands out traced HTTP clients:
//
//	creds := directory.NewCredentials(ctx, directory.CredentialsConfig{...})
//	graph := directory.NewClient(creds.HTTPClient(30*time.Second), directory.Config{
//		BaseURL:           "https://graph.microsoft.com",
//		RequestsPerSecond: 10,
//		LookupCacheSize:   1024,
//		LookupCacheTTL:    10 * time.Minute,
//	}, logger, metrics)
//
// Every call passes through a rate limiter and a circuit breaker. 4xx
// responses other than 429 do not count against the breaker. Non-2xx
// responses surface as *GraphError, which wraps ErrUpstream; a 404 on a
// license change becomes ErrUserNotFound.
package directory
