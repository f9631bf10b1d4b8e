// Package httpmw provides HTTP middleware for the public API server.
//
// httpserver.NewHandler composes them outermost first: panic recovery,
// security headers, request ID, client IP, OTEL tracing, trace and version
// headers, metrics, request-scoped logger, access log, body limit, then the
// chi router with route annotation.
//
// Request bodies, query values and user-agent are never logged.
package httpmw
