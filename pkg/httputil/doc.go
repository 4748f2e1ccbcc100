// Package httputil provides shared HTTP plumbing for registry and advisory
// clients: retry with exponential backoff and the error wrapper that marks
// a failure as worth retrying.
//
// Registry lookups during a scan are bursty, and public registries rate
// limit aggressively; every integration client wraps transient failures in
// RetryableError so Retry can re-attempt them.
package httputil
