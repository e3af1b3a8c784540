// Package httputil provides HTTP utilities shared by the registry clients
// and the artifact fetcher.
//
// # Retry
//
// [Retry] wraps an operation with automatic retry for transient failures:
//
//   - Network errors
//   - 5xx server errors
//
// Callers mark an error as transient by wrapping it in [RetryableError];
// anything else (a 404, a decode error) is returned immediately:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    ...
//	})
//
// [RetryAttempts] passes the attempt index to the operation, which the
// fetcher uses to switch from the mirror to the origin registry on the
// final attempt.
package httputil
