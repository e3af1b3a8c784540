package integrations

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const httpTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for registry requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// EncodePackageName returns name in the form used as a single registry path
// segment: the scope separator of "@scope/name" becomes "%2F".
func EncodePackageName(name string) string {
	return strings.ReplaceAll(name, "/", "%2F")
}

// DecodePackageName reverses [EncodePackageName], accepting either case of
// the escape.
func DecodePackageName(segment string) string {
	segment = strings.ReplaceAll(segment, "%2F", "/")
	return strings.ReplaceAll(segment, "%2f", "/")
}

// UnscopedName returns the part of name after the scope, or name itself.
func UnscopedName(name string) string {
	if strings.HasPrefix(name, "@") {
		if i := strings.IndexByte(name, '/'); i >= 0 {
			return name[i+1:]
		}
	}
	return name
}

// JoinURL joins a base URL and a path without doubling slashes.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
