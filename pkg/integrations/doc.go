// Package integrations provides the HTTP client shared by registry API
// clients and the artifact fetcher.
//
// # Client Pattern
//
// Registry clients embed [Client] and follow a consistent pattern:
//
//	client := npm.NewClient(c, 24*time.Hour)
//	doc, err := client.FetchPackument(ctx, "https://registry.npmjs.org", "express", false)
//
// [Client] handles:
//   - HTTP requests with retry for transient failures
//   - Response caching through [cache.Cache] with a configurable TTL
//   - Status classification: 200 ok, 404 [ErrNotFound], 5xx retryable [ErrNetwork]
//
// # Package names
//
// npm addresses scoped packages ("@scope/name") as one path segment with the
// slash percent-encoded. [EncodePackageName] and [DecodePackageName] convert
// between the two forms.
package integrations
