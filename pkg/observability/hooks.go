// Package observability provides hooks for progress reporting and metrics.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Components accept hooks through their
// constructor options and emit events about downloads, registry traffic and
// repair rounds.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Let the caller pass a custom implementation to each component
//
// Hooks are values, not globals, so independent runs (and parallel tests)
// never observe each other's instrumentation.
//
// # Usage
//
//	hooks := observability.NewLogHooks(logger)
//	f := fetch.New(cfg.Download, fetch.WithHooks(hooks))
//	srv := registry.NewServer(cfg.Registry, roots, registry.WithHooks(hooks))
package observability

import (
	"context"
	"time"
)

// =============================================================================
// Fetch Hooks
// =============================================================================

// FetchHooks receives events from the artifact fetcher.
type FetchHooks interface {
	// OnFetchStart records the start of one artifact download.
	OnFetchStart(ctx context.Context, url string)

	// OnFallback records a switch from the mirror URL to the origin URL.
	OnFallback(ctx context.Context, url, origin string, reason error)

	// OnFetchComplete records the outcome of one artifact download.
	OnFetchComplete(ctx context.Context, url string, size int64, duration time.Duration, err error)
}

// =============================================================================
// Registry Hooks
// =============================================================================

// RegistryHooks receives events from the local registry server.
type RegistryHooks interface {
	// OnRequest records a served request.
	OnRequest(ctx context.Context, method, path string, status int, duration time.Duration)

	// OnReindex records an index rebuild.
	OnReindex(ctx context.Context, packages, files int, duration time.Duration)
}

// =============================================================================
// Repair Hooks
// =============================================================================

// RepairHooks receives events from the install-repair loop.
type RepairHooks interface {
	// OnRoundStart records the start of an installer round.
	OnRoundStart(ctx context.Context, round int)

	// OnRoundComplete records the analysis of a round.
	OnRoundComplete(ctx context.Context, round, missing, fresh, supplied int)

	// OnOutcome records the terminal outcome of the loop.
	OnOutcome(ctx context.Context, outcome string, rounds int)
}

// Hooks combines every hook interface, for callers wiring a whole run.
type Hooks interface {
	FetchHooks
	RegistryHooks
	RepairHooks
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopFetchHooks is a no-op implementation of FetchHooks.
type NoopFetchHooks struct{}

func (NoopFetchHooks) OnFetchStart(context.Context, string)                                   {}
func (NoopFetchHooks) OnFallback(context.Context, string, string, error)                      {}
func (NoopFetchHooks) OnFetchComplete(context.Context, string, int64, time.Duration, error) {}

// NoopRegistryHooks is a no-op implementation of RegistryHooks.
type NoopRegistryHooks struct{}

func (NoopRegistryHooks) OnRequest(context.Context, string, string, int, time.Duration) {}
func (NoopRegistryHooks) OnReindex(context.Context, int, int, time.Duration)            {}

// NoopRepairHooks is a no-op implementation of RepairHooks.
type NoopRepairHooks struct{}

func (NoopRepairHooks) OnRoundStart(context.Context, int)                   {}
func (NoopRepairHooks) OnRoundComplete(context.Context, int, int, int, int) {}
func (NoopRepairHooks) OnOutcome(context.Context, string, int)              {}

// NoopHooks is a no-op implementation of Hooks.
type NoopHooks struct {
	NoopFetchHooks
	NoopRegistryHooks
	NoopRepairHooks
}

var (
	_ Hooks         = NoopHooks{}
	_ Hooks         = (*LogHooks)(nil)
	_ FetchHooks    = NoopFetchHooks{}
	_ RegistryHooks = NoopRegistryHooks{}
	_ RepairHooks   = NoopRepairHooks{}
)
