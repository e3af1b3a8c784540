package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing structured log lines.
// Per-request and per-download events are logged at debug level.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks that log through logger, or log.Default() if nil.
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.Default()
	}
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnFetchStart(_ context.Context, url string) {
	h.logger.Debug("fetching", "url", url)
}

func (h *LogHooks) OnFallback(_ context.Context, url, origin string, reason error) {
	h.logger.Debug("falling back to origin", "url", url, "origin", origin, "reason", reason)
}

func (h *LogHooks) OnFetchComplete(_ context.Context, url string, size int64, d time.Duration, err error) {
	if err != nil {
		h.logger.Warn("fetch failed", "url", url, "error", err)
		return
	}
	h.logger.Debug("fetched", "url", url, "bytes", size, "took", d.Round(time.Millisecond))
}

func (h *LogHooks) OnRequest(_ context.Context, method, path string, status int, d time.Duration) {
	h.logger.Debug("registry request", "method", method, "path", path, "status", status, "took", d.Round(time.Microsecond))
}

func (h *LogHooks) OnReindex(_ context.Context, packages, files int, d time.Duration) {
	h.logger.Info("registry indexed", "packages", packages, "files", files, "took", d.Round(time.Millisecond))
}

func (h *LogHooks) OnRoundStart(_ context.Context, round int) {
	h.logger.Info("install round", "round", round)
}

func (h *LogHooks) OnRoundComplete(_ context.Context, round, missing, fresh, supplied int) {
	h.logger.Info("round analysed", "round", round, "missing", missing, "new", fresh, "supplied", supplied)
}

func (h *LogHooks) OnOutcome(_ context.Context, outcome string, rounds int) {
	h.logger.Info("repair finished", "outcome", outcome, "rounds", rounds)
}

var (
	_ FetchHooks    = (*LogHooks)(nil)
	_ RegistryHooks = (*LogHooks)(nil)
	_ RepairHooks   = (*LogHooks)(nil)
)
