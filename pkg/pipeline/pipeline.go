// Package pipeline runs lockmirror end to end.
//
// A run has two phases:
//
//  1. Download: parse the project lockfile, fetch every pinned tarball into
//     the artifact store, resolve declared-but-unpinned ranges against the
//     mirror, then retry recorded failures once against their origin.
//  2. Install: serve the store as a local registry, point the lockfile at
//     it, and run the install-repair loop until the installer succeeds or
//     the loop gives up.
//
// The lockfile is restored and the registry stopped on every exit path,
// including cancellation.
//
// # Usage
//
//	runner := pipeline.NewRunner(cfg, dir, pipeline.WithLogger(logger))
//	defer runner.Close()
//	run, err := runner.Execute(ctx)
//	os.Exit(run.ExitCode)
package pipeline

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/lockmirror/pkg/cache"
	"github.com/matzehuels/lockmirror/pkg/config"
	lmerrors "github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/fetch"
	"github.com/matzehuels/lockmirror/pkg/installer"
	"github.com/matzehuels/lockmirror/pkg/integrations"
	"github.com/matzehuels/lockmirror/pkg/integrations/npm"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
	"github.com/matzehuels/lockmirror/pkg/observability"
	"github.com/matzehuels/lockmirror/pkg/report"
	"github.com/matzehuels/lockmirror/pkg/repair"
)

// Exit codes besides the repair outcomes.
const (
	// ExitFatal is used when a run cannot start or a phase fails outright:
	// no or malformed lockfile, unreachable backends, an installer that
	// cannot be executed.
	ExitFatal = 2

	// ExitInterrupted is used when the run was cancelled.
	ExitInterrupted = 130
)

// Runner executes the phases of a run for one project directory.
type Runner struct {
	cfg config.Config
	dir string

	cache  cache.Cache
	exec   installer.Executor
	sink   report.Sink
	hooks  observability.Hooks
	logger *log.Logger
}

// Option configures a [Runner].
type Option func(*Runner)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithCache sets the packument cache. The default disables caching.
func WithCache(c cache.Cache) Option {
	return func(r *Runner) { r.cache = c }
}

// WithExecutor replaces the installer executor.
func WithExecutor(e installer.Executor) Option {
	return func(r *Runner) { r.exec = e }
}

// WithReportSink sets where [Runner.Execute] writes the run report.
func WithReportSink(s report.Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithHooks sets the hooks passed to every component.
func WithHooks(h observability.Hooks) Option {
	return func(r *Runner) { r.hooks = h }
}

// NewRunner creates a runner for the project in dir. cfg should already be
// resolved against dir.
func NewRunner(cfg config.Config, dir string, opts ...Option) *Runner {
	r := &Runner{cfg: cfg, dir: dir}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	if r.cache == nil {
		r.cache = cache.NewNullCache()
	}
	if r.exec == nil {
		r.exec = installer.ProcessExecutor{}
	}
	if r.sink == nil {
		r.sink = report.NopSink{}
	}
	if r.hooks == nil {
		r.hooks = observability.NoopHooks{}
	}
	return r
}

// Config returns the configuration the runner was created with.
func (r *Runner) Config() config.Config { return r.cfg }

// Run is the result of [Runner.Execute].
type Run struct {
	Report   *report.Report
	Download *DownloadResult
	Repair   *repair.Result
	ExitCode int
}

// Execute runs both phases, skipping the download phase when configured
// to, and writes the run report. The returned error describes a fatal
// failure; the exit code is set either way.
func (r *Runner) Execute(ctx context.Context) (*Run, error) {
	run := &Run{Report: report.New(r.dir)}
	r.logger.Debug("run started", "id", run.Report.ID, "dir", r.dir)

	err := r.execute(ctx, run)
	run.ExitCode = exitCode(ctx, run, err)
	outcomeErr := err
	if outcomeErr == nil && run.Repair != nil {
		outcomeErr = run.Repair.Err
	}
	run.Report.Finish(run.ExitCode, outcomeErr)

	if werr := r.sink.Write(context.WithoutCancel(ctx), run.Report); werr != nil {
		r.logger.Warn("could not write run report", "err", werr)
	}
	return run, err
}

func (r *Runner) execute(ctx context.Context, run *Run) error {
	if r.cfg.Download.Skip {
		r.logger.Info("skipping lockfile download")
	} else {
		dl, err := r.Download(ctx)
		if dl != nil {
			run.Download = dl
			run.Report.Lockfile = dl.Lockfile.Path
			run.Report.Dialect = string(dl.Lockfile.Dialect)
			run.Report.Download = dl.Summary()
		}
		if err != nil {
			return err
		}
	}

	res, err := r.Install(ctx)
	if res != nil {
		run.Repair = res.Result
		run.Report.Repair = res.Summary()
	}
	return err
}

func exitCode(ctx context.Context, run *Run, err error) int {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		return ExitInterrupted
	case err != nil:
		return ExitFatal
	case run.Repair != nil:
		return run.Repair.Outcome.ExitCode()
	}
	return 0
}

// Close releases the packument cache and the report sink.
func (r *Runner) Close() error {
	return errors.Join(r.cache.Close(), r.sink.Close())
}

// lockfilePath returns the configured lockfile or the detected one.
func (r *Runner) lockfilePath() (string, lockfile.Dialect, error) {
	if r.cfg.Lockfile != "" {
		d, ok := lockfile.DialectOf(r.cfg.Lockfile)
		if !ok {
			return "", "", lmerrors.New(lmerrors.ErrCodeMalformedLockfile, "unrecognized lockfile name %s", r.cfg.Lockfile)
		}
		return r.cfg.Lockfile, d, nil
	}
	return lockfile.Detect(r.dir)
}

// newFetcher builds a fetcher sharing the runner's cache, logger and hooks.
func (r *Runner) newFetcher(cfg config.DownloadConfig, opts ...fetch.Option) *fetch.Fetcher {
	meta := npm.NewClient(r.cache, r.cfg.Cache.TTL.Duration,
		integrations.WithTimeout(cfg.Timeout.Duration),
		integrations.WithRetry(max(cfg.Retries, 1), cfg.RetryDelay.Duration),
	)
	base := []fetch.Option{
		fetch.WithLogger(r.logger),
		fetch.WithHooks(r.hooks),
		fetch.WithMetadataClient(meta),
	}
	return fetch.New(cfg, append(base, opts...)...)
}
