// Package cli implements the lockmirror command-line interface.
//
// # Commands
//
//   - run: mirror every artifact of the project lockfile, then install
//     through the local registry, supplying whatever the installer misses
//   - download: the mirroring phase on its own
//   - serve: run the local registry over artifact directories
//   - rewrite: point an npm lockfile at a registry, or restore it
//   - resolve: show which version and tarball a range resolves to
//   - cache: manage the packument cache
//
// Every command reads lockmirror.toml from the project directory (--dir)
// and accepts --verbose for debug logging.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/buildinfo"
	"github.com/matzehuels/lockmirror/pkg/cache"
	"github.com/matzehuels/lockmirror/pkg/config"
	"github.com/matzehuels/lockmirror/pkg/installer"
	"github.com/matzehuels/lockmirror/pkg/observability"
	"github.com/matzehuels/lockmirror/pkg/pipeline"
	"github.com/matzehuels/lockmirror/pkg/report"
)

const appName = "lockmirror"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	dir        string
	configPath string
	noCache    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "lockmirror mirrors npm lockfiles for offline installs",
		Long:          `lockmirror downloads every package a lockfile pins, serves them from a local registry and drives the installer against it, fetching whatever the installer still reports missing.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.dir, "dir", "C", ".", "project directory")
	pf.StringVar(&c.configPath, "config", "", "configuration file (default <dir>/"+config.FileName+")")
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the packument cache")

	root.AddCommand(c.runCommand())
	root.AddCommand(c.downloadCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.rewriteCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the configuration of the project directory, applies
// overrides, resolves relative paths and validates the result.
func (c *CLI) loadConfig(overrides ...func(*config.Config)) (config.Config, string, error) {
	dir, err := filepath.Abs(c.dir)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("resolve %s: %w", c.dir, err)
	}
	path := c.configPath
	if path == "" {
		path = filepath.Join(dir, config.FileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, dir, err
	}
	if c.noCache {
		cfg.Cache.Backend = config.BackendNone
	}
	for _, o := range overrides {
		o(&cfg)
	}
	cfg = cfg.Resolve(dir)
	if err := cfg.Validate(); err != nil {
		return cfg, dir, err
	}
	c.Logger.Debug("configuration loaded", "path", path, "dir", dir)
	return cfg, dir, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner wired to the configured cache and
// report backends.
func (c *CLI) newRunner(ctx context.Context, cfg config.Config, dir string, exec installer.Executor) (*pipeline.Runner, error) {
	ch, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	sink, err := report.Open(ctx, cfg.Report)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return pipeline.NewRunner(cfg, dir,
		pipeline.WithLogger(c.Logger),
		pipeline.WithCache(ch),
		pipeline.WithReportSink(sink),
		pipeline.WithHooks(observability.NewLogHooks(c.Logger)),
		pipeline.WithExecutor(exec),
	), nil
}

// =============================================================================
// Exit Status
// =============================================================================

// ExitError carries a process exit status out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
