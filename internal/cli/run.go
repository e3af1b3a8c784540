package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/config"
	"github.com/matzehuels/lockmirror/pkg/installer"
	"github.com/matzehuels/lockmirror/pkg/pipeline"
)

// runCommand creates the run command: both phases, end to end.
func (c *CLI) runCommand() *cobra.Command {
	var (
		port         int
		maxRounds    int
		skipDownload bool
		echo         bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mirror the lockfile and install from the local registry",
		Long: `Run downloads every artifact the project lockfile pins into the artifact
store, starts a local registry over the store and runs the installer
against it. Packages the installer reports missing are resolved, fetched
and served on the next round until the install succeeds or stops making
progress. The lockfile is restored when the run ends. Installer output
goes to the round logs; --echo also copies it to stderr.

Exit codes: 0 installed, 1 installer failed, 2 fatal error, 3 no progress,
4 round limit reached, 5 unfixable packages, 6 reindex failed, 130 interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dir, err := c.loadConfig(func(cfg *config.Config) {
				if cmd.Flags().Changed("port") {
					cfg.Registry.Port = port
				}
				if cmd.Flags().Changed("max-rounds") {
					cfg.Repair.MaxRounds = maxRounds
				}
				if skipDownload {
					cfg.Download.Skip = true
				}
			})
			if err != nil {
				return &ExitError{Code: pipeline.ExitFatal, Err: err}
			}

			exec := installerExecutor(echo, cmd.ErrOrStderr())
			runner, err := c.newRunner(cmd.Context(), cfg, dir, exec)
			if err != nil {
				return &ExitError{Code: pipeline.ExitFatal, Err: err}
			}
			defer runner.Close()

			prog := newProgress(c.Logger)
			run, err := runner.Execute(cmd.Context())
			prog.done("run finished")
			printRunSummary(run, cfg)

			if err != nil || run.ExitCode != 0 {
				return &ExitError{Code: run.ExitCode, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 4874, "local registry port (0 picks a free port)")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 200, "maximum installer rounds")
	cmd.Flags().BoolVar(&skipDownload, "skip-download", false, "skip the lockfile download phase")
	cmd.Flags().BoolVar(&echo, "echo", false, "copy installer output to stderr")

	return cmd
}

// installerExecutor returns the executor for run. Installer output is
// copied to w only when echo is set.
func installerExecutor(echo bool, w io.Writer) installer.ProcessExecutor {
	var exec installer.ProcessExecutor
	if echo {
		exec.Echo = w
	}
	return exec
}

// downloadCommand creates the download command: phase 1 only.
func (c *CLI) downloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download every artifact the lockfile pins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dir, err := c.loadConfig()
			if err != nil {
				return &ExitError{Code: pipeline.ExitFatal, Err: err}
			}
			runner, err := c.newRunner(cmd.Context(), cfg, dir, nil)
			if err != nil {
				return &ExitError{Code: pipeline.ExitFatal, Err: err}
			}
			defer runner.Close()

			prog := newProgress(c.Logger)
			dl, err := runner.Download(cmd.Context())
			if err != nil {
				if cmd.Context().Err() != nil {
					return &ExitError{Code: pipeline.ExitInterrupted, Err: err}
				}
				return &ExitError{Code: pipeline.ExitFatal, Err: err}
			}
			prog.done("download finished")
			printDownloadSummary(dl, cfg.Download)
			return nil
		},
	}
}
