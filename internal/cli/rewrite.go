package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
)

// rewriteCommand creates the rewrite command.
func (c *CLI) rewriteCommand() *cobra.Command {
	var restore bool

	cmd := &cobra.Command{
		Use:   "rewrite [registry-url]",
		Short: "Point an npm lockfile at a registry",
		Long: `Rewrite removes phantom entries from package-lock.json and replaces the
origin of every resolved URL with the given registry. The original is kept
next to the lockfile with the ` + lockfile.BackupSuffix + ` suffix.

With --restore the backup is put back, which also recovers a lockfile left
rewritten by an interrupted run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dir, err := c.loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Lockfile
			if path == "" {
				var dialect lockfile.Dialect
				if path, dialect, err = lockfile.Detect(dir); err != nil {
					return err
				}
				if dialect != lockfile.DialectNpm {
					return errors.New(errors.ErrCodeMalformedLockfile, "%s lockfiles are not rewritten", dialect)
				}
			}

			if restore {
				if err := lockfile.RestoreBackup(path); err != nil {
					return err
				}
				printSuccess("Restored %s", path)
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("registry url required")
			}
			base := args[0]
			if err := errors.ValidateURL(base); err != nil {
				return err
			}
			snap, err := lockfile.TakeSnapshot(path)
			if err != nil {
				return err
			}
			stats, err := lockfile.RewriteFile(path, base)
			if err != nil {
				if rerr := snap.Restore(); rerr != nil {
					c.Logger.Error("could not restore lockfile", "err", rerr)
				}
				return err
			}
			printSuccess("Rewrote %d resolved URLs in %s", stats.Rewritten, path)
			if len(stats.Phantoms) > 0 {
				printDetail("removed %d phantom entries", len(stats.Phantoms))
			}
			printDetail("backup: %s", snap.BackupPath())
			printNextStep("Undo", appName+" rewrite --restore")
			return nil
		},
	}

	cmd.Flags().BoolVar(&restore, "restore", false, "restore the lockfile from its backup")
	return cmd
}
