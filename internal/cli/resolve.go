package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/cache"
	"github.com/matzehuels/lockmirror/pkg/errors"
	"github.com/matzehuels/lockmirror/pkg/fetch"
	"github.com/matzehuels/lockmirror/pkg/integrations"
	"github.com/matzehuels/lockmirror/pkg/integrations/npm"
	"github.com/matzehuels/lockmirror/pkg/lockfile"
)

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var registryURL string

	cmd := &cobra.Command{
		Use:   "resolve <name> [range]",
		Short: "Show the version and tarball a range resolves to",
		Long: `Resolve reads the packument of <name> from the metadata registry and picks
the highest published version satisfying [range] (default "latest"), the
same way missing packages are resolved during a run. It prints the
version, the tarball URL and the mirror URL it would be downloaded from.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig()
			if err != nil {
				return err
			}
			if err := errors.ValidateNpmPackageName(args[0]); err != nil {
				return err
			}
			spec := lockfile.UnresolvedSpec{Name: args[0], Range: "latest"}
			if len(args) == 2 {
				spec.Range = args[1]
			}
			if registryURL == "" {
				registryURL = cfg.Repair.MetadataRegistry
			}

			ch, err := cache.Open(cmd.Context(), cfg.Cache)
			if err != nil {
				return err
			}
			defer ch.Close()
			meta := npm.NewClient(ch, cfg.Cache.TTL.Duration, integrations.WithTimeout(cfg.Download.Timeout.Duration))
			f := fetch.New(cfg.Download, fetch.WithLogger(c.Logger), fetch.WithMetadataClient(meta))

			res, ok := f.ResolveSpec(cmd.Context(), registryURL, spec)
			if !ok {
				return errors.New(errors.ErrCodeUnresolvableRange, "no published version of %s satisfies %q", spec.Name, spec.Range)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s@%s\n", spec.Name, res.Version)
			fmt.Fprintf(out, "tarball: %s\n", res.Job.Origin)
			fmt.Fprintf(out, "mirror:  %s\n", res.Job.URL)
			fmt.Fprintf(out, "file:    %s\n", res.Job.FileName)
			return nil
		},
	}

	cmd.Flags().StringVar(&registryURL, "registry", "", "metadata registry (default from config)")
	return cmd
}
