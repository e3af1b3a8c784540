package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lockmirror/pkg/config"
	"github.com/matzehuels/lockmirror/pkg/observability"
	"github.com/matzehuels/lockmirror/pkg/registry"
)

// serveCommand creates the serve command: the local registry on its own.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve [dir...]",
		Short: "Serve artifact directories as an npm registry",
		Long: `Serve indexes the .tgz files under the given directories (default: the
configured artifact store and registry roots) and answers packument and
tarball requests until interrupted. GET /-/rescan rebuilds the index.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig(func(cfg *config.Config) {
				if cmd.Flags().Changed("port") {
					cfg.Registry.Port = port
				}
				if host != "" {
					cfg.Registry.Host = host
				}
			})
			if err != nil {
				return err
			}

			roots := cfg.RegistryRoots()
			if len(args) > 0 {
				roots = roots[:0]
				for _, a := range args {
					abs, err := filepath.Abs(a)
					if err != nil {
						return err
					}
					roots = append(roots, abs)
				}
			}

			srv := registry.NewServer(cfg.Registry, roots,
				registry.WithLogger(c.Logger),
				registry.WithHooks(observability.NewLogHooks(c.Logger)),
			)
			url, err := srv.Start(cmd.Context())
			if err != nil {
				return err
			}
			printSuccess("Serving %d artifacts of %d packages at %s", srv.Index().Len(), srv.Index().Packages(), StyleLink.Render(url))
			for _, r := range roots {
				printDetail("root: %s", r)
			}
			printNextStep("Refresh after adding files", "curl "+url+"/-/rescan")

			<-cmd.Context().Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			printInfo("Shutting down")
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 4874, "listen port (0 picks a free port)")
	cmd.Flags().StringVar(&host, "host", "", "listen address (default from config)")

	return cmd
}
