package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/HendryAvila/dotbot/internal/history"
	"github.com/HendryAvila/dotbot/internal/metrics"
	dotserver "github.com/HendryAvila/dotbot/internal/server"
	"github.com/HendryAvila/dotbot/internal/tools"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// run executes op with the command's context and prints the envelope.
func (a *app) run(cmd *cobra.Command, op func(ctx context.Context) (*tools.Envelope, error)) error {
	env, err := op(cmd.Context())
	if err != nil {
		return err
	}
	return a.emit(cmd.OutOrStdout(), env)
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the MCP server on stdio. With --metrics-addr, Prometheus metrics
are also served over HTTP at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			m := metrics.New()
			s := dotserver.New(a.cfg, m)

			if addr := a.cfg.MetricsAddr; addr != "" {
				go func() {
					if err := dotserver.ServeMetrics(ctx, addr, m); err != nil {
						log.Printf("WARNING: metrics server: %v", err)
					}
				}()
			}

			return server.ServeStdio(s)
		},
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	bindFlag(a.v, "metrics_addr", cmd.Flags().Lookup("metrics-addr"))
	return cmd
}

func (a *app) projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "projects",
		Aliases: []string{"structure"},
		Short:   "List every project in the repository",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, a.tools.Structure.Run)
		},
	}
}

func (a *app) projectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project NAME",
		Short: "Show one project by name or alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) (*tools.Envelope, error) {
				return a.tools.Project.Run(ctx, args[0])
			})
		},
	}
}

func (a *app) registerCmd() *cobra.Command {
	var p tools.RegisterParams
	cmd := &cobra.Command{
		Use:   "register PROJECT",
		Short: "Create or update a project's registry entry",
		Long: `Create or update a project's entry in .bot/registry.json.

Examples:
  dotbot register Contoso.Api --alias api --tags backend,http
  dotbot register web --summary "Customer portal" --owner frontend-team
  dotbot register web --clear owner

Flags left out keep their stored values on update.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Project = args[0]
			return a.run(cmd, func(ctx context.Context) (*tools.Envelope, error) {
				return a.tools.Register.Run(ctx, p)
			})
		},
	}
	cmd.Flags().StringVar(&p.Alias, "alias", "", "Short unique alias")
	cmd.Flags().StringVar(&p.Summary, "summary", "", "One-line description")
	cmd.Flags().StringSliceVar(&p.Tags, "tags", nil, "Comma-separated tags")
	cmd.Flags().StringVar(&p.Owner, "owner", "", "Owning team or person")
	cmd.Flags().StringSliceVar(&p.Clear, "clear", nil, "Fields to reset: alias, summary, tags, owner")
	return cmd
}

func (a *app) unregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister PROJECT",
		Short: "Remove a project's registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) (*tools.Envelope, error) {
				return a.tools.Unregister.Run(ctx, args[0])
			})
		},
	}
}

func (a *app) frontmatterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frontmatter PATH",
		Short: "Parse and validate a document's front-matter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) (*tools.Envelope, error) {
				return a.tools.Frontmatter.Run(ctx, args[0])
			})
		},
	}
}

func (a *app) refsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "refs PATH",
		Aliases: []string{"references"},
		Short:   "Resolve the reference graph reachable from a document",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) (*tools.Envelope, error) {
				return a.tools.References.Run(ctx, args[0])
			})
		},
	}
}

func (a *app) healthCmd() *cobra.Command {
	var p tools.HealthCheckParams
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run the repository health check",
		Long: `Run the repository health check.

Levels:
  basic          .bot tree and state file
  standard       + artifact counts, product documents, project discovery
  comprehensive  + front-matter, reference graph, test ratio, version control`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) (*tools.Envelope, error) {
				return a.tools.Health.Run(ctx, p)
			})
		},
	}
	cmd.Flags().StringVarP(&p.Level, "level", "l", "", "basic, standard or comprehensive (default standard)")
	cmd.Flags().BoolVar(&p.Record, "record", false, "Store a summary of this run in the history database")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded health-check runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context) (*tools.Envelope, error) {
				return a.tools.History.Run(ctx, limit)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultLimit, "Maximum runs to show")
	return cmd
}
