// Package cli implements the dotbot command line. Every subcommand runs
// the same operation as its MCP tool and prints the envelope either as
// JSON (--json) or as styled text.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/server"
	"github.com/HendryAvila/dotbot/internal/tools"
	"github.com/HendryAvila/dotbot/internal/updater"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Source is the audit source stamped on envelopes produced by the CLI.
const Source = "cli"

// ErrStatus is returned when an operation's envelope has status error.
// The envelope has already been printed; callers only set the exit code.
var ErrStatus = errors.New("operation reported errors")

// app carries the state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfg     config.Config
	tools   *tools.Toolset
	jsonOut bool
}

// NewRootCmd builds the dotbot command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	config.SetDefaults(a.v, "")

	cmd := &cobra.Command{
		Use:   "dotbot",
		Short: "Repository introspection for .bot-managed repositories",
		Long: `dotbot discovers the projects in a repository, keeps a metadata
registry for them, analyzes the documents under .bot/ and runs tiered
health checks. Run "dotbot serve" to expose the same operations over MCP.`,
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("root", "", "Repository root (default: nearest directory with .bot/)")
	flags.String("data-dir", "", "Directory for the health history database")
	flags.BoolP("verbose", "v", false, "Show details and recommendations")
	flags.BoolVar(&a.jsonOut, "json", false, "Print the raw response envelope as JSON")
	bindFlag(a.v, "root", flags.Lookup("root"))
	bindFlag(a.v, "data_dir", flags.Lookup("data-dir"))
	bindFlag(a.v, "verbose", flags.Lookup("verbose"))

	cmd.AddCommand(
		a.serveCmd(),
		a.projectsCmd(),
		a.projectCmd(),
		a.registerCmd(),
		a.unregisterCmd(),
		a.frontmatterCmd(),
		a.refsCmd(),
		a.healthCmd(),
		a.historyCmd(),
		versionCmd(),
	)
	return cmd
}

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if err := v.BindPFlag(key, f); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", key, err))
	}
}

// load resolves the configuration once flags are parsed.
func (a *app) load() error {
	cfg, err := config.Load(a.v)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	a.cfg = cfg
	a.tools = tools.NewToolset(cfg, Source, nil)
	return nil
}

// emit prints env and maps an error status to ErrStatus.
func (a *app) emit(w io.Writer, env *tools.Envelope) error {
	var err error
	if a.jsonOut {
		err = writeJSON(w, env)
	} else {
		err = newPrinter(w, a.cfg.Verbose).envelope(env)
	}
	if err != nil {
		return err
	}
	if env.Status == tools.StatusError {
		return ErrStatus
	}
	return nil
}

func versionCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dotbot v%s\n", server.Version)
			if !check {
				return nil
			}
			res, err := updater.Check(cmd.Context(), server.Version)
			if err != nil {
				return fmt.Errorf("checking for updates: %w", err)
			}
			if res.UpdateAvailable {
				fmt.Fprintf(out, "dotbot v%s is available: %s\n", res.LatestVersion, res.ReleaseURL)
			} else {
				fmt.Fprintln(out, "Up to date.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
