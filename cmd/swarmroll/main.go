package main

import (
	"fmt"
	"os"

	"github.com/cuemby/swarmroll/pkg/config"
	"github.com/cuemby/swarmroll/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// cfg is loaded from the environment before any subcommand runs and then
// overridden by explicitly set flags
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "swarmroll",
	Short: "swarmroll - all-or-nothing image rollouts for Docker Swarm",
	Long: `swarmroll updates a set of Docker Swarm services to the image tags
registered for them. Before an update the running images are tagged as
"previous"; if any service fails to converge, every service touched so far
is reverted to its previous image.

Rollouts are started by a signed webhook (swarmroll serve) or directly from
the command line (swarmroll update).`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"swarmroll version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Log level: debug, info, warn or error (env SWARMROLL_LOG_LEVEL)")
	flags.Bool("log-json", false, "Log as JSON instead of console output (env SWARMROLL_LOG_JSON)")
	flags.String("store", "", "Registry store: bolt or postgres (env SWARMROLL_STORE)")
	flags.String("data-dir", "", "Directory of the bolt store (env SWARMROLL_DATA_DIR)")
	flags.String("postgres-dsn", "", "Postgres connection string (env SWARMROLL_POSTGRES_DSN)")
	flags.String("server", "", "URL of a running swarmroll server (env SWARMROLL_SERVER_URL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(applyCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
	if flags.Changed("store") {
		cfg.StoreDriver, _ = flags.GetString("store")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("postgres-dsn") {
		cfg.PostgresDSN, _ = flags.GetString("postgres-dsn")
	}
	if flags.Changed("server") {
		cfg.ServerURL, _ = flags.GetString("server")
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
		Output:     os.Stderr,
	})
	return nil
}
