package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cuemby/swarmroll/pkg/api"
	"github.com/cuemby/swarmroll/pkg/events"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [SERVICE...]",
	Short: "Roll out registered services directly against the local Docker daemon",
	Long: `Roll out the named services, or every registered service when none are
named, without going through a server. The outcome is printed as the same
JSON payload the webhook returns.

Examples:
  # Update every registered service
  swarmroll update

  # Update two services as one unit
  swarmroll update api web`,
	RunE: runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	p, closer, err := openPlatform(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	result, err := newDeployer(cfg, store, events.Discard).Rollout(ctx, p, args)
	if err != nil {
		return err
	}

	if err := printJSON(api.DeployResponse{
		Payload:   result.Payload(),
		RolloutID: result.RolloutID,
		Skipped:   result.Skipped,
	}); err != nil {
		return err
	}
	if !result.Succeeded() {
		return fmt.Errorf("rollout %s: %s", result.RolloutID, result.Kind)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
