package main

import (
	"fmt"
	"net/http"

	"github.com/cuemby/swarmroll/pkg/client"
	"github.com/cuemby/swarmroll/pkg/security"
	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger [SERVICE...]",
	Short: "Send a signed deploy webhook to a swarmroll server",
	Long: `Send a deploy webhook for the named services, or for every registered
service when none are named. The body is signed with SWARMROLL_SIGNATURE_SECRET.`,
	RunE: runTrigger,
}

func init() {
	triggerCmd.Flags().String("algorithm", security.AlgorithmSHA256, "Signature algorithm: sha1 or sha256")
}

func runTrigger(cmd *cobra.Command, args []string) error {
	if cfg.SignatureSecret == "" {
		return fmt.Errorf("SWARMROLL_SIGNATURE_SECRET is required to sign the webhook")
	}
	algorithm, _ := cmd.Flags().GetString("algorithm")

	c, err := client.New(cfg.ServerURL)
	if err != nil {
		return err
	}

	resp, code, err := c.Trigger(cmd.Context(), cfg.SignatureSecret, algorithm, args)
	if err != nil {
		return err
	}
	if err := printJSON(resp); err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("rollout %s failed", resp.RolloutID)
	}
	return nil
}
