package main

import (
	"fmt"
	"os"

	"github.com/cuemby/swarmroll/pkg/client"
	"github.com/cuemby/swarmroll/pkg/types"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// Service commands
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the service registry of a swarmroll server",
}

var serviceAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repository, _ := cmd.Flags().GetString("repository")
		tag, _ := cmd.Flags().GetString("tag")

		c, err := client.New(cfg.ServerURL)
		if err != nil {
			return err
		}
		service, err := c.CreateService(cmd.Context(), args[0], repository, tag)
		if err != nil {
			return fmt.Errorf("failed to register service: %w", err)
		}
		fmt.Printf("✓ Service registered: %s (%s)\n", service.Name, service.Image())
		return nil
	},
}

var serviceSetCmd = &cobra.Command{
	Use:   "set NAME",
	Short: "Change the repository or tag of a registered service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(cfg.ServerURL)
		if err != nil {
			return err
		}

		existing, err := c.GetService(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get service: %w", err)
		}
		repository, tag := existing.Repository, existing.Tag
		if cmd.Flags().Changed("repository") {
			repository, _ = cmd.Flags().GetString("repository")
		}
		if cmd.Flags().Changed("tag") {
			tag, _ = cmd.Flags().GetString("tag")
		}

		service, err := c.UpdateService(cmd.Context(), args[0], repository, tag)
		if err != nil {
			return fmt.Errorf("failed to update service: %w", err)
		}
		fmt.Printf("✓ Service updated: %s (%s)\n", service.Name, service.Image())
		return nil
	},
}

var serviceRemoveCmd = &cobra.Command{
	Use:     "rm NAME",
	Aliases: []string{"remove"},
	Short:   "Unregister a service",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(cfg.ServerURL)
		if err != nil {
			return err
		}
		if err := c.DeleteService(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to unregister service: %w", err)
		}
		fmt.Printf("✓ Service unregistered: %s\n", args[0])
		return nil
	},
}

var serviceListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List registered services",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(cfg.ServerURL)
		if err != nil {
			return err
		}
		services, err := c.ListServices(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list services: %w", err)
		}
		if len(services) == 0 {
			fmt.Println("No services registered")
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"NAME", "REPOSITORY", "TAG", "UPDATED"})
		for _, svc := range services {
			t.AppendRow(table.Row{svc.Name, svc.Repository, svc.Tag, svc.UpdatedAt.Format("2006-01-02 15:04:05")})
		}
		t.Render()
		return nil
	},
}

var serviceStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registered services and whether they run on the platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(cfg.ServerURL)
		if err != nil {
			return err
		}
		statuses, err := c.ServiceStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get service status: %w", err)
		}
		if len(statuses) == 0 {
			fmt.Println("No services registered")
			return nil
		}

		t := newTable()
		t.AppendHeader(table.Row{"NAME", "IMAGE", "STATUS"})
		for _, s := range statuses {
			t.AppendRow(table.Row{s.Name, s.Image(), activeLabel(s)})
		}
		t.Render()
		return nil
	},
}

func init() {
	serviceCmd.AddCommand(serviceAddCmd)
	serviceCmd.AddCommand(serviceSetCmd)
	serviceCmd.AddCommand(serviceRemoveCmd)
	serviceCmd.AddCommand(serviceListCmd)
	serviceCmd.AddCommand(serviceStatusCmd)

	serviceAddCmd.Flags().String("repository", "", "Image repository without a tag")
	serviceAddCmd.Flags().String("tag", "latest", "Image tag to roll out")
	_ = serviceAddCmd.MarkFlagRequired("repository")

	serviceSetCmd.Flags().String("repository", "", "New image repository")
	serviceSetCmd.Flags().String("tag", "", "New image tag")
	serviceSetCmd.MarkFlagsOneRequired("repository", "tag")
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

func activeLabel(s types.ServiceStatus) string {
	if s.Active {
		return text.FgGreen.Sprint("active")
	}
	return text.FgYellow.Sprint("not running")
}
