package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/cuemby/swarmroll/pkg/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Register or update services from a YAML file",
	Long: `Apply a list of service registrations from a YAML file. Services that
already exist are updated, the rest are created. Services missing from the
file are left untouched.

Example file:

  services:
    - name: api
      repository: registry.local/team/api
      tag: v2.1.0
    - name: web
      repository: registry.local/team/web
      tag: v2.1.0

Examples:
  swarmroll apply -f services.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

// ServiceFile is the document read by apply
type ServiceFile struct {
	Services []ServiceEntry `yaml:"services"`
}

// ServiceEntry is one service registration in a ServiceFile
type ServiceEntry struct {
	Name       string `yaml:"name"`
	Repository string `yaml:"repository"`
	Tag        string `yaml:"tag"`
}

func loadServiceFile(filename string) (*ServiceFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file ServiceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Services))
	for i, entry := range file.Services {
		if entry.Name == "" {
			return nil, fmt.Errorf("service #%d has no name", i+1)
		}
		if seen[entry.Name] {
			return nil, fmt.Errorf("service %s is listed twice", entry.Name)
		}
		seen[entry.Name] = true
	}
	return &file, nil
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	file, err := loadServiceFile(filename)
	if err != nil {
		return err
	}

	c, err := client.New(cfg.ServerURL)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	for _, entry := range file.Services {
		_, err := c.GetService(ctx, entry.Name)
		var apiErr *client.Error
		switch {
		case err == nil:
			if _, err := c.UpdateService(ctx, entry.Name, entry.Repository, entry.Tag); err != nil {
				return fmt.Errorf("failed to update service %s: %w", entry.Name, err)
			}
			fmt.Printf("✓ Service updated: %s (%s:%s)\n", entry.Name, entry.Repository, entry.Tag)
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
			if _, err := c.CreateService(ctx, entry.Name, entry.Repository, entry.Tag); err != nil {
				return fmt.Errorf("failed to create service %s: %w", entry.Name, err)
			}
			fmt.Printf("✓ Service created: %s (%s:%s)\n", entry.Name, entry.Repository, entry.Tag)
		default:
			return fmt.Errorf("failed to get service %s: %w", entry.Name, err)
		}
	}
	return nil
}
