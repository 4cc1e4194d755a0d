package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildwatch/buildwatch/config"
)

// validateCmd validates a config file without polling anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a buildwatch configuration file without issuing any requests.

This command parses the YAML, expands environment variables, and
validates all fields. It's useful for CI/CD pipelines or
pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  buildwatch validate -c config.yaml
  buildwatch validate --config /etc/buildwatch/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// building the SDK projects exercises the per-kind validation too
	if _, err := config.BuildProjects(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	targets := 0
	for _, p := range cfg.Projects {
		targets += len(p.URLs)
	}
	for _, t := range cfg.Trackers {
		targets += len(t.URLs)
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Poll interval:    %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Tracker interval: %s\n", cfg.TrackerInterval.Duration())
	fmt.Printf("  Projects:         %d (+%d trackers), %d targets total\n",
		len(cfg.Projects), len(cfg.Trackers), targets)

	return nil
}
