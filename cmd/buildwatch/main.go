// Package main is the entry point for the buildwatch CLI.
//
// buildwatch can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	buildwatch serve -c config.yaml    # Start continuous polling
//	buildwatch once -c config.yaml     # One polling pass of each cadence
//	buildwatch validate -c config.yaml # Validate configuration
//	buildwatch version                 # Show version info
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "buildwatch",
	Short: "A CI build-status polling daemon",
	Long: `buildwatch continuously polls CI backends for the build status of
tracked projects and, on a separate cadence, polls issue-tracking
backends for validation. Every polling cycle's outcome is recorded
to the configured store.

Quick start:
  1. Create a config file (buildwatch.yaml)
  2. Run: buildwatch serve -c buildwatch.yaml

Example config:
  poll_interval: 30s
  tracker_interval: 5m
  projects:
    - key: website
      kind: basic
      urls: [ci.example.com/feed, ci.example.com/status]
      username: ${CI_USER}
      password: ${CI_PASS}`,
}

// newLogger creates a JSON logger for CLI use.
func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this buildwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("buildwatch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
