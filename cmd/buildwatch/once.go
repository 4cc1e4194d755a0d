package main

import (
	"context"
	"fmt"
	"os/signal"
	"sort"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/buildwatch/buildwatch"
	"github.com/buildwatch/buildwatch/config"
)

// onceCmd runs a single polling pass of each cadence and prints the
// outcomes.
var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one polling pass and exit",
	Long: `Run exactly one CI tick and one tracker tick, wait for every issued
request to resolve, print a per-project outcome summary, and exit.

Useful for operational verification of a config before deploying it,
and for cron-style one-shot polling.

Exit codes:
  0 - every workload completed
  1 - at least one workload failed, or the run was interrupted

Example:
  buildwatch once -c config.yaml`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)

	onceCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = onceCmd.MarkFlagRequired("config")
}

func runOnce(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var mu sync.Mutex
	var outcomes []buildwatch.Outcome

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build options: %w", err)
	}
	opts = append(opts,
		buildwatch.WithLogger(logger),
		buildwatch.WithOutcomeCallback(func(o buildwatch.Outcome) {
			mu.Lock()
			outcomes = append(outcomes, o)
			mu.Unlock()
		}),
	)

	w, err := buildwatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.RunOnce(ctx); err != nil {
		return fmt.Errorf("polling pass interrupted: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(outcomes, func(i, k int) bool {
		return outcomes[i].ProjectKey < outcomes[k].ProjectKey
	})

	failed := 0
	for _, o := range outcomes {
		if o.Completed {
			fmt.Printf("ok    %-20s %d jobs\n", o.ProjectKey, len(o.Results))
		} else {
			failed++
			fmt.Printf("FAIL  %-20s %v\n", o.ProjectKey, o.Err)
		}
	}
	fmt.Printf("%d polled, %d failed\n", len(outcomes), failed)

	if failed > 0 {
		return fmt.Errorf("%d workload(s) failed", failed)
	}
	return nil
}
