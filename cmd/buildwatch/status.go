package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildwatch/buildwatch/config"
	"github.com/buildwatch/buildwatch/store"
	"github.com/buildwatch/buildwatch/store/sqlite"
)

// statusCmd reads the last recorded outcome per project from the database.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last recorded outcome per project",
	Long: `Show the most recent polling outcome recorded for each configured
project and tracker, read from the database. No requests are issued.

Requires a config with a database path; in-memory runs leave nothing
behind to query.

Exit codes:
  0 - Outcomes printed (projects never polled show "no outcome")
  1 - Config invalid or database unreadable

Example:
  buildwatch status -c config.yaml`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = statusCmd.MarkFlagRequired("config")
}

func runStatus(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == "" {
		return errors.New("status requires a database path in the config")
	}

	ctx := context.Background()
	st, err := sqlite.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	for _, pc := range append(append([]config.ProjectConfig{}, cfg.Projects...), cfg.Trackers...) {
		o, err := st.LastOutcome(ctx, pc.Key)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("-     %-20s no outcome recorded\n", pc.Key)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read outcome for %q: %w", pc.Key, err)
		}
		if o.OK {
			fmt.Printf("ok    %-20s %d jobs at %s\n",
				o.Key, o.Jobs, o.ObservedAt.Format(time.RFC3339))
		} else {
			fmt.Printf("FAIL  %-20s %s at %s\n",
				o.Key, o.Detail, o.ObservedAt.Format(time.RFC3339))
		}
	}

	return nil
}
