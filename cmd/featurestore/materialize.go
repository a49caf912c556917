package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Priya8975/feature-materializer/internal/app"
)

func newMaterializeCmd() *cobra.Command {
	var (
		features   []string
		startStr   string
		endStr     string
		syncOnline bool
		override   bool
	)

	cmd := &cobra.Command{
		Use:   "materialize",
		Short: "Bulk-compute offline feature snapshots over a time range",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			start, err := parseTime(startStr)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			end, err := parseTime(endStr)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			if !end.After(start) {
				return fmt.Errorf("--end must be after --start")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Open(ctx, cfg, logger, app.Options{
				NeedOffline:   true,
				NeedOnline:    syncOnline,
				MigrationsDir: "migrations",
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.RegisterFromFile(ctx, cfg.FeaturesPath, override); err != nil {
				return err
			}

			report, runErr := a.Materialize(ctx, features, start, end)
			if report != nil {
				printJSON(map[string]any{"offline": report})
			}
			if runErr != nil {
				return runErr
			}

			if syncOnline {
				syncReport, syncErr := a.SyncOnline(ctx, features, time.Now().UTC())
				if syncReport != nil {
					printJSON(map[string]any{"online": syncReport})
				}
				if syncErr != nil {
					return syncErr
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&features, "features", nil, "feature names to materialize (default: all registered)")
	cmd.Flags().StringVar(&startStr, "start", "", "range start, RFC3339 or YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&endStr, "end", "", "range end, RFC3339 or YYYY-MM-DD (required)")
	cmd.Flags().BoolVar(&syncOnline, "sync-online", false, "push latest values to the online store after the offline run")
	cmd.Flags().BoolVar(&override, "override", false, "replace conflicting registered feature definitions")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")

	return cmd
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
