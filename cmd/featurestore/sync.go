package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Priya8975/feature-materializer/internal/app"
)

func newSyncCmd() *cobra.Command {
	var (
		features []string
		override bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the latest per-entity feature values to the online store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Open(ctx, cfg, logger, app.Options{NeedOnline: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.RegisterFromFile(ctx, cfg.FeaturesPath, override); err != nil {
				return err
			}

			report, runErr := a.SyncOnline(ctx, features, time.Now().UTC())
			if report != nil {
				printJSON(map[string]any{"online": report})
			}
			return runErr
		},
	}

	cmd.Flags().StringSliceVar(&features, "features", nil, "feature names to sync (default: all registered)")
	cmd.Flags().BoolVar(&override, "override", false, "replace conflicting registered feature definitions")

	return cmd
}
