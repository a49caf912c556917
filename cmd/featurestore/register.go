package main

import (
	"github.com/spf13/cobra"

	"github.com/Priya8975/feature-materializer/internal/app"
)

func newRegisterCmd() *cobra.Command {
	var override bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Validate and register the declarative feature definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Registration persists definitions when the offline store is
			// configured; without one it validates in-memory only.
			a, err := app.Open(ctx, cfg, logger, app.Options{
				NeedOffline:   cfg.OfflineStoreURL != "",
				MigrationsDir: "migrations",
			})
			if err != nil {
				return err
			}
			defer a.Close()

			return a.RegisterFromFile(ctx, cfg.FeaturesPath, override)
		},
	}

	cmd.Flags().BoolVar(&override, "override", false, "replace conflicting registered feature definitions")
	return cmd
}
