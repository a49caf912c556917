package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Priya8975/feature-materializer/internal/api"
	"github.com/Priya8975/feature-materializer/internal/app"
	"github.com/Priya8975/feature-materializer/internal/online"
)

func newServeCmd() *cobra.Command {
	var override bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the online feature lookup API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := app.Open(ctx, cfg, logger, app.Options{
				NeedOnline:    true,
				NeedOffline:   cfg.OfflineStoreURL != "",
				MigrationsDir: "migrations",
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.RegisterFromFile(ctx, cfg.FeaturesPath, override); err != nil {
				return err
			}

			lookup := online.NewLookup(a.Online.Client(), logger)
			router := api.NewRouter(a.Registry, lookup, a.Offline)

			server := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				logger.Info("lookup service starting", "port", cfg.Port)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "error", err)
					os.Exit(1)
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			logger.Info("shutting down lookup service...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return err
			}

			logger.Info("lookup service stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&override, "override", false, "replace conflicting registered feature definitions")
	return cmd
}
