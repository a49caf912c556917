package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Priya8975/feature-materializer/internal/config"
	"github.com/Priya8975/feature-materializer/internal/domain"
)

var (
	cfgPath string
	logger  *slog.Logger
)

func main() {
	logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

	root := &cobra.Command{
		Use:           "featurestore",
		Short:         "Point-in-time correct feature materialization engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file")

	root.AddCommand(
		newRegisterCmd(),
		newMaterializeCmd(),
		newSyncCmd(),
		newServeCmd(),
	)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", "error", err)

		// Partial writes exit with a distinct status; the JSON report was
		// already printed by the command.
		var pw *domain.PartialWriteError
		if errors.As(err, &pw) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := cfgPath
	if path == "" {
		if _, err := os.Stat("featurestore.yaml"); err == nil {
			path = "featurestore.yaml"
		}
	}
	return config.Load(path)
}
