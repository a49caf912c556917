package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ComputeTarget selects where batch materialization runs. It never changes
// feature semantics, only executor placement and parallelism defaults.
type ComputeTarget string

const (
	TargetLocal      ComputeTarget = "local"
	TargetSynapse    ComputeTarget = "synapse"
	TargetDatabricks ComputeTarget = "databricks"
	TargetEMR        ComputeTarget = "emr"
)

func (t ComputeTarget) Valid() bool {
	switch t {
	case TargetLocal, TargetSynapse, TargetDatabricks, TargetEMR:
		return true
	}
	return false
}

// Config holds all configuration for the engine.
type Config struct {
	Project       string        `yaml:"project"`
	ComputeTarget ComputeTarget `yaml:"compute_target"`
	Port          string        `yaml:"port"`

	// OfflineStoreURL is the Postgres DSN for the offline snapshot store.
	// RegistryURL defaults to the same database when empty.
	OfflineStoreURL string `yaml:"offline_store_url"`
	RegistryURL     string `yaml:"registry_url"`

	// OnlineStoreURL is the Redis URL for the low-latency store.
	OnlineStoreURL string `yaml:"online_store_url"`

	// SourceDir is where columnar event segments live.
	SourceDir string `yaml:"source_dir"`

	// FeaturesPath is the declarative feature/anchor definition file.
	FeaturesPath string `yaml:"features_path"`

	NumWorkers int `yaml:"num_workers"`
}

// Load reads the YAML config file (optional) and applies environment
// variable overrides, then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Project:       "churn-demo",
		ComputeTarget: TargetLocal,
		Port:          "8080",
		SourceDir:     "data",
		FeaturesPath:  "features.yaml",
		NumWorkers:    8,
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.Project = getEnv("FS_PROJECT", cfg.Project)
	cfg.ComputeTarget = ComputeTarget(getEnv("FS_COMPUTE_TARGET", string(cfg.ComputeTarget)))
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.OfflineStoreURL = getEnv("DATABASE_URL", cfg.OfflineStoreURL)
	cfg.RegistryURL = getEnv("REGISTRY_URL", cfg.RegistryURL)
	cfg.OnlineStoreURL = getEnv("REDIS_URL", cfg.OnlineStoreURL)
	cfg.SourceDir = getEnv("FS_SOURCE_DIR", cfg.SourceDir)
	cfg.FeaturesPath = getEnv("FS_FEATURES_PATH", cfg.FeaturesPath)
	cfg.NumWorkers = getEnvInt("NUM_WORKERS", cfg.NumWorkers)

	if cfg.RegistryURL == "" {
		cfg.RegistryURL = cfg.OfflineStoreURL
	}

	if !cfg.ComputeTarget.Valid() {
		return nil, fmt.Errorf("unknown compute target %q", cfg.ComputeTarget)
	}
	if cfg.NumWorkers < 1 {
		return nil, fmt.Errorf("num_workers must be at least 1, got %d", cfg.NumWorkers)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
