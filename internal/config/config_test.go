package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ComputeTarget != TargetLocal {
		t.Errorf("compute target = %q", cfg.ComputeTarget)
	}
	if cfg.NumWorkers != 8 || cfg.Port != "8080" {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "featurestore.yaml")
	yaml := `
project: churn-prod
compute_target: databricks
offline_store_url: postgres://file/db
online_store_url: redis://file:6379
num_workers: 4
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	// Environment wins over the file.
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("NUM_WORKERS", "16")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Project != "churn-prod" || cfg.ComputeTarget != TargetDatabricks {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.OfflineStoreURL != "postgres://env/db" {
		t.Errorf("env override lost: %q", cfg.OfflineStoreURL)
	}
	if cfg.NumWorkers != 16 {
		t.Errorf("num_workers = %d", cfg.NumWorkers)
	}
	if cfg.OnlineStoreURL != "redis://file:6379" {
		t.Errorf("online url = %q", cfg.OnlineStoreURL)
	}
	// Registry falls back to the offline store.
	if cfg.RegistryURL != "postgres://env/db" {
		t.Errorf("registry url = %q", cfg.RegistryURL)
	}
}

func TestLoad_InvalidComputeTarget(t *testing.T) {
	t.Setenv("FS_COMPUTE_TARGET", "mainframe")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown compute target")
	}
}

func TestLoad_SwappingComputeTargetKeepsSemantics(t *testing.T) {
	// The target selects execution placement only; nothing else in the
	// config may change with it.
	t.Setenv("FS_COMPUTE_TARGET", "emr")
	a, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv("FS_COMPUTE_TARGET", "local")
	b, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	a.ComputeTarget = b.ComputeTarget
	if *a != *b {
		t.Errorf("compute target changed unrelated config: %+v vs %+v", a, b)
	}
}
