package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might affect defaults
	for _, key := range []string{"DATABASE_URL", "HTTP_PORT", "ADMIN_API_KEY", "FEE_ACCRUAL_INTERVAL", "SNAPSHOT_WORKER_INTERVAL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.FeeAccrualInterval != time.Hour {
		t.Errorf("FeeAccrualInterval = %v, want 1h", cfg.FeeAccrualInterval)
	}
	if cfg.SnapshotWorkerInterval != 24*time.Hour {
		t.Errorf("SnapshotWorkerInterval = %v, want 24h", cfg.SnapshotWorkerInterval)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/testdb")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ADMIN_API_KEY", "secret")
	t.Setenv("FEE_ACCRUAL_INTERVAL", "30m")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://localhost/testdb" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if cfg.AdminAPIKey != "secret" {
		t.Errorf("AdminAPIKey = %q, want secret", cfg.AdminAPIKey)
	}
	if cfg.FeeAccrualInterval != 30*time.Minute {
		t.Errorf("FeeAccrualInterval = %v, want 30m", cfg.FeeAccrualInterval)
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FEE_ACCRUAL_INTERVAL", "not-a-duration")

	cfg := Load()

	if cfg.FeeAccrualInterval != time.Hour {
		t.Errorf("FeeAccrualInterval = %v, want default 1h", cfg.FeeAccrualInterval)
	}
}
