package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: postgres://localhost/splitbill
jwt:
  secret: test-secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Mail.SearchWindowDays != 14 {
		t.Errorf("search window = %d, want 14", cfg.Mail.SearchWindowDays)
	}
	if !cfg.Billing.Tolerance().Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("tolerance = %s, want 0.01", cfg.Billing.Tolerance())
	}
}

func TestLoadZeroTolerance(t *testing.T) {
	// An explicit zero is exact-match-only and must not be promoted to the
	// default
	path := writeConfig(t, `
database:
  dsn: postgres://localhost/splitbill
jwt:
  secret: test-secret
billing:
  match_tolerance: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !cfg.Billing.Tolerance().IsZero() {
		t.Errorf("tolerance = %s, want 0", cfg.Billing.Tolerance())
	}
}

func TestLoadMissingRequired(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: test-secret
`)

	if _, err := Load(path); err == nil {
		t.Error("expected error for missing database.dsn")
	}
}
