package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "STORE_DRIVER", "SERVER_ADDR", "LOG_MODE", "IMPORT_WORKERS", "IMPORT_SUBMIT_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Import.Workers != 1 {
		t.Fatalf("Workers: want=1 got=%d", cfg.Import.Workers)
	}
	if cfg.Import.SubmitTimeout != 10*time.Second {
		t.Fatalf("SubmitTimeout: want=10s got=%s", cfg.Import.SubmitTimeout)
	}
	if len(cfg.Import.RequiredFields) != 1 || cfg.Import.RequiredFields[0] != "CustomerName" {
		t.Fatalf("RequiredFields: got %v", cfg.Import.RequiredFields)
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Fatalf("Driver: want=%q got=%q", DriverPostgres, cfg.Store.Driver)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
store:
  driver: memory
  seed_customers: [Acme, Globex]
import:
  delimiter: tab
  workers: 4
  submit_timeout: 3s
  required_fields: []
inbox:
  report_format: xml
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Fatalf("Driver: want=%q got=%q", DriverMemory, cfg.Store.Driver)
	}
	if len(cfg.Store.SeedCustomers) != 2 {
		t.Fatalf("SeedCustomers: got %v", cfg.Store.SeedCustomers)
	}
	if cfg.Import.Workers != 4 {
		t.Fatalf("Workers: want=4 got=%d", cfg.Import.Workers)
	}
	if cfg.Import.SubmitTimeout != 3*time.Second {
		t.Fatalf("SubmitTimeout: want=3s got=%s", cfg.Import.SubmitTimeout)
	}
	if len(cfg.Import.RequiredFields) != 0 {
		t.Fatalf("RequiredFields: want empty got %v", cfg.Import.RequiredFields)
	}
	comma, err := cfg.Import.Comma()
	if err != nil || comma != '\t' {
		t.Fatalf("Comma: want=tab got=%q err=%v", comma, err)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "import:\n  workers: 2\n")
	t.Setenv("IMPORT_WORKERS", "8")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/invoices")
	t.Setenv("IMPORT_SUBMIT_TIMEOUT", "250ms")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Import.Workers != 8 {
		t.Fatalf("Workers: want=8 got=%d", cfg.Import.Workers)
	}
	if cfg.Store.DatabaseURL != "postgres://u:p@db:5432/invoices" {
		t.Fatalf("DatabaseURL: got %q", cfg.Store.DatabaseURL)
	}
	if cfg.Import.SubmitTimeout != 250*time.Millisecond {
		t.Fatalf("SubmitTimeout: want=250ms got=%s", cfg.Import.SubmitTimeout)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"driver":    "store:\n  driver: mysql\n",
		"workers":   "import:\n  workers: -1\n",
		"delimiter": "import:\n  delimiter: ab\n",
		"encoding":  "import:\n  encoding: EBCDIC\n",
		"format":    "inbox:\n  report_format: csv\n",
		"yaml":      "import: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("Load: expected error, got nil")
			}
		})
	}
}

func TestBadEnvValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMPORT_WORKERS", "many")
	if _, err := Load(""); err == nil {
		t.Fatalf("Load: expected error for IMPORT_WORKERS=many")
	}
}
