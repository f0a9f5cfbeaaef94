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
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.HTTPPort != 8080 || cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Simulation.Board != "uno" || cfg.Simulation.AnalysisInterval != time.Second {
		t.Fatalf("simulation = %+v", cfg.Simulation)
	}
	if cfg.Analysis.Thresholds.Overcurrent != 2 || cfg.Analysis.Thresholds.Temperature != 85 {
		t.Fatalf("thresholds = %+v", cfg.Analysis.Thresholds)
	}
	if p := cfg.Analysis.Wire.Properties(); p.Material != "copper" || p.CrossSection != 0.5 {
		t.Fatalf("wire defaults = %+v", p)
	}
	if cfg.Database.Enabled {
		t.Fatal("database must be opt-in")
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  http_port: 9090
simulation:
  board: mega
  analysis_interval: 250ms
analysis:
  thresholds:
    overcurrent: 0.5
  wire:
    material: silver
circuits:
  search_paths: [/srv/circuits]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.HTTPPort != 9090 || cfg.Simulation.Board != "mega" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Simulation.AnalysisInterval != 250*time.Millisecond {
		t.Fatalf("interval = %s", cfg.Simulation.AnalysisInterval)
	}
	if cfg.Analysis.Thresholds.Overcurrent != 0.5 || cfg.Analysis.Thresholds.Overvoltage != 6 {
		t.Fatalf("thresholds = %+v", cfg.Analysis.Thresholds)
	}
	if cfg.Analysis.Wire.Material != "silver" || cfg.Analysis.Wire.Length != 0.1 {
		t.Fatalf("wire = %+v", cfg.Analysis.Wire)
	}
	if len(cfg.Circuits.SearchPaths) != 1 || cfg.Circuits.SearchPaths[0] != "/srv/circuits" {
		t.Fatalf("search paths = %v", cfg.Circuits.SearchPaths)
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("OCC_SERVER_HTTP_PORT", "7070")
	t.Setenv("OCC_SIMULATION_BOARD", "nano")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.HTTPPort != 7070 || cfg.Simulation.Board != "nano" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
	if _, err := Load(writeConfig(t, "server:\n  http_port: 0\n")); err == nil {
		t.Fatal("zero port accepted")
	}
}

func TestAuthValidation(t *testing.T) {
	if _, err := Load(writeConfig(t, "auth:\n  enabled: true\n  secret: short\n")); err == nil {
		t.Fatal("short secret accepted")
	}
	if _, err := Load(writeConfig(t, "auth:\n  enabled: true\n  secret: 0123456789abcdef\n")); err == nil {
		t.Fatal("missing password hash accepted")
	}
	cfg, err := Load(writeConfig(t, `
auth:
  enabled: true
  secret: 0123456789abcdef
  password_hash: "$argon2id$v=19$m=8,t=1,p=1$c2FsdA$a2V5"
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour || cfg.Auth.ProtectReads {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5433, Database: "occ", User: "u", Password: "p"}
	if got := db.DSN(); got != "postgres://u:p@db:5433/occ?sslmode=disable" {
		t.Fatalf("DSN() = %s", got)
	}
}
