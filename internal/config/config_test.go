package config

import "testing"

func TestGetDSNReturnsDSNVerbatimForSqlite(t *testing.T) {
	cfg := DatabaseConfig{Driver: "sqlite", DSN: "./data/bridge.db"}
	if got := cfg.GetDSN(); got != "./data/bridge.db" {
		t.Fatalf("expected sqlite DSN passthrough, got %q", got)
	}
}

func TestGetDSNBuildsPostgresConnStringFromParts(t *testing.T) {
	cfg := DatabaseConfig{
		Driver: "postgres", Host: "db.internal", Port: 5433,
		User: "bridge", Password: "secret", DBName: "bridge",
	}
	got := cfg.GetDSN()
	want := "host=db.internal port=5433 user=bridge password=secret dbname=bridge sslmode=disable"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestGetDSNPrefersExplicitPostgresDSN(t *testing.T) {
	cfg := DatabaseConfig{Driver: "postgres", DSN: "postgres://explicit"}
	if got := cfg.GetDSN(); got != "postgres://explicit" {
		t.Fatalf("expected explicit DSN to win, got %q", got)
	}
}

func TestLoadAppliesDefaultsWithNoConfigFilePresent(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.EIP.Backend != "MOCK" {
		t.Fatalf("expected default eip backend MOCK, got %q", cfg.EIP.Backend)
	}
	if cfg.Polling.WorkersPerLoop != 5 {
		t.Fatalf("expected default workers_per_loop 5, got %d", cfg.Polling.WorkersPerLoop)
	}
	if cfg.Polling.SampleRetentionDays != 7 {
		t.Fatalf("expected default sample_retention_days 7, got %d", cfg.Polling.SampleRetentionDays)
	}
	if cfg.SNMP.WalkMaxEntries != 100 {
		t.Fatalf("expected default walk_max_entries 100, got %d", cfg.SNMP.WalkMaxEntries)
	}
}
