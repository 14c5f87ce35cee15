package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"industrial-bridge/internal/apperr"
	"industrial-bridge/internal/config"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file::memory:?cache=shared"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.EIP.Backend = "MOCK"
	cfg.SNMP.RequestTimeout = time.Second
	cfg.SNMP.RequestRetries = 1
	cfg.SNMP.ConnectTimeout = time.Second
	cfg.SNMP.ConnectRetries = 1
	cfg.SNMP.WriteCap = time.Second
	cfg.SNMP.WalkCap = time.Second
	cfg.SNMP.WalkMaxEntries = 10
	cfg.Polling.WorkersPerLoop = 2
	cfg.Polling.CycleInterval = 50 * time.Millisecond
	cfg.Polling.TaskCeiling = time.Second
	cfg.Polling.ReconnectInterval = time.Hour
	cfg.Polling.SupervisorTick = time.Hour
	cfg.Polling.LogThrottle = time.Second
	cfg.Polling.SampleRetentionDays = 7
	return cfg
}

func TestNewBuildsEveryComponentAndHealthChecksPass(t *testing.T) {
	cfg := testConfig()
	o, err := New(cfg, zerolog.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer o.db.Close()

	failures := o.checker.Results()
	if len(failures) != 0 {
		t.Fatalf("expected no health check failures on an empty store, got %v", failures)
	}
}

func TestNewRejectsUnknownEIPBackendAsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.EIP.Backend = "NOT_A_BACKEND"

	_, err := New(cfg, zerolog.Nop(), prometheus.NewRegistry())
	if err == nil {
		t.Fatalf("expected New to fail for an unknown eip backend")
	}
	if got := apperr.KindOf(err); got != apperr.Fatal {
		t.Fatalf("expected Kind %q, got %q", apperr.Fatal, got)
	}
}

func TestStartAndShutdownIsClean(t *testing.T) {
	cfg := testConfig()
	o, err := New(cfg, zerolog.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := o.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond) // let both protocol loops run a cycle; the supervisor's 1h tick only starts its loop here

	// Cancel the run context up front, as a real caller's signal handler
	// would, so Shutdown must join the supervisor/engine goroutines
	// itself rather than relying on an already-dead ctx to unblock them.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	start := time.Now()
	if err := o.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 5*time.Second {
		t.Fatalf("Shutdown did not join within its own deadline, took %v", elapsed)
	}
	if shutdownCtx.Err() != nil {
		t.Fatalf("Shutdown overran its own context deadline: %v", shutdownCtx.Err())
	}
}
