package snmp

import (
	"context"
	"testing"
	"time"

	"industrial-bridge/internal/config"
)

func TestDetectDevicesRejectsMalformedCIDR(t *testing.T) {
	adapter := New(config.SNMPConfig{ConnectTimeout: 100 * time.Millisecond, ConnectRetries: 0}, nil)
	_, err := adapter.DetectDevices(context.Background(), "not-a-cidr", "public")
	if err == nil {
		t.Fatalf("expected error for malformed CIDR")
	}
}

func TestDetectDevicesHonorsContextCancellation(t *testing.T) {
	adapter := New(config.SNMPConfig{ConnectTimeout: 50 * time.Millisecond, ConnectRetries: 0}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// /16 would be thousands of hosts; an already-cancelled context
	// must stop the scan almost immediately rather than scanning them
	// all.
	start := time.Now()
	_, err := adapter.DetectDevices(ctx, "10.0.0.0/16", "public")
	if err == nil {
		t.Fatalf("expected context.Canceled")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("DetectDevices did not honor cancellation promptly")
	}
}
