package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"industrial-bridge/internal/metrics"
	"industrial-bridge/internal/store"
)

func TestIsConnectedDefaultsFalseForUnknownKey(t *testing.T) {
	s := New(time.Hour, time.Hour, nil, nil, zerolog.Nop())
	if s.IsConnected(Key{Kind: store.KindEIP, ID: 1}) {
		t.Fatalf("expected unknown key to be disconnected")
	}
}

func TestRunOnceAttemptsConnectForDownEndpoint(t *testing.T) {
	var attempts int32
	key := Key{Kind: store.KindSNMP, ID: 1}
	lister := func(ctx context.Context) ([]Endpoint, error) {
		return []Endpoint{{
			Key: key,
			Connect: func(ctx context.Context) (bool, string, error) {
				atomic.AddInt32(&attempts, 1)
				return true, "ok", nil
			},
		}}, nil
	}

	s := New(time.Hour, 10*time.Millisecond, lister, metrics.NewRegistry(prometheus.NewRegistry()), zerolog.Nop())
	s.runOnce(context.Background())

	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected exactly one connect attempt, got %d", attempts)
	}
	if !s.IsConnected(key) {
		t.Fatalf("expected endpoint to be marked connected")
	}
}

func TestRunOnceSkipsEndpointAlreadyConnected(t *testing.T) {
	var attempts int32
	key := Key{Kind: store.KindSNMP, ID: 2}
	lister := func(ctx context.Context) ([]Endpoint, error) {
		return []Endpoint{{
			Key: key,
			Connect: func(ctx context.Context) (bool, string, error) {
				atomic.AddInt32(&attempts, 1)
				return true, "ok", nil
			},
		}}, nil
	}

	s := New(time.Hour, 10*time.Millisecond, lister, nil, zerolog.Nop())
	s.SetStatus(key, true, "already up")
	s.runOnce(context.Background())

	if atomic.LoadInt32(&attempts) != 0 {
		t.Fatalf("expected no connect attempt for an already-connected endpoint")
	}
}

func TestRunOnceRespectsReconnectRateLimit(t *testing.T) {
	var attempts int32
	key := Key{Kind: store.KindEIP, ID: 3}
	lister := func(ctx context.Context) ([]Endpoint, error) {
		return []Endpoint{{
			Key: key,
			Connect: func(ctx context.Context) (bool, string, error) {
				atomic.AddInt32(&attempts, 1)
				return false, "still down", nil
			},
		}}, nil
	}

	s := New(time.Hour, time.Hour, lister, nil, zerolog.Nop())
	s.runOnce(context.Background())
	s.runOnce(context.Background()) // second call within the 1h window must be skipped

	if atomic.LoadInt32(&attempts) != 1 {
		t.Fatalf("expected exactly one attempt within the rate-limit window, got %d", attempts)
	}
}

func TestStopJoinsRunLoop(t *testing.T) {
	lister := func(ctx context.Context) ([]Endpoint, error) { return nil, nil }
	s := New(time.Millisecond, time.Hour, lister, nil, zerolog.Nop())

	go s.Run(context.Background())
	time.Sleep(5 * time.Millisecond) // let Run install runCancel/loopDone

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(stopCtx)

	if stopCtx.Err() != nil {
		t.Fatalf("Stop should have joined well within its deadline, got %v", stopCtx.Err())
	}
}

func TestStopBeforeRunIsANoop(t *testing.T) {
	s := New(time.Hour, time.Hour, nil, nil, zerolog.Nop())
	s.Stop(context.Background()) // must not panic or block
}
