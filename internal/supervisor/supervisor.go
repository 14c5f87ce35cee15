// Package supervisor implements the Connection Supervisor: a keyed
// liveness map and a single 10-second tick that drives rate-limited
// reconnection across every enabled EIP, SNMP, and MQTT endpoint. This
// is the only path that attempts to heal a downed endpoint; polling
// tasks themselves never reconnect.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"industrial-bridge/internal/metrics"
	"industrial-bridge/internal/store"
)

// Key identifies one southbound or northbound endpoint.
type Key struct {
	Kind store.Kind
	ID   uint
}

// Status is the liveness record held per key.
type Status struct {
	Connected bool
	LastCheck time.Time
	Message   string
}

// Endpoint is one probeable connection the supervisor can attempt to
// heal.
type Endpoint struct {
	Key            Key
	Connect        func(ctx context.Context) (connected bool, message string, err error)
	AfterReconnect func(ctx context.Context) error // e.g. MQTT restartSubscriber
}

// EndpointLister enumerates the currently enabled endpoints; called
// fresh every tick so recently toggled devices are picked up.
type EndpointLister func(ctx context.Context) ([]Endpoint, error)

// Supervisor owns the liveness map and reconnect-rate-limit state.
type Supervisor struct {
	mu          sync.Mutex
	status      map[Key]Status
	lastAttempt map[Key]time.Time
	breakers    map[Key]*gobreaker.CircuitBreaker

	tick              time.Duration
	reconnectInterval time.Duration
	listEndpoints     EndpointLister
	metrics           *metrics.Registry
	log               zerolog.Logger

	runMu     sync.Mutex
	runCancel context.CancelFunc
	loopDone  chan struct{}
}

func New(tick, reconnectInterval time.Duration, lister EndpointLister, m *metrics.Registry, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		status:            make(map[Key]Status),
		lastAttempt:       make(map[Key]time.Time),
		breakers:          make(map[Key]*gobreaker.CircuitBreaker),
		tick:              tick,
		reconnectInterval: reconnectInterval,
		listEndpoints:     lister,
		metrics:           m,
		log:               log,
	}
}

// Run drives the supervisor loop until ctx is cancelled or Stop is
// called. Run derives its own cancelable context from ctx so Stop can
// join the loop independently of whatever the caller does with ctx
// afterward.
func (s *Supervisor) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.runMu.Lock()
	s.runCancel = cancel
	s.loopDone = done
	s.runMu.Unlock()

	defer close(done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-runCtx.Done():
			return
		case <-ticker.C:
			s.runOnce(runCtx)
		}
	}
}

// Stop cancels the supervisor loop and blocks until it returns, or
// until ctx is done — whichever comes first.
func (s *Supervisor) Stop(ctx context.Context) {
	s.runMu.Lock()
	cancel, done := s.runCancel, s.loopDone
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Supervisor) runOnce(ctx context.Context) {
	endpoints, err := s.listEndpoints(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("supervisor: failed to list endpoints")
		return
	}

	for _, ep := range endpoints {
		if s.IsConnected(ep.Key) {
			continue
		}
		s.mu.Lock()
		last := s.lastAttempt[ep.Key]
		s.mu.Unlock()
		if time.Since(last) < s.reconnectInterval {
			continue
		}

		s.mu.Lock()
		s.lastAttempt[ep.Key] = time.Now()
		s.mu.Unlock()

		if s.metrics != nil {
			s.metrics.ReconnectAttempts.WithLabelValues(string(ep.Key.Kind)).Inc()
		}

		breaker := s.breakerFor(ep.Key)
		_, breakerErr := breaker.Execute(func() (interface{}, error) {
			connected, message, err := ep.Connect(ctx)
			if err != nil {
				return nil, err
			}
			if !connected {
				return nil, fmt.Errorf("%s", message)
			}
			return message, nil
		})

		connected := breakerErr == nil
		message := "connected"
		if breakerErr != nil {
			message = breakerErr.Error()
		}
		s.SetStatus(ep.Key, connected, message)

		if connected && ep.AfterReconnect != nil {
			if err := ep.AfterReconnect(ctx); err != nil {
				s.log.Warn().Err(err).Interface("key", ep.Key).Msg("AfterReconnect failed")
			}
		}
	}
}

func (s *Supervisor) breakerFor(key Key) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[key]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("%s-%d", key.Kind, key.ID),
		MaxRequests: 1,
		Interval:    0,
		Timeout:     s.reconnectInterval,
	})
	s.breakers[key] = b
	return b
}

// SetStatus records an adapter-reported liveness transition. Safe for
// concurrent callers.
func (s *Supervisor) SetStatus(key Key, connected bool, message string) {
	s.mu.Lock()
	s.status[key] = Status{Connected: connected, LastCheck: time.Now(), Message: message}
	connectedByKind := make(map[store.Kind]float64)
	for k, st := range s.status {
		if st.Connected {
			connectedByKind[k.Kind]++
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		for kind, count := range connectedByKind {
			s.metrics.ConnectedEndpoints.WithLabelValues(string(kind)).Set(count)
		}
	}
}

// IsConnected reports the last known liveness for key; unknown keys
// are treated as disconnected.
func (s *Supervisor) IsConnected(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[key].Connected
}

// Status returns the last known record for key.
func (s *Supervisor) Status(key Key) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status[key]
}
