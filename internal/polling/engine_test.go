package polling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"industrial-bridge/internal/config"
	"industrial-bridge/internal/domain"
	"industrial-bridge/internal/eip"
	"industrial-bridge/internal/metrics"
	"industrial-bridge/internal/snmp"
	"industrial-bridge/internal/store"
	"industrial-bridge/internal/supervisor"
)

// fakeStore implements just enough of store.Store for the engine tests.
type fakeStore struct {
	store.Store

	mu          sync.Mutex
	eipDevices  []domain.DeviceEIP
	snmpDevices []domain.DeviceSNMP
	brokers     []domain.DeviceMQTT
	tags        map[uint][]domain.TagEIP
	objects     map[uint][]domain.ObjectSNMP

	tagUpdates    int
	objectUpdates int
	samples       int
}

func (f *fakeStore) ListEnabledEIP(ctx context.Context) ([]domain.DeviceEIP, error) {
	return f.eipDevices, nil
}
func (f *fakeStore) ListEnabledSNMP(ctx context.Context) ([]domain.DeviceSNMP, error) {
	return f.snmpDevices, nil
}
func (f *fakeStore) ListEnabledMQTT(ctx context.Context) ([]domain.DeviceMQTT, error) {
	return f.brokers, nil
}
func (f *fakeStore) GetEIPByID(ctx context.Context, id uint) (domain.DeviceEIP, error) {
	for _, d := range f.eipDevices {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.DeviceEIP{}, errNotFound
}
func (f *fakeStore) GetSNMPByID(ctx context.Context, id uint) (domain.DeviceSNMP, error) {
	for _, d := range f.snmpDevices {
		if d.ID == id {
			return d, nil
		}
	}
	return domain.DeviceSNMP{}, errNotFound
}
func (f *fakeStore) ListTags(ctx context.Context, deviceID uint, enabledOnly bool) ([]domain.TagEIP, error) {
	return f.tags[deviceID], nil
}
func (f *fakeStore) ListObjects(ctx context.Context, deviceID uint, enabledOnly bool) ([]domain.ObjectSNMP, error) {
	return f.objects[deviceID], nil
}
func (f *fakeStore) UpdateTagReading(ctx context.Context, tagID uint, value string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagUpdates++
	return nil
}
func (f *fakeStore) UpdateObjectReading(ctx context.Context, objectID uint, value string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objectUpdates++
	return nil
}
func (f *fakeStore) AppendSample(ctx context.Context, sourceType string, sourceID uint, name, value string, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples++
	return nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var errNotFound = notFoundErr{}

// stubEIPBackend returns a fixed value for every tag read.
type stubEIPBackend struct{ reads int32 }

func (s *stubEIPBackend) Connect(ctx context.Context, device domain.DeviceEIP) (eip.ConnectResult, error) {
	return eip.ConnectResult{Connected: true}, nil
}
func (s *stubEIPBackend) DiscoverTags(ctx context.Context, device domain.DeviceEIP) ([]eip.TagInfo, error) {
	return nil, nil
}
func (s *stubEIPBackend) ReadTag(ctx context.Context, device domain.DeviceEIP, tagName string) (interface{}, error) {
	s.reads++
	return 42, nil
}
func (s *stubEIPBackend) WriteTag(ctx context.Context, device domain.DeviceEIP, tagName string, value interface{}) error {
	return nil
}

func newTestEngine(t *testing.T, st store.Store) *Engine {
	t.Helper()
	reg := metrics.NewRegistry(prometheus.NewRegistry())
	sup := supervisor.New(time.Hour, time.Hour, nil, reg, zerolog.Nop())
	cfg := config.PollingConfig{
		WorkersPerLoop: 2,
		CycleInterval:  50 * time.Millisecond,
		TaskCeiling:    2 * time.Second,
		LogThrottle:    time.Second,
	}
	eipAdapter := eip.New(&stubEIPBackend{})
	snmpAdapter := snmp.New(config.SNMPConfig{RequestTimeout: time.Second, RequestRetries: 1}, st)
	return NewEngine(st, eipAdapter, snmpAdapter, nil, sup, cfg, reg, zerolog.Nop())
}

func TestPollEIPDeviceSkipsWhenNotConnected(t *testing.T) {
	st := &fakeStore{
		eipDevices: []domain.DeviceEIP{{ID: 1, Enabled: true, PollingInterval: 100}},
		tags:       map[uint][]domain.TagEIP{1: {{ID: 1, DeviceID: 1, TagName: "Temperature_1", Enabled: true}}},
	}
	e := newTestEngine(t, st)

	if err := e.pollEIPDevice(context.Background(), st.eipDevices[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.tagUpdates != 0 {
		t.Fatalf("expected no tag updates while endpoint is disconnected, got %d", st.tagUpdates)
	}
}

func TestPollEIPDeviceReadsTagsWhenConnected(t *testing.T) {
	st := &fakeStore{
		eipDevices: []domain.DeviceEIP{{ID: 1, Enabled: true, PollingInterval: 100, HWID: "PLC1"}},
		tags: map[uint][]domain.TagEIP{1: {
			{ID: 1, DeviceID: 1, TagName: "Temperature_1", Enabled: true},
			{ID: 2, DeviceID: 1, TagName: "Temperature_2", Enabled: true},
		}},
	}
	e := newTestEngine(t, st)
	e.sup.SetStatus(supervisor.Key{Kind: store.KindEIP, ID: 1}, true, "up")

	if err := e.pollEIPDevice(context.Background(), st.eipDevices[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.tagUpdates != 2 {
		t.Fatalf("expected 2 tag updates, got %d", st.tagUpdates)
	}
	if st.samples != 2 {
		t.Fatalf("expected 2 samples appended, got %d", st.samples)
	}
}

func TestPollEIPDeviceHonorsIntervalGate(t *testing.T) {
	st := &fakeStore{
		eipDevices: []domain.DeviceEIP{{ID: 1, Enabled: true, PollingInterval: 60_000, HWID: "PLC1"}},
		tags:       map[uint][]domain.TagEIP{1: {{ID: 1, DeviceID: 1, TagName: "Temperature_1", Enabled: true}}},
	}
	e := newTestEngine(t, st)
	e.sup.SetStatus(supervisor.Key{Kind: store.KindEIP, ID: 1}, true, "up")

	if err := e.pollEIPDevice(context.Background(), st.eipDevices[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.tagUpdates != 1 {
		t.Fatalf("expected first call to poll, got %d updates", st.tagUpdates)
	}

	// Immediate second call within the 60s interval must be gated out.
	if err := e.pollEIPDevice(context.Background(), st.eipDevices[0]); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.tagUpdates != 1 {
		t.Fatalf("expected second call to be gated, got %d updates", st.tagUpdates)
	}
}

func TestSNMPReadingKeyPrefersDescriptionOverOID(t *testing.T) {
	withDescription := domain.ObjectSNMP{OID: "1.3.6.1.2.1.1.5.0", Description: "sysName"}
	if got := snmpReadingKey(withDescription); got != "sysName" {
		t.Fatalf("expected description key, got %q", got)
	}

	withoutDescription := domain.ObjectSNMP{OID: "1.3.6.1.2.1.1.5.0"}
	if got := snmpReadingKey(withoutDescription); got != "1_3_6_1_2_1_1_5_0" {
		t.Fatalf("expected dotted OID converted to underscores, got %q", got)
	}
}

func TestGatePollAllowsAfterIntervalElapses(t *testing.T) {
	st := &fakeStore{}
	e := newTestEngine(t, st)

	if !e.gatePoll("eip", 1, 10*time.Millisecond) {
		t.Fatalf("expected first call to be allowed")
	}
	if e.gatePoll("eip", 1, 10*time.Millisecond) {
		t.Fatalf("expected immediate second call to be gated")
	}
	time.Sleep(20 * time.Millisecond)
	if !e.gatePoll("eip", 1, 10*time.Millisecond) {
		t.Fatalf("expected call after interval elapsed to be allowed")
	}
}

func TestRunThenStopJoinsLoopsAndPools(t *testing.T) {
	st := &fakeStore{
		eipDevices: []domain.DeviceEIP{{ID: 1, Enabled: true, PollingInterval: 1, HWID: "PLC1"}},
		tags:       map[uint][]domain.TagEIP{1: {{ID: 1, DeviceID: 1, TagName: "Temperature_1", Enabled: true}}},
	}
	e := newTestEngine(t, st)
	e.sup.SetStatus(supervisor.Key{Kind: store.KindEIP, ID: 1}, true, "up")

	e.Run(context.Background())
	time.Sleep(20 * time.Millisecond) // let at least one cycle run

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	e.Stop(stopCtx)

	if stopCtx.Err() != nil {
		t.Fatalf("Stop should have joined both loops and pools within its deadline, got %v", stopCtx.Err())
	}
}

func TestStopBeforeRunIsANoop(t *testing.T) {
	e := newTestEngine(t, &fakeStore{})
	e.Stop(context.Background()) // must not panic or block
}
