package eip

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"industrial-bridge/internal/domain"
)

// mockTag is one entry in a simulated PLC's tag table.
type mockTag struct {
	mu       sync.RWMutex
	dataType string
	value    interface{}
	drift    float64 // jitter half-width for numeric tags; 0 = static
}

// mockPLC simulates one controller: a fixed tag table with a
// background goroutine that jitters numeric tags once a second,
// grounded on ethernetip_simulator.py's MockPLC/MockTag drift design.
type mockPLC struct {
	tags   map[string]*mockTag
	stopCh chan struct{}
	once   sync.Once
}

func newMockPLC() *mockPLC {
	p := &mockPLC{
		tags: map[string]*mockTag{
			"Temperature_1": {dataType: "REAL", value: 72.0, drift: 0.5},
			"Temperature_2": {dataType: "REAL", value: 68.0, drift: 0.5},
			"Pressure":      {dataType: "REAL", value: 14.7, drift: 0.2},
			"Counter_1":     {dataType: "DINT", value: int64(0), drift: 0},
			"Flow_Rate":     {dataType: "REAL", value: 3.2, drift: 0.1},
			"Running":       {dataType: "BOOL", value: true, drift: 0},
		},
		stopCh: make(chan struct{}),
	}
	go p.driftLoop()
	return p
}

func (p *mockPLC) driftLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for name, tag := range p.tags {
				tag.mu.Lock()
				switch name {
				case "Counter_1":
					tag.value = tag.value.(int64) + 1
				default:
					if tag.drift > 0 {
						if f, ok := tag.value.(float64); ok {
							tag.value = f + (rand.Float64()*2-1)*tag.drift
						}
					}
				}
				tag.mu.Unlock()
			}
		case <-p.stopCh:
			return
		}
	}
}

func (p *mockPLC) stop() {
	p.once.Do(func() { close(p.stopCh) })
}

// mockBackend is the MOCK EIP Backend: an in-process simulator with
// one mockPLC per "host:slot" key, keeping simulated state alive
// across calls the same way the Python simulator's class-level
// _plc_instances dict does.
type mockBackend struct {
	mu   sync.Mutex
	plcs map[string]*mockPLC
}

// NewMock constructs the MOCK EIP backend.
func NewMock() Backend {
	return &mockBackend{plcs: make(map[string]*mockPLC)}
}

func (m *mockBackend) plcFor(device domain.DeviceEIP) *mockPLC {
	key := fmt.Sprintf("%s:%d", device.Host, device.Slot)
	m.mu.Lock()
	defer m.mu.Unlock()
	plc, ok := m.plcs[key]
	if !ok {
		plc = newMockPLC()
		m.plcs[key] = plc
	}
	return plc
}

func (m *mockBackend) Connect(ctx context.Context, device domain.DeviceEIP) (ConnectResult, error) {
	m.plcFor(device) // ensures the simulated PLC exists and is running
	return ConnectResult{Connected: true, Message: "mock PLC online"}, nil
}

func (m *mockBackend) DiscoverTags(ctx context.Context, device domain.DeviceEIP) ([]TagInfo, error) {
	plc := m.plcFor(device)
	tags := make([]TagInfo, 0, len(plc.tags))
	for name, tag := range plc.tags {
		tag.mu.RLock()
		tags = append(tags, TagInfo{Name: name, DataType: tag.dataType})
		tag.mu.RUnlock()
	}
	return tags, nil
}

func (m *mockBackend) ReadTag(ctx context.Context, device domain.DeviceEIP, tagName string) (interface{}, error) {
	plc := m.plcFor(device)
	tag, ok := plc.tags[tagName]
	if !ok {
		return nil, fmt.Errorf("unknown tag %q", tagName)
	}
	tag.mu.RLock()
	defer tag.mu.RUnlock()
	return tag.value, nil
}

func (m *mockBackend) WriteTag(ctx context.Context, device domain.DeviceEIP, tagName string, value interface{}) error {
	plc := m.plcFor(device)
	tag, ok := plc.tags[tagName]
	if !ok {
		return fmt.Errorf("unknown tag %q", tagName)
	}
	tag.mu.Lock()
	defer tag.mu.Unlock()
	tag.value = value
	return nil
}
