// Package polling implements the Polling Engine: two independent
// scheduler loops (EIP, SNMP), each with a bounded ≤5-worker pool,
// per-device interval gating, sequential per-device data-point reads,
// and publish fan-out to every connected MQTT broker.
package polling

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"industrial-bridge/internal/config"
	"industrial-bridge/internal/domain"
	"industrial-bridge/internal/eip"
	"industrial-bridge/internal/metrics"
	"industrial-bridge/internal/mqttgw"
	"industrial-bridge/internal/snmp"
	"industrial-bridge/internal/store"
	"industrial-bridge/internal/supervisor"
)

// Engine owns the two protocol loops. It holds no device state of its
// own beyond rate-gating and log-throttling maps: device records,
// liveness, and readings all flow through the store/supervisor/
// adapters it is constructed with.
type Engine struct {
	st      store.Store
	eipA    *eip.Adapter
	snmpA   *snmp.Adapter
	gateway *mqttgw.Gateway
	sup     *supervisor.Supervisor
	cfg     config.PollingConfig
	metrics *metrics.Registry
	log     zerolog.Logger

	lastPollMu sync.Mutex
	lastPoll   map[string]time.Time

	throttleMu sync.Mutex
	throttle   map[string]time.Time

	runMu     sync.Mutex
	eipPool   *WorkerPool
	snmpPool  *WorkerPool
	runCancel context.CancelFunc
	loopsDone chan struct{}
}

func NewEngine(
	st store.Store,
	eipA *eip.Adapter,
	snmpA *snmp.Adapter,
	gateway *mqttgw.Gateway,
	sup *supervisor.Supervisor,
	cfg config.PollingConfig,
	m *metrics.Registry,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		st: st, eipA: eipA, snmpA: snmpA, gateway: gateway, sup: sup,
		cfg: cfg, metrics: m, log: log,
		lastPoll: make(map[string]time.Time),
		throttle: make(map[string]time.Time),
	}
}

// Run starts both protocol loops; it returns immediately, the loops
// run until ctx is cancelled or Stop is called. Run derives its own
// cancelable context from ctx so Stop can join the loops independently
// of whatever the caller does with ctx afterward.
func (e *Engine) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	e.runMu.Lock()
	e.eipPool = NewWorkerPool(e.cfg.WorkersPerLoop)
	e.snmpPool = NewWorkerPool(e.cfg.WorkersPerLoop)
	e.runCancel = cancel
	e.loopsDone = make(chan struct{})
	eipPool, snmpPool, loopsDone := e.eipPool, e.snmpPool, e.loopsDone
	e.runMu.Unlock()

	eipPool.Start(runCtx)
	snmpPool.Start(runCtx)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); e.runLoop(runCtx, "eip", eipPool, e.cycleEIP) }()
	go func() { defer wg.Done(); e.runLoop(runCtx, "snmp", snmpPool, e.cycleSNMP) }()
	go func() { wg.Wait(); close(loopsDone) }()
}

// Stop cancels both scheduler loops and, once they've returned (or ctx
// is done, whichever comes first), stops both worker pools, joining
// their in-flight workers within the same ctx budget. The orchestrator
// calls it with one ≤5s deadline that bounds both joins together.
func (e *Engine) Stop(ctx context.Context) {
	e.runMu.Lock()
	cancel, loopsDone, eipPool, snmpPool := e.runCancel, e.loopsDone, e.eipPool, e.snmpPool
	e.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	if loopsDone != nil {
		select {
		case <-loopsDone:
		case <-ctx.Done():
		}
	}

	if eipPool != nil {
		eipPool.Stop(ctx)
	}
	if snmpPool != nil {
		snmpPool.Stop(ctx)
	}
}

func (e *Engine) runLoop(ctx context.Context, protocol string, pool *WorkerPool, cycle func(ctx context.Context, pool *WorkerPool)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error().Interface("panic", r).Str("protocol", protocol).Msg("poll cycle panicked, continuing")
				}
			}()
			cycle(ctx, pool)
		}()

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.cfg.CycleInterval):
		}
	}
}

func (e *Engine) cycleEIP(ctx context.Context, pool *WorkerPool) {
	devices, err := e.st.ListEnabledEIP(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("eip cycle: failed to list devices")
		return
	}

	var wg sync.WaitGroup
	for _, d := range devices {
		device := d
		wg.Add(1)
		pool.Submit(ctx, func(jobCtx context.Context) {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(jobCtx, e.cfg.TaskCeiling)
			defer cancel()
			if err := e.pollEIPDevice(taskCtx, device); err != nil {
				e.log.Debug().Err(err).Uint("device_id", device.ID).Msg("eip poll task failed")
				if e.metrics != nil {
					e.metrics.PollFailures.WithLabelValues("eip").Inc()
				}
			}
		})
	}
	wg.Wait()
}

func (e *Engine) pollEIPDevice(ctx context.Context, device domain.DeviceEIP) error {
	fresh, err := e.st.GetEIPByID(ctx, device.ID)
	if err != nil {
		return fmt.Errorf("reload device: %w", err)
	}
	if !fresh.Enabled {
		return nil
	}

	key := supervisor.Key{Kind: store.KindEIP, ID: fresh.ID}
	if !e.sup.IsConnected(key) {
		return nil
	}

	if !e.gatePoll("eip", fresh.ID, time.Duration(fresh.PollingInterval)*time.Millisecond) {
		return nil
	}

	tags, err := e.st.ListTags(ctx, fresh.ID, true)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}

	var readings Readings
	now := time.Now().UTC()
	for _, tag := range tags {
		value, err := e.eipA.ReadTag(ctx, fresh, tag.TagName)
		if err != nil {
			e.log.Debug().Err(err).Str("tag", tag.TagName).Msg("eip read failed, skipping")
			continue
		}
		strVal := fmt.Sprintf("%v", value)
		if err := e.st.UpdateTagReading(ctx, tag.ID, strVal, now); err != nil {
			e.log.Warn().Err(err).Msg("failed to persist tag reading")
		}
		if err := e.st.AppendSample(ctx, domain.SourceTypeEIP, tag.ID, tag.TagName, strVal, now); err != nil {
			e.log.Warn().Err(err).Msg("failed to append sample")
		}
		readings.add(tag.TagName, strVal)
	}

	if e.metrics != nil {
		e.metrics.PollCycles.WithLabelValues("eip").Inc()
	}

	if len(readings) > 0 {
		e.publishFanout(ctx, fresh.ID, fresh.HWID, readings)
	}
	return nil
}

func (e *Engine) cycleSNMP(ctx context.Context, pool *WorkerPool) {
	devices, err := e.st.ListEnabledSNMP(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("snmp cycle: failed to list devices")
		return
	}

	var wg sync.WaitGroup
	for _, d := range devices {
		device := d
		wg.Add(1)
		pool.Submit(ctx, func(jobCtx context.Context) {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(jobCtx, e.cfg.TaskCeiling)
			defer cancel()
			if err := e.pollSNMPDevice(taskCtx, device); err != nil {
				e.log.Debug().Err(err).Uint("device_id", device.ID).Msg("snmp poll task failed")
				if e.metrics != nil {
					e.metrics.PollFailures.WithLabelValues("snmp").Inc()
				}
			}
		})
	}
	wg.Wait()
}

func (e *Engine) pollSNMPDevice(ctx context.Context, device domain.DeviceSNMP) error {
	fresh, err := e.st.GetSNMPByID(ctx, device.ID)
	if err != nil {
		return fmt.Errorf("reload device: %w", err)
	}
	if !fresh.Enabled {
		return nil
	}

	key := supervisor.Key{Kind: store.KindSNMP, ID: fresh.ID}
	if !e.sup.IsConnected(key) {
		return nil
	}

	if !e.gatePoll("snmp", fresh.ID, time.Duration(fresh.PollingInterval)*time.Millisecond) {
		return nil
	}

	objects, err := e.st.ListObjects(ctx, fresh.ID, true)
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}

	var readings Readings
	now := time.Now().UTC()
	for _, object := range objects {
		value, err := e.snmpA.ReadOID(ctx, fresh, object.OID)
		if err != nil {
			e.log.Debug().Err(err).Str("oid", object.OID).Msg("snmp read failed, skipping")
			continue
		}
		if err := e.st.UpdateObjectReading(ctx, object.ID, value, now); err != nil {
			e.log.Warn().Err(err).Msg("failed to persist object reading")
		}
		key := snmpReadingKey(object)
		if err := e.st.AppendSample(ctx, domain.SourceTypeSNMP, object.ID, key, value, now); err != nil {
			e.log.Warn().Err(err).Msg("failed to append sample")
		}
		readings.add(key, value)
	}

	if e.metrics != nil {
		e.metrics.PollCycles.WithLabelValues("snmp").Inc()
	}

	if len(readings) > 0 {
		e.publishFanout(ctx, fresh.ID, fresh.HWID, readings)
	}
	return nil
}

// snmpReadingKey uses the object's description if set, else the OID
// with dots replaced by underscores, per spec's key derivation.
func snmpReadingKey(object domain.ObjectSNMP) string {
	if object.Description != "" {
		return object.Description
	}
	return strings.ReplaceAll(object.OID, ".", "_")
}

// gatePoll enforces the per-device polling interval: returns false
// without stamping if the interval has not elapsed since the last
// successful stamp.
func (e *Engine) gatePoll(protocol string, deviceID uint, interval time.Duration) bool {
	key := protocol + ":" + strconv.FormatUint(uint64(deviceID), 10)
	now := time.Now()

	e.lastPollMu.Lock()
	defer e.lastPollMu.Unlock()
	if last, ok := e.lastPoll[key]; ok && now.Sub(last) < interval {
		return false
	}
	e.lastPoll[key] = now
	return true
}

func (e *Engine) publishFanout(ctx context.Context, deviceID uint, hwid string, readings Readings) {
	brokers, err := e.st.ListEnabledMQTT(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("fanout: failed to list brokers")
		return
	}

	identifier := hwid
	if identifier == "" {
		identifier = strconv.FormatUint(uint64(deviceID), 10)
	}

	for _, broker := range brokers {
		if broker.PublishTopic == "" {
			continue
		}
		if !e.sup.IsConnected(supervisor.Key{Kind: store.KindMQTT, ID: broker.ID}) {
			continue
		}

		topic := broker.PublishTopic + "/" + identifier
		ts := time.Now()
		var payload []byte
		if broker.PublishFormat == domain.PublishString {
			payload = BuildCSVPayload(identifier, readings, ts)
		} else {
			payload = BuildJSONPayload(identifier, readings, ts)
		}

		if err := e.gateway.Publish(broker, topic, payload); err != nil {
			e.log.Warn().Err(err).Uint("broker_id", broker.ID).Msg("publish failed")
			if e.metrics != nil {
				e.metrics.PublishFailures.WithLabelValues(strconv.FormatUint(uint64(broker.ID), 10)).Inc()
			}
			continue
		}
		if e.metrics != nil {
			e.metrics.Publishes.WithLabelValues(strconv.FormatUint(uint64(broker.ID), 10)).Inc()
		}
		e.throttledLog(broker.ID, deviceID, topic)
	}
}

func (e *Engine) throttledLog(brokerID, deviceID uint, topic string) {
	key := strconv.FormatUint(uint64(brokerID), 10) + ":" + strconv.FormatUint(uint64(deviceID), 10)
	now := time.Now()

	e.throttleMu.Lock()
	last, ok := e.throttle[key]
	shouldLog := !ok || now.Sub(last) >= e.cfg.LogThrottle
	if shouldLog {
		e.throttle[key] = now
	}
	e.throttleMu.Unlock()

	if shouldLog {
		e.log.Info().Uint("device_id", deviceID).Str("topic", topic).Msg("published reading")
	}
}
