// Package orchestrator wires the bridge's components into a single
// running process and owns its startup/shutdown sequence, generalizing
// the teacher's cmd/snmp-bridge/main.go services-struct idiom across
// the EIP/SNMP/MQTT surface.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"industrial-bridge/internal/apperr"
	"industrial-bridge/internal/config"
	"industrial-bridge/internal/eip"
	"industrial-bridge/internal/health"
	"industrial-bridge/internal/httpapi"
	"industrial-bridge/internal/metrics"
	"industrial-bridge/internal/mqttgw"
	"industrial-bridge/internal/polling"
	"industrial-bridge/internal/snmp"
	"industrial-bridge/internal/store"
	"industrial-bridge/internal/store/sqlite"
	"industrial-bridge/internal/supervisor"
)

// Orchestrator owns every long-lived component and the single startup/
// shutdown sequence that connects, runs, and tears them down.
type Orchestrator struct {
	cfg *config.Config
	log zerolog.Logger

	db          *sqlite.DB
	eipAdapter  *eip.Adapter
	snmpAdapter *snmp.Adapter
	gateway     *mqttgw.Gateway
	supervisor  *supervisor.Supervisor
	engine      *polling.Engine
	checker     *health.Checker
	httpServer  *httpapi.Server
	metrics     *metrics.Registry

	cleanupStop chan struct{}
}

// New builds every component but starts nothing; call Start to run.
// registerer is normally prometheus.DefaultRegisterer; tests pass an
// isolated prometheus.NewRegistry() so repeated construction within one
// test binary doesn't collide on metric names.
func New(cfg *config.Config, log zerolog.Logger, registerer prometheus.Registerer) (*Orchestrator, error) {
	db, err := sqlite.NewDB(&cfg.Database)
	if err != nil {
		return nil, apperr.New(apperr.Fatal, "orchestrator.new", fmt.Errorf("open store: %w", err))
	}

	backend, err := eip.SelectBackend(cfg.EIP.Backend)
	if err != nil {
		db.Close()
		return nil, apperr.New(apperr.Fatal, "orchestrator.new", fmt.Errorf("select eip backend: %w", err))
	}

	reg := metrics.NewRegistry(registerer)

	o := &Orchestrator{
		cfg:         cfg,
		log:         log,
		db:          db,
		eipAdapter:  eip.New(backend),
		snmpAdapter: snmp.New(cfg.SNMP, db),
		gateway:     mqttgw.New(log),
		metrics:     reg,
		checker:     health.NewChecker(),
		cleanupStop: make(chan struct{}),
	}

	o.supervisor = supervisor.New(cfg.Polling.SupervisorTick, cfg.Polling.ReconnectInterval, o.listEndpoints, reg, log)
	o.engine = polling.NewEngine(db, o.eipAdapter, o.snmpAdapter, o.gateway, o.supervisor, cfg.Polling, reg, log)
	o.wireHealthChecks()
	o.httpServer = httpapi.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), o.checker)

	return o, nil
}

func (o *Orchestrator) wireHealthChecks() {
	o.checker.AddCheck("store", func() error {
		_, err := o.db.ListEnabledMQTT(context.Background())
		return err
	})
	o.checker.AddCheck("eip_devices", func() error { return o.anyDisconnected(store.KindEIP) })
	o.checker.AddCheck("snmp_devices", func() error { return o.anyDisconnected(store.KindSNMP) })
	o.checker.AddCheck("mqtt_brokers", func() error { return o.anyDisconnected(store.KindMQTT) })
}

// anyDisconnected reports the first enabled endpoint of kind that the
// supervisor currently considers down; nil means every enabled
// endpoint of that kind is connected (or none exist).
func (o *Orchestrator) anyDisconnected(kind store.Kind) error {
	ctx := context.Background()
	switch kind {
	case store.KindEIP:
		devices, err := o.db.ListEnabledEIP(ctx)
		if err != nil {
			return err
		}
		for _, d := range devices {
			if !o.supervisor.IsConnected(supervisor.Key{Kind: store.KindEIP, ID: d.ID}) {
				return fmt.Errorf("eip device %d not connected", d.ID)
			}
		}
	case store.KindSNMP:
		devices, err := o.db.ListEnabledSNMP(ctx)
		if err != nil {
			return err
		}
		for _, d := range devices {
			if !o.supervisor.IsConnected(supervisor.Key{Kind: store.KindSNMP, ID: d.ID}) {
				return fmt.Errorf("snmp device %d not connected", d.ID)
			}
		}
	case store.KindMQTT:
		brokers, err := o.db.ListEnabledMQTT(ctx)
		if err != nil {
			return err
		}
		for _, b := range brokers {
			if !o.supervisor.IsConnected(supervisor.Key{Kind: store.KindMQTT, ID: b.ID}) {
				return fmt.Errorf("mqtt broker %d not connected", b.ID)
			}
		}
	}
	return nil
}

// listEndpoints is the supervisor.EndpointLister consulted once per
// tick: it enumerates every currently enabled device/broker and wraps
// each protocol's connect call behind the common Endpoint shape.
func (o *Orchestrator) listEndpoints(ctx context.Context) ([]supervisor.Endpoint, error) {
	var endpoints []supervisor.Endpoint

	eipDevices, err := o.db.ListEnabledEIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("list eip devices: %w", err)
	}
	for _, d := range eipDevices {
		device := d
		endpoints = append(endpoints, supervisor.Endpoint{
			Key: supervisor.Key{Kind: store.KindEIP, ID: device.ID},
			Connect: func(ctx context.Context) (bool, string, error) {
				result, err := o.eipAdapter.Connect(ctx, device)
				if err != nil {
					return false, err.Error(), err
				}
				return result.Connected, result.Message, nil
			},
		})
	}

	snmpDevices, err := o.db.ListEnabledSNMP(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snmp devices: %w", err)
	}
	for _, d := range snmpDevices {
		device := d
		endpoints = append(endpoints, supervisor.Endpoint{
			Key:     supervisor.Key{Kind: store.KindSNMP, ID: device.ID},
			Connect: func(ctx context.Context) (bool, string, error) { return o.snmpAdapter.Connect(ctx, device) },
		})
	}

	brokers, err := o.db.ListEnabledMQTT(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mqtt brokers: %w", err)
	}
	for _, b := range brokers {
		broker := b
		endpoints = append(endpoints, supervisor.Endpoint{
			Key: supervisor.Key{Kind: store.KindMQTT, ID: broker.ID},
			Connect: func(ctx context.Context) (bool, string, error) {
				connected, message := o.gateway.ConnectBroker(ctx, broker)
				return connected, message, nil
			},
			AfterReconnect: func(ctx context.Context) error {
				if broker.SubscribeTopic == "" {
					return nil
				}
				return o.gateway.RestartSubscriber(ctx, broker, o.handleCommand)
			},
		})
	}

	return endpoints, nil
}

// handleCommand is the mqttgw.CommandHandler invoked for every parsed
// inbound command: it resolves the target device by hwid and
// dispatches an SNMP writeByName.
func (o *Orchestrator) handleCommand(ctx context.Context, cmd mqttgw.InboundCommand) error {
	device, err := o.db.FindSNMPByHWID(ctx, cmd.HWID)
	if err != nil {
		return fmt.Errorf("resolve hwid %q: %w", cmd.HWID, err)
	}
	return o.snmpAdapter.WriteByName(ctx, device.ID, cmd.ParameterName, cmd.Value)
}

// Start connects every enabled endpoint once, then runs the
// supervisor, both polling loops, the retention sweep, and the HTTP
// ops surface. It returns once the initial connect pass completes;
// everything else continues in background goroutines until ctx is
// cancelled.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.connectAllOnce(ctx)

	go o.supervisor.Run(ctx)
	o.engine.Run(ctx)
	go o.runRetentionSweep(ctx)

	go func() {
		o.log.Info().Str("addr", fmt.Sprintf("%s:%d", o.cfg.Server.Host, o.cfg.Server.Port)).Msg("http ops server listening")
		if err := o.httpServer.Run(); err != nil {
			o.log.Error().Err(err).Msg("http ops server stopped")
		}
	}()

	return nil
}

// connectAllOnce performs one eager connect pass over every enabled
// endpoint at startup so the first poll/publish cycle need not wait
// for the supervisor's first tick.
func (o *Orchestrator) connectAllOnce(ctx context.Context) {
	endpoints, err := o.listEndpoints(ctx)
	if err != nil {
		o.log.Warn().Err(err).Msg("startup connect: failed to list endpoints")
		return
	}
	for _, ep := range endpoints {
		connected, message, err := ep.Connect(ctx)
		if err != nil {
			message = err.Error()
		}
		o.supervisor.SetStatus(ep.Key, connected, message)
		if !connected {
			o.log.Warn().Interface("key", ep.Key).Str("message", message).Msg("endpoint down at startup")
			continue
		}
		if ep.AfterReconnect != nil {
			if err := ep.AfterReconnect(ctx); err != nil {
				o.log.Warn().Err(err).Interface("key", ep.Key).Msg("post-connect hook failed")
			}
		}
	}
}

// runRetentionSweep deletes samples older than the configured
// retention window once a day. Supplemental feature grounded on
// original_source's cleanup_old_logs(days=7).
func (o *Orchestrator) runRetentionSweep(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.cleanupStop:
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -o.cfg.Polling.SampleRetentionDays)
			removed, err := o.db.CleanupSamples(ctx, cutoff)
			if err != nil {
				o.log.Warn().Err(err).Msg("sample retention sweep failed")
				continue
			}
			o.log.Info().Int64("removed", removed).Msg("sample retention sweep complete")
		}
	}
}

// shutdownJoinTimeout bounds how long Shutdown waits for the
// supervisor and the polling engine to join, per spec.
const shutdownJoinTimeout = 5 * time.Second

// Shutdown stops the HTTP server, joins the supervisor and both
// protocol loops (cancelling their worker pools' pending tasks), then
// disconnects every MQTT client and closes the store. The retention
// sweep is signalled to stop first.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	close(o.cleanupStop)

	if err := o.httpServer.Shutdown(ctx); err != nil {
		o.log.Warn().Err(err).Msg("http ops server shutdown error")
	}

	supervisorCtx, supervisorCancel := context.WithTimeout(ctx, shutdownJoinTimeout)
	o.supervisor.Stop(supervisorCtx)
	supervisorCancel()

	engineCtx, engineCancel := context.WithTimeout(ctx, shutdownJoinTimeout)
	o.engine.Stop(engineCtx)
	engineCancel()

	o.gateway.Close()

	if err := o.db.Close(); err != nil {
		o.log.Warn().Err(err).Msg("store close error")
	}

	return nil
}
