// Package mqttgw implements the MQTT Gateway: a lazy per-broker
// persistent publisher (fire-and-forget, evict-on-failure), a
// per-broker subscriber dispatching inbound commands through a
// bounded channel to a decoupled handler, and the blocking
// connectBroker test-connect used by the connection supervisor.
package mqttgw

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"industrial-bridge/internal/domain"
)

// CommandHandler executes an inbound command (an SNMP writeByName
// call in practice) and returns an error to report back on the
// gateway's error topic.
type CommandHandler func(ctx context.Context, cmd InboundCommand) error

// InboundCommand is the parsed payload of a subscribed command
// message.
type InboundCommand struct {
	HWID          string
	ParameterName string
	Value         string
	MessageID     string
}

// Gateway owns every broker's publisher and subscriber client,
// guarded by one mutex, matching the teacher's client-table idiom.
type Gateway struct {
	log zerolog.Logger

	mu          sync.Mutex
	publishers  map[uint]mqtt.Client
	subscribers map[uint]*subscription
}

func New(log zerolog.Logger) *Gateway {
	return &Gateway{
		log:         log,
		publishers:  make(map[uint]mqtt.Client),
		subscribers: make(map[uint]*subscription),
	}
}

func clientOptions(broker domain.DeviceMQTT, clientIDSuffix string) *mqtt.ClientOptions {
	scheme := "tcp"
	if broker.UseTLS {
		scheme = "ssl"
	}
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, broker.Broker, broker.Port)).
		SetClientID(fmt.Sprintf("industrial-bridge-%d-%s", broker.ID, clientIDSuffix)).
		SetAutoReconnect(false). // the connection supervisor owns reconnects
		SetConnectRetry(false).
		SetCleanSession(true)
	if broker.Username != "" {
		opts.SetUsername(broker.Username)
		opts.SetPassword(broker.Password)
	}
	if broker.PublishTopic != "" {
		opts.SetWill(broker.PublishTopic+"/status", "offline", 0, false)
	}
	return opts
}

// publisherFor returns the broker's persistent publisher, lazily
// dialing one on first use. Callers hold no lock across this call.
func (g *Gateway) publisherFor(broker domain.DeviceMQTT) (mqtt.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if client, ok := g.publishers[broker.ID]; ok && client.IsConnected() {
		return client, nil
	}

	opts := clientOptions(broker, "pub")
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timed out for broker %d", broker.ID)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect failed for broker %d: %w", broker.ID, err)
	}
	g.publishers[broker.ID] = client
	return client, nil
}

func (g *Gateway) evictPublisher(brokerID uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if client, ok := g.publishers[brokerID]; ok {
		client.Disconnect(100)
		delete(g.publishers, brokerID)
	}
}

// Publish is non-blocking fire-and-forget at QoS 0. On failure the
// publisher is evicted; the next Publish call recreates it.
func (g *Gateway) Publish(broker domain.DeviceMQTT, topic string, payload []byte) error {
	client, err := g.publisherFor(broker)
	if err != nil {
		g.evictPublisher(broker.ID)
		return err
	}
	token := client.Publish(topic, 0, false, payload)
	go func() {
		// Fire-and-forget per spec: this goroutine exists only to
		// surface a failed PUBACK wait to the log/eviction path
		// without blocking the caller on token.Wait().
		if !token.WaitTimeout(5 * time.Second) {
			return
		}
		if err := token.Error(); err != nil {
			g.log.Warn().Err(err).Uint("broker_id", broker.ID).Msg("publish failed, evicting publisher")
			g.evictPublisher(broker.ID)
		}
	}()
	return nil
}

// ConnectBroker performs a blocking test connect with a 5-second
// success window: attempt connect, poll the CONNACK latch every
// 100ms, then stop and disconnect regardless of outcome.
func (g *Gateway) ConnectBroker(ctx context.Context, broker domain.DeviceMQTT) (bool, string) {
	opts := clientOptions(broker, "probe")
	client := mqtt.NewClient(opts)
	token := client.Connect()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if token.WaitTimeout(100 * time.Millisecond) {
			break
		}
	}
	connected := client.IsConnected()
	message := "connected"
	if err := token.Error(); err != nil {
		message = err.Error()
	} else if !connected {
		message = "CONNACK not received within 5s"
	}
	client.Disconnect(100)
	return connected, message
}

// Close disconnects every publisher and subscriber, used on shutdown.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, client := range g.publishers {
		client.Disconnect(250)
		delete(g.publishers, id)
	}
	for id, sub := range g.subscribers {
		sub.stop()
		delete(g.subscribers, id)
	}
}
