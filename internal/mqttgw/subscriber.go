package mqttgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"industrial-bridge/internal/apperr"
	"industrial-bridge/internal/domain"
)

// inboundMessage is the wire shape of a subscribed command: required
// device_id, Parameter_Name, value; message_id optional.
type inboundMessage struct {
	DeviceID      string      `json:"device_id"`
	ParameterName string      `json:"Parameter_Name"`
	Value         interface{} `json:"value"`
	MessageID     string      `json:"message_id,omitempty"`
}

// subscription is the running state for one broker's command
// subscriber: the paho client and a bounded channel decoupling broker
// I/O from the handler goroutine per the design note on inbound MQTT
// dispatch.
type subscription struct {
	client  mqtt.Client
	jobs    chan InboundCommand
	stopped chan struct{}
	once    sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() {
		close(s.stopped)
		s.client.Disconnect(250)
	})
}

const commandQueueDepth = 64

// StartSubscriber subscribes to "{subscribe_topic}/#" and routes
// parsed inbound commands to handler, publishing a confirmation or
// error document afterward. Starting a subscriber twice for the same
// broker is idempotent: the previous one is stopped first.
func (g *Gateway) StartSubscriber(ctx context.Context, broker domain.DeviceMQTT, handler CommandHandler) error {
	if broker.SubscribeTopic == "" {
		return nil
	}

	g.mu.Lock()
	if existing, ok := g.subscribers[broker.ID]; ok {
		existing.stop()
		delete(g.subscribers, broker.ID)
	}
	g.mu.Unlock()

	sub := &subscription{
		jobs:    make(chan InboundCommand, commandQueueDepth),
		stopped: make(chan struct{}),
	}

	opts := clientOptions(broker, "sub")
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		topic := broker.SubscribeTopic + "/#"
		c.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			g.onMessage(broker, msg, sub)
		})
	})
	sub.client = mqtt.NewClient(opts)

	token := sub.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscriber connect timed out for broker %d", broker.ID)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscriber connect failed for broker %d: %w", broker.ID, err)
	}

	go g.drainCommands(broker, sub, handler)

	g.mu.Lock()
	g.subscribers[broker.ID] = sub
	g.mu.Unlock()
	return nil
}

// StopSubscriber stops and disconnects the broker's subscriber, if
// any. Idempotent.
func (g *Gateway) StopSubscriber(brokerID uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sub, ok := g.subscribers[brokerID]; ok {
		sub.stop()
		delete(g.subscribers, brokerID)
	}
}

// RestartSubscriber is called by the connection supervisor after a
// successful broker reconnect when subscribe_topic is configured.
func (g *Gateway) RestartSubscriber(ctx context.Context, broker domain.DeviceMQTT, handler CommandHandler) error {
	return g.StartSubscriber(ctx, broker, handler)
}

func (g *Gateway) onMessage(broker domain.DeviceMQTT, msg mqtt.Message, sub *subscription) {
	var parsed inboundMessage
	if err := json.Unmarshal(msg.Payload(), &parsed); err != nil {
		wrapped := apperr.New(apperr.CommandMalformed, "mqttgw.onMessage", err)
		g.log.Warn().Err(wrapped).Str("topic", msg.Topic()).Msg("malformed inbound command JSON")
		g.publishError(broker, "", "", "", wrapped.Error())
		return
	}

	hwid := parsed.DeviceID
	if tail := topicTail(msg.Topic(), broker.SubscribeTopic); tail != "" {
		hwid = tail
	}

	messageID := parsed.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	cmd := InboundCommand{
		HWID:          hwid,
		ParameterName: parsed.ParameterName,
		Value:         fmt.Sprintf("%v", parsed.Value),
		MessageID:     messageID,
	}

	select {
	case sub.jobs <- cmd:
	default:
		g.log.Warn().Str("hwid", hwid).Msg("command queue full, dropping inbound message")
	}
}

// topicTail returns the final path segment when the topic has the
// shape "{subscribeTopic}/{hwid}", else "".
func topicTail(topic, subscribeTopic string) string {
	prefix := subscribeTopic + "/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(topic, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	return rest
}

func (g *Gateway) drainCommands(broker domain.DeviceMQTT, sub *subscription, handler CommandHandler) {
	for {
		select {
		case <-sub.stopped:
			return
		case cmd := <-sub.jobs:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := handler(ctx, cmd)
			cancel()
			if err != nil {
				g.publishError(broker, cmd.HWID, cmd.ParameterName, cmd.MessageID, err.Error())
				continue
			}
			g.publishConfirmation(broker, cmd.HWID, cmd.ParameterName, cmd.MessageID)
		}
	}
}

func confirmationDoc(hwid, parameter, messageID string) map[string]interface{} {
	doc := map[string]interface{}{
		"device_id":      hwid,
		"Parameter_Name": parameter,
		"status":         "success",
		"timestamp":      time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
	}
	if messageID != "" {
		doc["message_id"] = messageID
	}
	return doc
}

func errorDoc(hwid, parameter, messageID, errText string) map[string]interface{} {
	doc := map[string]interface{}{
		"device_id":      hwid,
		"Parameter_Name": parameter,
		"status":         "error",
		"error":          errText,
		"timestamp":      time.Now().UTC().Format("2006-01-02T15:04:05.000000"),
	}
	if messageID != "" {
		doc["message_id"] = messageID
	}
	return doc
}

func (g *Gateway) publishConfirmation(broker domain.DeviceMQTT, hwid, parameter, messageID string) {
	if broker.PublishTopic == "" {
		return
	}
	payload, _ := json.Marshal(confirmationDoc(hwid, parameter, messageID))
	_ = g.Publish(broker, broker.PublishTopic+"/confirmation", payload)
}

func (g *Gateway) publishError(broker domain.DeviceMQTT, hwid, parameter, messageID, errText string) {
	if broker.PublishTopic == "" {
		return
	}
	payload, _ := json.Marshal(errorDoc(hwid, parameter, messageID, errText))
	_ = g.Publish(broker, broker.PublishTopic+"/error", payload)
}
