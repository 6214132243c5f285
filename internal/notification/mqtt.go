package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// MQTTNotifier publishes notifications to a broker topic. Critical alert
// events go to "<topic>/<city>" so subscribers can filter by location.
type MQTTNotifier struct {
	client mqtt.Client
	topic  string
	qos    byte
	logger *slog.Logger
}

// NewMQTTNotifier configures a client for broker but does not connect.
func NewMQTTNotifier(broker, topic string, qos int, logger *slog.Logger) *MQTTNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("env-monitor-" + uuid.NewString()[:8])
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	return newMQTTNotifier(mqtt.NewClient(opts), topic, qos, logger)
}

func newMQTTNotifier(client mqtt.Client, topic string, qos int, logger *slog.Logger) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic, qos: byte(qos), logger: logger}
}

// Connect waits for the initial connection, respecting ctx.
func (m *MQTTNotifier) Connect(ctx context.Context) error {
	if m.client.IsConnected() {
		return nil
	}

	token := m.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (m *MQTTNotifier) Name() string { return "mqtt" }

func (m *MQTTNotifier) Send(ctx context.Context, n Notification) error {
	if !m.client.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	topic := m.Topic(n)
	token := m.client.Publish(topic, m.qos, false, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	m.logger.Debug("published notification", "topic", topic)
	return nil
}

// Topic returns the topic a notification is published to
func (m *MQTTNotifier) Topic(n Notification) string {
	if n.Event != nil && n.Event.Location != "" {
		return m.topic + "/" + n.Event.Location
	}
	return m.topic
}

// Disconnect closes the connection, letting in-flight work finish for 250ms
func (m *MQTTNotifier) Disconnect() {
	m.client.Disconnect(250)
}
