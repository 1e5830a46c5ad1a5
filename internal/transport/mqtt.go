package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"jmailbox/internal/config"
	"jmailbox/internal/logger"
)

const disconnectQuiesceMs = 250

// MQTT is the broker adapter devices talk to in production. Subscriptions
// are replayed on every (re)connect because sessions are clean.
type MQTT struct {
	cfg config.MQTTConfig
	log *logger.Logger
	now func() time.Time

	mu       sync.RWMutex
	client   mqtt.Client
	handler  Handler
	patterns []string
}

func NewMQTT(cfg config.MQTTConfig, log *logger.Logger) *MQTT {
	return &MQTT{cfg: cfg, log: log, now: time.Now}
}

func (m *MQTT) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(m.cfg.Broker).
		SetClientID(fmt.Sprintf("%s_%s", m.cfg.ClientIDPrefix, uuid.NewString()[:8])).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost)
	if m.cfg.KeepAlive > 0 {
		opts.SetKeepAlive(m.cfg.KeepAlive)
	}
	if m.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(m.cfg.ConnectTimeout)
	}
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	return opts
}

// Connect dials the broker and blocks until the CONNACK or ctx ends.
func (m *MQTT) Connect(ctx context.Context) error {
	client := mqtt.NewClient(m.clientOptions())
	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	tok := client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", m.cfg.Broker, err)
	}
	return nil
}

// Subscribe records the patterns and subscribes right away when connected.
// Patterns already registered are skipped. All patterns are resubscribed on
// every reconnect.
func (m *MQTT) Subscribe(patterns []string) error {
	m.mu.Lock()
	var added []string
	m.patterns, added = addPatterns(m.patterns, patterns)
	client := m.client
	m.mu.Unlock()

	if client == nil || !client.IsConnectionOpen() {
		return nil
	}
	return m.subscribe(client, added)
}

func (m *MQTT) subscribe(client mqtt.Client, patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	filters := make(map[string]byte, len(patterns))
	for _, p := range patterns {
		filters[p] = m.cfg.QoS
	}
	tok := client.SubscribeMultiple(filters, m.onMessage)
	if !tok.WaitTimeout(m.timeout(m.cfg.ConnectTimeout)) {
		return fmt.Errorf("mqtt subscribe: timed out")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	if m.log != nil {
		m.log.Infow("mqtt_subscribed", "patterns", patterns)
	}
	return nil
}

func (m *MQTT) OnMessage(h Handler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// Publish sends payload and waits for the broker acknowledgement required by
// qos, bounded by the publish timeout.
func (m *MQTT) Publish(topic string, payload []byte, qos byte) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}

	tok := client.Publish(topic, qos, false, payload)
	if !tok.WaitTimeout(m.timeout(m.cfg.PublishTimeout)) {
		return fmt.Errorf("%w: %s timed out", ErrPublishFailed, topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, topic, err)
	}
	return nil
}

func (m *MQTT) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil && m.client.IsConnectionOpen()
}

func (m *MQTT) Close() {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client != nil {
		client.Disconnect(disconnectQuiesceMs)
	}
}

func (m *MQTT) onConnect(client mqtt.Client) {
	m.mu.RLock()
	patterns := append([]string(nil), m.patterns...)
	m.mu.RUnlock()

	if m.log != nil {
		m.log.Infow("mqtt_connected", "broker", m.cfg.Broker)
	}
	if err := m.subscribe(client, patterns); err != nil && m.log != nil {
		m.log.Errorw("mqtt_resubscribe_failed", "err", err)
	}
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	if m.log != nil {
		m.log.Warnw("mqtt_connection_lost", "err", err)
	}
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h == nil {
		return
	}
	h(msg.Topic(), msg.Payload(), m.now())
}

func (m *MQTT) timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
