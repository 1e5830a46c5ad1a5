package transport

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jmailbox/internal/config"
)

// fakeMessage implements mqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func testMQTTConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker:         "tcp://127.0.0.1:1883",
		ClientIDPrefix: "dashboard",
		Username:       "user",
		Password:       "secret",
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 2 * time.Second,
		PublishTimeout: time.Second,
		QoS:            1,
	}
}

func TestMQTT_ClientOptions(t *testing.T) {
	m := NewMQTT(testMQTTConfig(), nil)
	opts := m.clientOptions()

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "127.0.0.1:1883", opts.Servers[0].Host)
	assert.True(t, strings.HasPrefix(opts.ClientID, "dashboard_"))
	assert.Equal(t, "user", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, int64(30), opts.KeepAlive)
	assert.Equal(t, 2*time.Second, opts.ConnectTimeout)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)

	other := m.clientOptions()
	assert.NotEqual(t, opts.ClientID, other.ClientID, "client ids are unique per connection")
}

func TestMQTT_OnMessageStampsReceiveTime(t *testing.T) {
	m := NewMQTT(testMQTTConfig(), nil)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	// no handler yet: must not panic
	m.onMessage(nil, fakeMessage{topic: "jmailbox/D1/status", payload: []byte(`{}`)})

	var gotTopic string
	var gotAt time.Time
	var gotPayload []byte
	m.OnMessage(func(topic string, payload []byte, receivedAt time.Time) {
		gotTopic, gotPayload, gotAt = topic, payload, receivedAt
	})
	m.onMessage(nil, fakeMessage{topic: "jmailbox/D1/status", payload: []byte(`{"state":"IDLE"}`)})

	assert.Equal(t, "jmailbox/D1/status", gotTopic)
	assert.Equal(t, `{"state":"IDLE"}`, string(gotPayload))
	assert.Equal(t, at, gotAt)
}

func TestMQTT_NotConnected(t *testing.T) {
	m := NewMQTT(testMQTTConfig(), nil)

	assert.False(t, m.IsConnected())
	err := m.Publish("jmailbox/D1/command", []byte(`{}`), 1)
	assert.True(t, errors.Is(err, ErrNotConnected))

	// recorded for replay on connect
	require.NoError(t, m.Subscribe([]string{"jmailbox/+/status"}))
	assert.Equal(t, []string{"jmailbox/+/status"}, m.patterns)

	// repeats are not recorded twice
	require.NoError(t, m.Subscribe([]string{"jmailbox/+/status", "jmailbox/+/log"}))
	require.NoError(t, m.Subscribe([]string{"jmailbox/+/log"}))
	assert.Equal(t, []string{"jmailbox/+/status", "jmailbox/+/log"}, m.patterns)
	m.Close()
}

func TestAddPatterns(t *testing.T) {
	cases := []struct {
		name      string
		have      []string
		patterns  []string
		wantAll   []string
		wantAdded []string
	}{
		{"empty", nil, []string{"a/+/log"}, []string{"a/+/log"}, []string{"a/+/log"}},
		{"repeat", []string{"a/+/log"}, []string{"a/+/log"}, []string{"a/+/log"}, nil},
		{"duplicate in call", nil, []string{"a/+/log", "a/+/log"}, []string{"a/+/log"}, []string{"a/+/log"}},
		{"mixed", []string{"a/+/log"}, []string{"a/+/alert", "a/+/log"}, []string{"a/+/log", "a/+/alert"}, []string{"a/+/alert"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			all, added := addPatterns(tc.have, tc.patterns)
			assert.Equal(t, tc.wantAll, all)
			assert.Equal(t, tc.wantAdded, added)
		})
	}
}

func TestNew_SelectsDriver(t *testing.T) {
	cfg := config.Config{MQTT: testMQTTConfig(), NATS: config.NATSConfig{URL: "nats://127.0.0.1:4222"}}

	cfg.Transport.Driver = config.DriverMQTT
	a, err := New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &MQTT{}, a)

	cfg.Transport.Driver = config.DriverNATS
	a, err = New(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &NATS{}, a)

	cfg.Transport.Driver = "carrier-pigeon"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}
