package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jmailbox/internal/config"
)

func runNATSServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

type received struct {
	mu     sync.Mutex
	topics []string
	bodies []string
}

func (r *received) handle(topic string, payload []byte, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.bodies = append(r.bodies, string(payload))
}

func (r *received) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

func TestSubjectMapping(t *testing.T) {
	cases := map[string]string{
		"jmailbox/+/status":  "jmailbox.*.status",
		"jmailbox/D1/status": "jmailbox.D1.status",
		"jmailbox/#":         "jmailbox.>",
	}
	for topic, subject := range cases {
		assert.Equal(t, subject, ToSubject(topic))
	}
	assert.Equal(t, "jmailbox/D1/command", FromSubject("jmailbox.D1.command"))
}

func TestNATS_RoundTrip(t *testing.T) {
	srv := runNATSServer(t)

	adapter := NewNATS(config.NATSConfig{URL: srv.ClientURL(), Name: "test"}, nil)
	var got received
	adapter.OnMessage(got.handle)

	// subscribing before connect is deferred to Connect
	require.NoError(t, adapter.Subscribe([]string{"jmailbox/+/status", "jmailbox/+/log"}))
	require.False(t, adapter.IsConnected())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, adapter.Connect(ctx))
	defer adapter.Close()
	require.True(t, adapter.IsConnected())

	device, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer device.Close()

	cmds := make(chan *nats.Msg, 1)
	_, err = device.ChanSubscribe("jmailbox.D1.command", cmds)
	require.NoError(t, err)
	require.NoError(t, device.Flush())

	require.NoError(t, device.Publish("jmailbox.D1.status", []byte(`{"state":"IDLE"}`)))
	require.NoError(t, device.Publish("jmailbox.D1.sensor", []byte(`{"distance":3}`))) // not subscribed
	require.NoError(t, device.Publish("jmailbox.D1.log", []byte(`{"message":"hi"}`)))
	require.NoError(t, device.Flush())

	require.Eventually(t, func() bool { return got.len() == 2 }, 5*time.Second, 10*time.Millisecond)
	got.mu.Lock()
	assert.ElementsMatch(t, []string{"jmailbox/D1/status", "jmailbox/D1/log"}, got.topics)
	got.mu.Unlock()

	require.NoError(t, adapter.Publish("jmailbox/D1/command", []byte(`{"command":"open_door"}`), 1))
	select {
	case msg := <-cmds:
		assert.Equal(t, `{"command":"open_door"}`, string(msg.Data))
	case <-time.After(5 * time.Second):
		t.Fatal("command not delivered")
	}
}

func TestNATS_PublishWithoutConnection(t *testing.T) {
	adapter := NewNATS(config.NATSConfig{URL: "nats://127.0.0.1:1"}, nil)
	err := adapter.Publish("jmailbox/D1/command", []byte(`{}`), 0)
	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.False(t, adapter.IsConnected())
	adapter.Close()
}

func TestNATS_ConnectFails(t *testing.T) {
	adapter := NewNATS(config.NATSConfig{URL: "nats://127.0.0.1:1"}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, adapter.Connect(ctx))
}

func TestNATS_SubscribeIsIdempotent(t *testing.T) {
	srv := runNATSServer(t)

	adapter := NewNATS(config.NATSConfig{URL: srv.ClientURL(), Name: "test"}, nil)
	var got received
	adapter.OnMessage(got.handle)

	// once before connect, twice after
	require.NoError(t, adapter.Subscribe([]string{"jmailbox/+/log"}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, adapter.Connect(ctx))
	defer adapter.Close()
	require.NoError(t, adapter.Subscribe([]string{"jmailbox/+/log"}))
	require.NoError(t, adapter.Subscribe([]string{"jmailbox/+/log", "jmailbox/+/alert"}))

	device, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer device.Close()

	require.NoError(t, device.Publish("jmailbox.D1.log", []byte(`{"message":"once"}`)))
	require.NoError(t, device.Publish("jmailbox.D1.alert", []byte(`{"reason":"tilt"}`)))
	require.NoError(t, device.Flush())

	require.Eventually(t, func() bool { return got.len() >= 2 }, 5*time.Second, 10*time.Millisecond)
	// give a duplicate delivery time to show up
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, got.len())

	adapter.mu.RLock()
	assert.Equal(t, []string{"jmailbox/+/log", "jmailbox/+/alert"}, adapter.patterns)
	assert.Len(t, adapter.subs, 2)
	adapter.mu.RUnlock()
}
