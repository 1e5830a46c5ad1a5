package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"jmailbox/internal/config"
	"jmailbox/internal/logger"
)

const (
	natsConnectTimeout = 5 * time.Second
	natsReconnectWait  = 2 * time.Second
)

// ToSubject maps an MQTT topic or filter onto a NATS subject:
// '/' becomes '.', '+' becomes '*' and '#' becomes '>'.
func ToSubject(topic string) string {
	parts := strings.Split(topic, "/")
	for i, p := range parts {
		switch p {
		case "+":
			parts[i] = "*"
		case "#":
			parts[i] = ">"
		}
	}
	return strings.Join(parts, ".")
}

// FromSubject is the inverse of ToSubject for concrete (non-wildcard) subjects.
func FromSubject(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

// NATS carries the same topic layout over core NATS subjects. QoS is not
// available; every publish is at-most-once.
type NATS struct {
	cfg config.NATSConfig
	log *logger.Logger
	now func() time.Time

	mu       sync.RWMutex
	conn     *nats.Conn
	handler  Handler
	patterns []string
	subs     map[string]*nats.Subscription // by subject, for the current conn
}

func NewNATS(cfg config.NATSConfig, log *logger.Logger) *NATS {
	return &NATS{cfg: cfg, log: log, now: time.Now}
}

func (n *NATS) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := natsConnectTimeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}

	opts := []nats.Option{
		nats.Name(n.cfg.Name),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if n.log != nil {
				n.log.Warnw("nats_disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if n.log != nil {
				n.log.Infow("nats_reconnected", "url", nc.ConnectedUrl())
			}
		}),
	}

	conn, err := nats.Connect(n.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("nats connect %s: %w", n.cfg.URL, err)
	}

	n.mu.Lock()
	old := n.conn
	n.conn = conn
	n.subs = make(map[string]*nats.Subscription, len(n.patterns))
	pending := append([]string(nil), n.patterns...)
	n.mu.Unlock()
	if old != nil {
		old.Close()
	}

	if n.log != nil {
		n.log.Infow("nats_connected", "url", conn.ConnectedUrl())
	}
	return n.subscribe(conn, pending)
}

// Subscribe records the patterns and subscribes right away when connected.
// Patterns already registered are skipped, so repeated calls never double
// deliveries. The NATS client restores subscriptions after a reconnect on
// its own.
func (n *NATS) Subscribe(patterns []string) error {
	n.mu.Lock()
	var added []string
	n.patterns, added = addPatterns(n.patterns, patterns)
	conn := n.conn
	n.mu.Unlock()

	if conn == nil {
		return nil
	}
	return n.subscribe(conn, added)
}

func (n *NATS) subscribe(conn *nats.Conn, patterns []string) error {
	var subscribed []string
	for _, p := range patterns {
		subject := ToSubject(p)
		n.mu.Lock()
		if n.conn != conn {
			n.mu.Unlock()
			return ErrNotConnected
		}
		if _, ok := n.subs[subject]; ok {
			n.mu.Unlock()
			continue
		}
		sub, err := conn.Subscribe(subject, n.onMessage)
		if err != nil {
			n.mu.Unlock()
			return fmt.Errorf("nats subscribe %s: %w", p, err)
		}
		n.subs[subject] = sub
		n.mu.Unlock()
		subscribed = append(subscribed, p)
	}
	if len(subscribed) == 0 {
		return nil
	}
	if n.log != nil {
		n.log.Infow("nats_subscribed", "patterns", subscribed)
	}
	return conn.Flush()
}

func (n *NATS) OnMessage(h Handler) {
	n.mu.Lock()
	n.handler = h
	n.mu.Unlock()
}

// Publish ignores qos.
func (n *NATS) Publish(topic string, payload []byte, _ byte) error {
	n.mu.RLock()
	conn := n.conn
	n.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}
	if err := conn.Publish(ToSubject(topic), payload); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPublishFailed, topic, err)
	}
	return nil
}

func (n *NATS) IsConnected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.conn != nil && n.conn.IsConnected()
}

func (n *NATS) Close() {
	n.mu.Lock()
	conn := n.conn
	n.conn = nil
	n.subs = nil
	n.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (n *NATS) onMessage(msg *nats.Msg) {
	n.mu.RLock()
	h := n.handler
	n.mu.RUnlock()
	if h == nil {
		return
	}
	h(FromSubject(msg.Subject), msg.Data, n.now())
}
