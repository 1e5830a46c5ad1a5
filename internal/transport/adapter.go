package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jmailbox/internal/config"
	"jmailbox/internal/logger"
)

var (
	ErrNotConnected  = errors.New("transport not connected")
	ErrPublishFailed = errors.New("publish failed")
)

// Handler receives every message delivered on a subscribed topic together
// with the local receive time.
type Handler func(topic string, payload []byte, receivedAt time.Time)

// Adapter is the pub/sub connection the engine runs on. Topics always use
// the slash-separated <namespace>/<deviceId>/<category> form and MQTT
// wildcards; adapters translate as needed.
type Adapter interface {
	Connect(ctx context.Context) error
	Subscribe(patterns []string) error
	OnMessage(h Handler)
	Publish(topic string, payload []byte, qos byte) error
	IsConnected() bool
	Close()
}

var (
	_ Adapter = (*MQTT)(nil)
	_ Adapter = (*NATS)(nil)
)

// New builds the adapter selected by cfg.Transport.
func New(cfg config.Config, log *logger.Logger) (Adapter, error) {
	switch cfg.Transport.Driver {
	case config.DriverMQTT:
		return NewMQTT(cfg.MQTT, log.Named("mqtt")), nil
	case config.DriverNATS:
		return NewNATS(cfg.NATS, log.Named("nats")), nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport.Driver)
}

// addPatterns appends the patterns not already in have. It returns the
// updated list and the newly added patterns, in call order.
func addPatterns(have, patterns []string) (all, added []string) {
	seen := make(map[string]struct{}, len(have)+len(patterns))
	for _, p := range have {
		seen[p] = struct{}{}
	}
	all = have
	for _, p := range patterns {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		all = append(all, p)
		added = append(added, p)
	}
	return all, added
}
