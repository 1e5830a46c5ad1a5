package service

import (
	"context"
	"errors"
	"time"

	"jmailbox/internal/decoder"
	"jmailbox/internal/logger"
	"jmailbox/internal/metrics"
)

const DefaultQueueSize = 1024

type inbound struct {
	topic      string
	payload    []byte
	receivedAt time.Time
}

// Ingestor decouples the transport callback from decoding and reconciling.
// Handle never blocks; a single Run goroutine applies messages in arrival
// order.
type Ingestor struct {
	decoder    decoder.Decoder
	reconciler *Reconciler
	queue      chan inbound
	metrics    *metrics.Ingest
	log        *logger.Logger
}

func NewIngestor(dec decoder.Decoder, rec *Reconciler, queueSize int, m *metrics.Ingest, log *logger.Logger) *Ingestor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Ingestor{
		decoder:    dec,
		reconciler: rec,
		queue:      make(chan inbound, queueSize),
		metrics:    m,
		log:        log,
	}
}

// Handle enqueues a raw message. When the queue is full the message is
// dropped and counted.
func (i *Ingestor) Handle(topic string, payload []byte, receivedAt time.Time) {
	select {
	case i.queue <- inbound{topic: topic, payload: payload, receivedAt: receivedAt}:
		i.metrics.QueueDepth(len(i.queue))
	default:
		i.metrics.Dropped(metrics.ReasonQueueFull)
		if i.log != nil {
			i.log.Warnw("ingest_queue_full", "topic", topic)
		}
	}
}

// Run drains the queue until ctx is canceled.
func (i *Ingestor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-i.queue:
			i.metrics.QueueDepth(len(i.queue))
			_ = i.Ingest(msg.topic, msg.payload, msg.receivedAt)
		}
	}
}

// Ingest decodes and reconciles one message synchronously. A message that
// fails to decode leaves the store untouched.
func (i *Ingestor) Ingest(topic string, payload []byte, receivedAt time.Time) error {
	ev, err := i.decoder.Decode(topic, payload, receivedAt)
	if err != nil {
		reason := metrics.ReasonMalformedPayload
		if errors.Is(err, decoder.ErrUnrecognizedTopic) {
			reason = metrics.ReasonUnrecognizedTopic
		}
		i.metrics.Dropped(reason)
		if i.log != nil {
			i.log.Debugw("message_dropped", "topic", topic, "reason", reason, "err", err)
		}
		return err
	}

	i.metrics.Received(string(ev.Category()))
	i.reconciler.Apply(ev)
	return nil
}
