package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "jmailbox"

// Drop reasons.
const (
	ReasonMalformedPayload  = "malformed_payload"
	ReasonUnrecognizedTopic = "unrecognized_topic"
	ReasonQueueFull         = "queue_full"
	ReasonImageDecode       = "image_decode"
)

// Dispatch results.
const (
	ResultSent         = "sent"
	ResultNotConnected = "not_connected"
	ResultFailed       = "publish_failed"
	ResultInvalid      = "invalid"
)

// Ingest holds the counters of the ingestion and command paths. A nil
// *Ingest is valid and records nothing.
type Ingest struct {
	received   *prometheus.CounterVec
	applied    *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	evicted    prometheus.Counter
	commands   *prometheus.CounterVec
	devices    prometheus.Gauge
	queueDepth prometheus.Gauge
}

// NewRegistry returns a registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// NewIngest creates the metrics and registers them with reg.
func NewIngest(reg prometheus.Registerer) (*Ingest, error) {
	m := &Ingest{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Messages delivered by the transport, by topic category.",
		}, []string{"category"}),
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_applied_total",
			Help:      "Decoded events folded into the store, by category.",
		}, []string{"category"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "messages_dropped_total",
			Help:      "Messages or message parts discarded, by reason.",
		}, []string{"reason"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "series_points_evicted_total",
			Help:      "Time-series points evicted because a buffer was full.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "dispatched_total",
			Help:      "Command dispatch attempts, by result.",
		}, []string{"result"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "devices",
			Help:      "Devices currently tracked.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Messages waiting to be decoded.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.received, m.applied, m.dropped, m.evicted, m.commands, m.devices, m.queueDepth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Ingest) Received(category string) {
	if m != nil {
		m.received.WithLabelValues(category).Inc()
	}
}

func (m *Ingest) Applied(category string) {
	if m != nil {
		m.applied.WithLabelValues(category).Inc()
	}
}

func (m *Ingest) Dropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Ingest) Evicted(n int) {
	if m != nil && n > 0 {
		m.evicted.Add(float64(n))
	}
}

func (m *Ingest) Command(result string) {
	if m != nil {
		m.commands.WithLabelValues(result).Inc()
	}
}

func (m *Ingest) Devices(n int) {
	if m != nil {
		m.devices.Set(float64(n))
	}
}

func (m *Ingest) QueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}
