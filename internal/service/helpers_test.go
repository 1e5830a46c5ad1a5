package service

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"jmailbox/internal/decoder"
	"jmailbox/internal/metrics"
	"jmailbox/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
)

const testNS = "jmailbox"

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestIngestor(store repository.StateRepo) *Ingestor {
	return NewIngestor(decoder.New(testNS, "cam"), NewReconciler(store, nil, nil), 8, nil, nil)
}

func topic(device, cat string) string { return testNS + "/" + device + "/" + cat }

// pngBase64 renders a w x h image and returns it base64-encoded.
func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// fakePublisher records publishes and fails on demand.
type fakePublisher struct {
	mu        sync.Mutex
	connected bool
	err       error
	topics    []string
	payloads  [][]byte
	qos       []byte
}

func (f *fakePublisher) Publish(topic string, payload []byte, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	f.qos = append(f.qos, qos)
	return nil
}

func (f *fakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func newTestMetrics(t *testing.T) (*metrics.Ingest, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewIngest(reg)
	if err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	return m, reg
}

// metricValue reads a gauge or counter from reg. labels are name/value
// pairs the series must carry; a missing series reads as 0.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			have := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if have[labels[i]] != labels[i+1] {
					continue series
				}
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
