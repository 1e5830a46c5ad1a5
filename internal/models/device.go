package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DeviceKind is inferred once from the device identifier and never changes.
type DeviceKind int

const (
	KindController DeviceKind = iota
	KindCamera
)

func (k DeviceKind) String() string {
	if k == KindCamera {
		return "camera"
	}
	return "controller"
}

// Hardware returns the board name operators know the device by.
func (k DeviceKind) Hardware() string {
	if k == KindCamera {
		return "ESP32-CAM"
	}
	return "ESP32"
}

func (k DeviceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *DeviceKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "camera":
		*k = KindCamera
	case "controller":
		*k = KindController
	default:
		return fmt.Errorf("unknown device kind %q", s)
	}
	return nil
}

// DeviceRecord is the folded state of one device seen on the wire.
type DeviceRecord struct {
	ID           string         `json:"id"`
	Kind         DeviceKind     `json:"kind"`
	FirstSeen    time.Time      `json:"first_seen"`
	LastSeen     time.Time      `json:"last_seen"`     // receive time, never moves backwards
	LatestStatus map[string]any `json:"latest_status"` // last write wins per field
}

// TimeSeriesPoint is one sample of a named metric.
type TimeSeriesPoint struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Liveness is derived from the silence since LastSeen; it is never stored.
type Liveness string

const (
	LivenessOnline  Liveness = "ONLINE"
	LivenessIdle    Liveness = "IDLE"
	LivenessOffline Liveness = "OFFLINE"
)

// DeviceStatus is a DeviceRecord decorated with its liveness at read time.
type DeviceStatus struct {
	DeviceRecord
	Hardware string        `json:"hardware"`
	Liveness Liveness      `json:"liveness"`
	Silence  time.Duration `json:"silence_ns"`
}
