package decoder

import (
	"time"

	"jmailbox/internal/models"
)

// Event is a decoded, validated message. The concrete types below are the
// only implementations.
type Event interface {
	Device() string
	Kind() models.DeviceKind
	ReceivedAt() time.Time
	Category() Category
	isEvent()
}

// Header carries the fields every event has.
type Header struct {
	DeviceID   string
	DeviceKind models.DeviceKind
	Received   time.Time
	Topic      Category
}

func (h Header) Device() string          { return h.DeviceID }
func (h Header) Kind() models.DeviceKind { return h.DeviceKind }
func (h Header) ReceivedAt() time.Time   { return h.Received }
func (h Header) Category() Category      { return h.Topic }
func (Header) isEvent()                  {}

// DeliveryUpdate is present on a StatusEvent only when the payload has a
// non-empty resi.
type DeliveryUpdate struct {
	Resi   string
	Status string
	IsCOD  bool
	Amount float64
}

type StatusEvent struct {
	Header
	Fields   map[string]any
	Delivery *DeliveryUpdate
}

type LogEvent struct {
	Header
	Level   string
	Message string
	State   string
}

type AlertEvent struct {
	Header
	Reason   string
	Severity int
	Message  string
	State    string
}

// SensorEvent carries every numeric field of the payload as a named metric.
type SensorEvent struct {
	Header
	Metrics map[string]float64
}

// ImageEvent keeps the image base64-encoded; decoding the picture is left to
// the reconciler so that a bad image cannot fail the whole message.
type ImageEvent struct {
	Header
	Image   string
	Resi    string
	Session string
}

// ActivityEvent covers command, camera and payment traffic: it only proves
// the device is alive.
type ActivityEvent struct {
	Header
	Fields map[string]any
}
