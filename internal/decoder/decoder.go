package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"jmailbox/internal/models"
)

// DecodeErrorKind distinguishes the two ways a message is rejected.
type DecodeErrorKind int

const (
	MalformedPayload DecodeErrorKind = iota + 1
	UnrecognizedTopic
)

func (k DecodeErrorKind) String() string {
	switch k {
	case MalformedPayload:
		return "malformed_payload"
	case UnrecognizedTopic:
		return "unrecognized_topic"
	default:
		return "unknown"
	}
}

var (
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrUnrecognizedTopic = errors.New("unrecognized topic")
)

// DecodeError is returned for every rejected message. Both kinds are
// recoverable: the caller drops the message and moves on.
type DecodeError struct {
	Kind  DecodeErrorKind
	Topic string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s on %q: %v", e.Kind, e.Topic, e.Err)
	}
	return fmt.Sprintf("%s on %q", e.Kind, e.Topic)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel for the error's kind.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformedPayload:
		return e.Kind == MalformedPayload
	case ErrUnrecognizedTopic:
		return e.Kind == UnrecognizedTopic
	}
	return false
}

// Payload keys with a fixed meaning.
const (
	keyResi     = "resi"
	keyStatus   = "status"
	keyIsCOD    = "is_cod"
	keyAmount   = "amount"
	keyLevel    = "level"
	keyMessage  = "message"
	keyState    = "state"
	keyReason   = "reason"
	keySeverity = "severity"
	keyImage    = "image"
	keySession  = "session"
)

// sensorReserved are payload keys that are never treated as metrics.
var sensorReserved = map[string]struct{}{
	"device":    {},
	"timestamp": {},
}

// Decoder is stateless; a zero value with Namespace set is ready to use.
type Decoder struct {
	Namespace    string
	CameraMarker string
}

func New(namespace, cameraMarker string) Decoder {
	return Decoder{Namespace: namespace, CameraMarker: cameraMarker}
}

// Decode classifies topic and parses payload into a typed Event. The topic is
// checked first, so an unknown topic is reported regardless of the payload.
func (d Decoder) Decode(topic string, payload []byte, receivedAt time.Time) (Event, error) {
	deviceID, cat, ok := splitTopic(d.Namespace, topic)
	if !ok {
		return nil, &DecodeError{Kind: UnrecognizedTopic, Topic: topic}
	}

	fields, err := parseObject(payload)
	if err != nil {
		return nil, &DecodeError{Kind: MalformedPayload, Topic: topic, Err: err}
	}

	h := Header{
		DeviceID:   deviceID,
		DeviceKind: InferKind(deviceID, d.CameraMarker),
		Received:   receivedAt,
		Topic:      cat,
	}

	switch cat {
	case CategoryStatus:
		return StatusEvent{Header: h, Fields: fields, Delivery: deliveryFrom(fields)}, nil
	case CategoryLog:
		return LogEvent{
			Header:  h,
			Level:   normalizeLevel(stringField(fields, keyLevel)),
			Message: stringField(fields, keyMessage),
			State:   stringField(fields, keyState),
		}, nil
	case CategoryAlert:
		return AlertEvent{
			Header:   h,
			Reason:   stringField(fields, keyReason),
			Severity: severityField(fields),
			Message:  stringField(fields, keyMessage),
			State:    stringField(fields, keyState),
		}, nil
	case CategorySensor:
		return SensorEvent{Header: h, Metrics: numericFields(fields)}, nil
	case CategoryImage:
		img, _ := fields[keyImage].(string)
		return ImageEvent{
			Header:  h,
			Image:   img,
			Resi:    stringField(fields, keyResi),
			Session: stringField(fields, keySession),
		}, nil
	default:
		return ActivityEvent{Header: h, Fields: fields}, nil
	}
}

// parseObject accepts only a JSON object. Numbers stay json.Number so that
// integers are not silently turned into floats in latest status.
func parseObject(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("payload is not an object")
	}
	if dec.More() {
		return nil, errors.New("trailing data after object")
	}
	return fields, nil
}

func deliveryFrom(fields map[string]any) *DeliveryUpdate {
	resi := stringField(fields, keyResi)
	if resi == "" {
		return nil
	}
	return &DeliveryUpdate{
		Resi:   resi,
		Status: stringField(fields, keyStatus),
		IsCOD:  boolField(fields, keyIsCOD),
		Amount: floatField(fields, keyAmount),
	}
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

func boolField(fields map[string]any, key string) bool {
	v, ok := fields[key]
	if !ok || v == nil {
		return false
	}
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return err == nil && f != 0
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

func floatField(fields map[string]any, key string) float64 {
	v, ok := fields[key]
	if !ok || v == nil {
		return 0
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0
	}
	return f
}

// severityField defaults to 1 and clamps into 1..3.
func severityField(fields map[string]any) int {
	v, ok := fields[keySeverity]
	if !ok || v == nil {
		return models.SeverityLow
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return models.SeverityLow
	}
	sev := int(f)
	switch {
	case sev < models.SeverityLow:
		return models.SeverityLow
	case sev > models.SeverityHigh:
		return models.SeverityHigh
	}
	return sev
}

// numericFields picks every JSON number out of a sensor payload.
func numericFields(fields map[string]any) map[string]float64 {
	out := make(map[string]float64, len(fields))
	for k, v := range fields {
		if _, skip := sensorReserved[k]; skip {
			continue
		}
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		f, err := n.Float64()
		if err != nil {
			continue
		}
		out[k] = f
	}
	return out
}

func normalizeLevel(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return models.LevelInfo
	}
	return s
}
