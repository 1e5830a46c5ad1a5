package decoder

import (
	"strings"

	"jmailbox/internal/models"
)

// Category is the last segment of a topic.
type Category string

const (
	CategoryStatus  Category = "status"
	CategoryCommand Category = "command"
	CategorySensor  Category = "sensor"
	CategoryAlert   Category = "alert"
	CategoryLog     Category = "log"
	CategoryCamera  Category = "camera"
	CategoryPayment Category = "payment"
	CategoryImage   Category = "image"
)

// Categories lists every category the dashboard subscribes to, in wire order.
var Categories = []Category{
	CategoryStatus,
	CategoryCommand,
	CategorySensor,
	CategoryAlert,
	CategoryLog,
	CategoryCamera,
	CategoryPayment,
	CategoryImage,
}

func (c Category) known() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

const (
	topicSep        = "/"
	singleLevelWild = "+"
	configSegment   = "config"
)

// SubscriptionPatterns returns one <namespace>/+/<category> pattern per category.
func SubscriptionPatterns(namespace string) []string {
	out := make([]string, 0, len(Categories))
	for _, c := range Categories {
		out = append(out, namespace+topicSep+singleLevelWild+topicSep+string(c))
	}
	return out
}

// CommandTopic is where commands for a device are published.
func CommandTopic(namespace, deviceID string) string {
	return namespace + topicSep + deviceID + topicSep + string(CategoryCommand)
}

// ConfigTopic is where configuration updates for a device are published.
func ConfigTopic(namespace, deviceID string) string {
	return namespace + topicSep + deviceID + topicSep + configSegment
}

// splitTopic extracts device id and category from <namespace>/<deviceId>/<category>.
func splitTopic(namespace, topic string) (string, Category, bool) {
	parts := strings.Split(topic, topicSep)
	if len(parts) != 3 {
		return "", "", false
	}
	if parts[0] != namespace || parts[1] == "" {
		return "", "", false
	}
	cat := Category(parts[2])
	if !cat.known() {
		return "", "", false
	}
	return parts[1], cat, true
}

// InferKind classifies a device id. Pure and total: any string yields a
// kind. An id containing the camera marker (case-insensitive) is a camera.
func InferKind(id, cameraMarker string) models.DeviceKind {
	if cameraMarker != "" && strings.Contains(strings.ToLower(id), strings.ToLower(cameraMarker)) {
		return models.KindCamera
	}
	return models.KindController
}
