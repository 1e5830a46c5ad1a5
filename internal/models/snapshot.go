package models

import (
	"image"
	"time"
)

// PackageDeliveryState tracks only the latest delivery for the whole session.
type PackageDeliveryState struct {
	Resi      string    `json:"resi"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	IsCOD     bool      `json:"is_cod"`
	Amount    float64   `json:"amount"`
}

// CapturedImage is the last image a camera sent. Image and Raw are never
// mutated after construction, so copies may share them.
type CapturedImage struct {
	Image     image.Image `json:"-"`
	Format    string      `json:"format"` // jpeg | png | gif
	Raw       []byte      `json:"-"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Timestamp time.Time   `json:"timestamp"`
	Resi      string      `json:"resi,omitempty"`
	SessionID string      `json:"session,omitempty"`
}

// Snapshot is an independent copy of the whole fleet state.
type Snapshot struct {
	TakenAt  time.Time                               `json:"taken_at"`
	Devices  []DeviceRecord                          `json:"devices"` // ordered by first sighting
	Series   map[string]map[string][]TimeSeriesPoint `json:"series"`  // device -> metric -> points
	Logs     []LogEntry                              `json:"logs"`
	Alerts   []AlertEntry                            `json:"alerts"`
	Delivery *PackageDeliveryState                   `json:"delivery,omitempty"`
	Images   map[string]CapturedImage                `json:"images"`
}

// Device returns the record with the given id from the snapshot.
func (s Snapshot) Device(id string) (DeviceRecord, bool) {
	for _, d := range s.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceRecord{}, false
}
