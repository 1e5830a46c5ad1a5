package repository

import (
	"time"

	"jmailbox/internal/models"
)

// Tx is the mutation handle passed to Update. It is only valid inside the
// Update callback.
type Tx struct {
	s *MemoryStore
}

// TouchDevice creates the device on first sighting and advances LastSeen.
// The kind is fixed at creation; later calls ignore the kind argument.
// LastSeen never moves backwards. Reports whether the device was created.
func (tx *Tx) TouchDevice(id string, kind models.DeviceKind, at time.Time) bool {
	d, ok := tx.s.devices[id]
	if !ok {
		tx.s.devices[id] = &deviceState{
			record: models.DeviceRecord{
				ID:           id,
				Kind:         kind,
				FirstSeen:    at,
				LastSeen:     at,
				LatestStatus: make(map[string]any),
			},
			series: make(map[string]*ring[models.TimeSeriesPoint]),
		}
		return true
	}
	if at.After(d.record.LastSeen) {
		d.record.LastSeen = at
	}
	return false
}

// MergeStatus overwrites each given field; fields not mentioned are kept.
// No-op for an unknown device.
func (tx *Tx) MergeStatus(id string, fields map[string]any) {
	d, ok := tx.s.devices[id]
	if !ok {
		return
	}
	for k, v := range fields {
		d.record.LatestStatus[k] = cloneValue(v)
	}
}

// AppendPoint adds a point to a device metric, evicting the oldest appended
// point once the buffer is full. Returns true on eviction.
func (tx *Tx) AppendPoint(id, metric string, p models.TimeSeriesPoint) bool {
	d, ok := tx.s.devices[id]
	if !ok {
		return false
	}
	r, ok := d.series[metric]
	if !ok {
		r = newRing[models.TimeSeriesPoint](tx.s.seriesCapacity)
		d.series[metric] = r
	}
	return r.push(p)
}

func (tx *Tx) AppendLog(e models.LogEntry) {
	tx.s.logs = append(tx.s.logs, e)
}

func (tx *Tx) AppendAlert(e models.AlertEntry) {
	tx.s.alerts = append(tx.s.alerts, e)
}

// SetDelivery replaces the session-wide delivery state wholesale.
func (tx *Tx) SetDelivery(d models.PackageDeliveryState) {
	tx.s.delivery = &d
}

// SetImage replaces the latest image of a device. No-op for an unknown device.
func (tx *Tx) SetImage(id string, img models.CapturedImage) {
	if _, ok := tx.s.devices[id]; !ok {
		return
	}
	tx.s.images[id] = img
}

// DeviceCount is the number of known devices.
func (tx *Tx) DeviceCount() int {
	return len(tx.s.devices)
}
