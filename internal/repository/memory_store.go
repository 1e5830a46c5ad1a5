package repository

import (
	"sort"
	"sync"
	"time"

	"jmailbox/internal/models"
)

// DefaultSeriesCapacity is the number of points kept per device metric.
const DefaultSeriesCapacity = 100

type deviceState struct {
	record models.DeviceRecord
	series map[string]*ring[models.TimeSeriesPoint]
}

// MemoryStore keeps the fleet in memory behind a single RWMutex. Writers are
// serialized; readers copy out under the read lock, so a reader never sees
// half of an Update.
type MemoryStore struct {
	mu             sync.RWMutex
	seriesCapacity int
	now            func() time.Time

	devices  map[string]*deviceState
	logs     []models.LogEntry
	alerts   []models.AlertEntry
	delivery *models.PackageDeliveryState
	images   map[string]models.CapturedImage
}

func NewMemoryStore(seriesCapacity int) *MemoryStore {
	if seriesCapacity <= 0 {
		seriesCapacity = DefaultSeriesCapacity
	}
	return &MemoryStore{
		seriesCapacity: seriesCapacity,
		now:            time.Now,
		devices:        make(map[string]*deviceState),
		images:         make(map[string]models.CapturedImage),
	}
}

// Update runs fn with exclusive access. Everything fn does through the Tx
// becomes visible to readers at once when Update returns.
func (s *MemoryStore) Update(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Tx{s: s})
}

// Remove deletes a device together with its series and image. Journal
// entries that mention the device are kept.
func (s *MemoryStore) Remove(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[deviceID]; !ok {
		return false
	}
	delete(s.devices, deviceID)
	delete(s.images, deviceID)
	return true
}

func (s *MemoryStore) Snapshot() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.Snapshot{
		TakenAt: s.now().UTC(),
		Devices: s.devicesLocked(),
		Series:  make(map[string]map[string][]models.TimeSeriesPoint, len(s.devices)),
		Logs:    cloneSlice(s.logs),
		Alerts:  cloneSlice(s.alerts),
		Images:  make(map[string]models.CapturedImage, len(s.images)),
	}
	for id, d := range s.devices {
		if len(d.series) == 0 {
			continue
		}
		m := make(map[string][]models.TimeSeriesPoint, len(d.series))
		for name, r := range d.series {
			m[name] = r.slice()
		}
		snap.Series[id] = m
	}
	for id, img := range s.images {
		snap.Images[id] = img
	}
	if s.delivery != nil {
		d := *s.delivery
		snap.Delivery = &d
	}
	return snap
}

func (s *MemoryStore) Devices() []models.DeviceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.devicesLocked()
}

func (s *MemoryStore) DeviceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.devices)
}

func (s *MemoryStore) Device(deviceID string) (models.DeviceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return models.DeviceRecord{}, false
	}
	return copyRecord(d.record), true
}

// Series returns up to last points of a metric, oldest first. last <= 0
// returns the whole buffer. The bool is false when the device is unknown.
func (s *MemoryStore) Series(deviceID, metric string, last int) ([]models.TimeSeriesPoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return nil, false
	}
	r, ok := d.series[metric]
	if !ok {
		return []models.TimeSeriesPoint{}, true
	}
	return r.last(last), true
}

func (s *MemoryStore) Delivery() *models.PackageDeliveryState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.delivery == nil {
		return nil
	}
	d := *s.delivery
	return &d
}

func (s *MemoryStore) Image(deviceID string) (models.CapturedImage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.images[deviceID]
	return img, ok
}

func (s *MemoryStore) Logs() []models.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.logs)
}

func (s *MemoryStore) Alerts() []models.AlertEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.alerts)
}

// devicesLocked returns copies ordered by first sighting, then id.
func (s *MemoryStore) devicesLocked() []models.DeviceRecord {
	out := make([]models.DeviceRecord, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, copyRecord(d.record))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].FirstSeen.Before(out[j].FirstSeen)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// copyRecord deep-copies the status map so readers never share nested
// objects or arrays with the store.
func copyRecord(r models.DeviceRecord) models.DeviceRecord {
	status := make(map[string]any, len(r.LatestStatus))
	for k, v := range r.LatestStatus {
		status[k] = cloneValue(v)
	}
	r.LatestStatus = status
	return r
}

// cloneValue copies the containers a decoded JSON payload can hold.
// Scalars are returned as is.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// cloneSlice never returns nil so empty journals encode as [].
func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
