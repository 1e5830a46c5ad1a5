package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jmailbox/internal/metrics"
	"jmailbox/internal/models"
	"jmailbox/internal/repository"
)

const (
	DefaultOnlineWithin  = 30 * time.Second
	DefaultOfflineAfter  = 120 * time.Second
	defaultSeriesLastAll = 0
)

// Thresholds bound the liveness bands: silence below Online is ONLINE,
// silence at or above Offline is OFFLINE, anything between is IDLE.
type Thresholds struct {
	Online  time.Duration
	Offline time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{Online: DefaultOnlineWithin, Offline: DefaultOfflineAfter}
}

// Classify maps the silence since the last message to a liveness band.
// Negative silence (clock skew) counts as ONLINE.
func Classify(silence time.Duration, th Thresholds) models.Liveness {
	switch {
	case silence < th.Online:
		return models.LivenessOnline
	case silence < th.Offline:
		return models.LivenessIdle
	default:
		return models.LivenessOffline
	}
}

type MonitoringService struct {
	stateRepo  repository.StateRepo
	thresholds Thresholds
	metrics    *metrics.Ingest
	now        func() time.Time
}

func NewMonitoringService(stateRepo repository.StateRepo, th Thresholds, m *metrics.Ingest) *MonitoringService {
	if th.Online <= 0 || th.Offline <= 0 {
		th = DefaultThresholds()
	}
	return &MonitoringService{stateRepo: stateRepo, thresholds: th, metrics: m, now: time.Now}
}

// Snapshot returns an independent copy of the whole store.
func (s *MonitoringService) Snapshot(_ context.Context) (models.Snapshot, error) {
	return s.stateRepo.Snapshot(), nil
}

// Devices lists known devices with liveness computed against the same instant.
func (s *MonitoringService) Devices(_ context.Context, f DeviceFilter) ([]models.DeviceStatus, error) {
	kind, all, err := normalizeKind(f.Kind)
	if err != nil {
		return nil, err
	}

	now := s.now()
	records := s.stateRepo.Devices()
	out := make([]models.DeviceStatus, 0, len(records))
	for _, r := range records {
		if !all && r.Kind != kind {
			continue
		}
		out = append(out, s.status(r, now))
	}
	return out, nil
}

func (s *MonitoringService) Device(_ context.Context, id string) (models.DeviceStatus, error) {
	r, ok := s.stateRepo.Device(id)
	if !ok {
		return models.DeviceStatus{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return s.status(r, s.now()), nil
}

// Series returns the last points of one metric; last <= 0 means all retained.
func (s *MonitoringService) Series(_ context.Context, id, metric string, last int) ([]models.TimeSeriesPoint, error) {
	if last < 0 {
		last = defaultSeriesLastAll
	}
	pts, ok := s.stateRepo.Series(id, metric, last)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return pts, nil
}

// Delivery returns the latest delivery, or nil when none was reported yet.
func (s *MonitoringService) Delivery(_ context.Context) (*models.PackageDeliveryState, error) {
	return s.stateRepo.Delivery(), nil
}

func (s *MonitoringService) Image(_ context.Context, id string) (models.CapturedImage, error) {
	if _, ok := s.stateRepo.Device(id); !ok {
		return models.CapturedImage{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	img, ok := s.stateRepo.Image(id)
	if !ok {
		return models.CapturedImage{}, fmt.Errorf("%w: %s", ErrImageNotFound, id)
	}
	return img, nil
}

// RemoveDevice forgets a device together with its series and image. Journal
// lines that mention it are kept.
func (s *MonitoringService) RemoveDevice(_ context.Context, id string) error {
	if !s.stateRepo.Remove(id) {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	s.metrics.Devices(s.stateRepo.DeviceCount())
	return nil
}

func (s *MonitoringService) status(r models.DeviceRecord, now time.Time) models.DeviceStatus {
	silence := now.Sub(r.LastSeen)
	return models.DeviceStatus{
		DeviceRecord: r,
		Hardware:     r.Kind.Hardware(),
		Liveness:     Classify(silence, s.thresholds),
		Silence:      silence,
	}
}

// normalizeKind accepts the kind name or its hardware alias.
func normalizeKind(s string) (models.DeviceKind, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, true, nil
	case "controller", "esp32":
		return models.KindController, false, nil
	case "camera", "esp32-cam":
		return models.KindCamera, false, nil
	}
	return 0, false, fmt.Errorf("%w: %q", errInvalidKind, s)
}
