package service

import (
	"context"
	"errors"
	"time"

	"jmailbox/internal/decoder"
	"jmailbox/internal/logger"
	"jmailbox/internal/metrics"
	"jmailbox/internal/models"
	"jmailbox/internal/repository"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrImageNotFound  = errors.New("no image captured for device")
	ErrInvalidCommand = errors.New("invalid command")
)

// Ingest is the inbound path: the transport calls Handle, Run drains.
type Ingest interface {
	Handle(topic string, payload []byte, receivedAt time.Time)
	Run(ctx context.Context)
}

// Monitoring exposes read-only fleet state with liveness derived at read time.
type Monitoring interface {
	Snapshot(ctx context.Context) (models.Snapshot, error)
	Devices(ctx context.Context, f DeviceFilter) ([]models.DeviceStatus, error)
	Device(ctx context.Context, id string) (models.DeviceStatus, error)
	Series(ctx context.Context, id, metric string, last int) ([]models.TimeSeriesPoint, error)
	Delivery(ctx context.Context) (*models.PackageDeliveryState, error)
	Image(ctx context.Context, id string) (models.CapturedImage, error)
}

// FleetAdmin holds the operator-only state changes.
type FleetAdmin interface {
	RemoveDevice(ctx context.Context, id string) error
}

// EventLog exposes the append-only journals with filtering.
type EventLog interface {
	Logs(ctx context.Context, f LogFilter) ([]models.LogEntry, error)
	LevelCounts(ctx context.Context, window int) (map[string]int, error)
	Alerts(ctx context.Context, f AlertFilter) (AlertSummary, error)
}

// Commands sends commands and configuration updates to devices.
type Commands interface {
	Dispatch(ctx context.Context, deviceID, command string, extra map[string]any) error
	DispatchConfig(ctx context.Context, deviceID string, fields map[string]any) error
}

// Connectivity reports whether the transport is up.
type Connectivity interface {
	IsConnected() bool
}

// Service aggregates the sub-services handed to the HTTP layer.
type Service struct {
	Ingest
	Monitoring
	FleetAdmin
	EventLog
	Commands
	Connectivity
}

// Options carries the tunables NewService needs from configuration.
type Options struct {
	Namespace     string
	CameraMarker  string
	QueueSize     int
	CommandSource string
	QoS           byte
	Thresholds    Thresholds
}

// NewService wires the repository and transport into concrete services.
func NewService(repos *repository.Repository, pub Publisher, opts Options, m *metrics.Ingest, log *logger.Logger) *Service {
	reconciler := NewReconciler(repos.StateRepo, m, log.Named("reconciler"))
	monitoring := NewMonitoringService(repos.StateRepo, opts.Thresholds, m)

	return &Service{
		Ingest:       NewIngestor(decoder.New(opts.Namespace, opts.CameraMarker), reconciler, opts.QueueSize, m, log.Named("ingest")),
		Monitoring:   monitoring,
		FleetAdmin:   monitoring,
		EventLog:     NewEventLogService(repos.JournalRepo),
		Commands:     NewCommandService(repos.StateRepo, pub, opts.Namespace, opts.CommandSource, opts.QoS, m, log.Named("commands")),
		Connectivity: pub,
	}
}
