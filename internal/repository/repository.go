package repository

import (
	"jmailbox/internal/models"
)

// StateRepo owns all mutable fleet state. Update is the only mutation path
// besides the explicit operator Remove.
type StateRepo interface {
	Update(fn func(tx *Tx))
	Remove(deviceID string) bool

	Snapshot() models.Snapshot
	Devices() []models.DeviceRecord
	DeviceCount() int
	Device(deviceID string) (models.DeviceRecord, bool)
	Series(deviceID, metric string, last int) ([]models.TimeSeriesPoint, bool)
	Delivery() *models.PackageDeliveryState
	Image(deviceID string) (models.CapturedImage, bool)
}

// JournalRepo reads the append-only log and alert journals.
type JournalRepo interface {
	Logs() []models.LogEntry
	Alerts() []models.AlertEntry
}

type Repository struct {
	StateRepo   StateRepo
	JournalRepo JournalRepo
}

// NewRepository builds the in-memory store shared by both interfaces.
func NewRepository(seriesCapacity int) *Repository {
	store := NewMemoryStore(seriesCapacity)
	return &Repository{
		StateRepo:   store,
		JournalRepo: store,
	}
}
