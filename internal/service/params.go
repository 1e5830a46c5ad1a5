package service

import (
	"time"

	"jmailbox/internal/models"
)

// DeviceFilter narrows the device listing. Empty Kind means all kinds.
type DeviceFilter struct {
	Kind string // "", "controller", "camera"
}

// LogFilter selects journal lines. The window of the Limit most recent lines
// is taken first and filtered afterwards, so fewer than Limit lines may come
// back.
type LogFilter struct {
	From    time.Time // inclusive; zero means no lower bound
	To      time.Time // inclusive; zero means no upper bound
	Levels  []string  // empty means every level
	Devices []string  // empty means every device
	Limit   int       // 0 means DefaultLogLimit
}

type AlertFilter struct {
	Limit int // 0 means DefaultAlertLimit
}

// AlertSummary mirrors the alert panel: counters over the whole journal plus
// the most recent alerts, newest first.
type AlertSummary struct {
	Total  int                 `json:"total"`
	High   int                 `json:"high"`
	Today  int                 `json:"today"`
	Alerts []models.AlertEntry `json:"alerts"`
}

const (
	DefaultLogLimit   = 100
	MaxLogLimit       = 500
	DefaultAlertLimit = 20
	LevelWindow       = 100
)
