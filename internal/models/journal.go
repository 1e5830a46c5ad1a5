package models

import "time"

// Log levels seen on the wire plus the ones the dashboard writes itself.
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
	LevelAlert   = "ALERT"
)

// Severity bounds for alerts.
const (
	SeverityLow  = 1
	SeverityMed  = 2
	SeverityHigh = 3
)

// LogEntry is a single journal line, either reported by a device or written
// by the dashboard itself (command audit trail).
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device"`
	Level     string    `json:"level"` // DEBUG | INFO | WARNING | ERROR | ALERT
	Message   string    `json:"message"`
	State     string    `json:"state,omitempty"`
}

// AlertEntry is a security alert raised by a device.
type AlertEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Device    string    `json:"device"`
	Reason    string    `json:"reason"`
	Severity  int       `json:"severity"` // 1..3
	Message   string    `json:"message,omitempty"`
	State     string    `json:"state,omitempty"`
}
