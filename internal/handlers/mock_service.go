package handlers

import (
	"context"

	"jmailbox/internal/models"
	"jmailbox/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockMonitoring struct {
	snapshot models.Snapshot
	devices  []models.DeviceStatus
	device   models.DeviceStatus
	series   []models.TimeSeriesPoint
	delivery *models.PackageDeliveryState
	image    models.CapturedImage
	err      error

	lastFilter service.DeviceFilter
	lastID     string
	lastMetric string
	lastLast   int
}

func (m *mockMonitoring) Snapshot(ctx context.Context) (models.Snapshot, error) {
	return m.snapshot, m.err
}
func (m *mockMonitoring) Devices(ctx context.Context, f service.DeviceFilter) ([]models.DeviceStatus, error) {
	m.lastFilter = f
	return m.devices, m.err
}
func (m *mockMonitoring) Device(ctx context.Context, id string) (models.DeviceStatus, error) {
	m.lastID = id
	return m.device, m.err
}
func (m *mockMonitoring) Series(ctx context.Context, id, metric string, last int) ([]models.TimeSeriesPoint, error) {
	m.lastID, m.lastMetric, m.lastLast = id, metric, last
	return m.series, m.err
}
func (m *mockMonitoring) Delivery(ctx context.Context) (*models.PackageDeliveryState, error) {
	return m.delivery, m.err
}
func (m *mockMonitoring) Image(ctx context.Context, id string) (models.CapturedImage, error) {
	m.lastID = id
	return m.image, m.err
}

type mockAdmin struct {
	err     error
	removed []string
}

func (m *mockAdmin) RemoveDevice(ctx context.Context, id string) error {
	m.removed = append(m.removed, id)
	return m.err
}

type mockEventLog struct {
	logs    []models.LogEntry
	levels  map[string]int
	summary service.AlertSummary
	err     error

	lastFilter      service.LogFilter
	lastAlertFilter service.AlertFilter
	listCalls       int
}

func (m *mockEventLog) Logs(ctx context.Context, f service.LogFilter) ([]models.LogEntry, error) {
	m.listCalls++
	m.lastFilter = f
	return m.logs, m.err
}
func (m *mockEventLog) LevelCounts(ctx context.Context, window int) (map[string]int, error) {
	return m.levels, nil
}
func (m *mockEventLog) Alerts(ctx context.Context, f service.AlertFilter) (service.AlertSummary, error) {
	m.lastAlertFilter = f
	return m.summary, m.err
}

type mockCommands struct {
	err error

	lastDevice  string
	lastCommand string
	lastExtra   map[string]any
	calls       int
}

func (m *mockCommands) Dispatch(ctx context.Context, deviceID, command string, extra map[string]any) error {
	m.calls++
	m.lastDevice, m.lastCommand, m.lastExtra = deviceID, command, extra
	return m.err
}
func (m *mockCommands) DispatchConfig(ctx context.Context, deviceID string, fields map[string]any) error {
	m.calls++
	m.lastDevice, m.lastCommand, m.lastExtra = deviceID, "update", fields
	return m.err
}

type mockConn bool

func (m mockConn) IsConnected() bool { return bool(m) }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
