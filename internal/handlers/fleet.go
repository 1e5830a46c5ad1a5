package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"jmailbox/internal/service"
	"jmailbox/internal/transport"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK      = "ok"
	statusRemoved = "removed"
	statusSent    = "sent"

	transportConnected    = "connected"
	transportDisconnected = "disconnected"
	transportUnknown      = "unknown"

	errGetSnapshot     = "failed to load snapshot"
	errListDevices     = "failed to list devices"
	errGetDevice       = "failed to load device"
	errGetSeries       = "failed to load series"
	errGetImage        = "failed to load image"
	errRemoveDevice    = "failed to remove device"
	errGetDelivery     = "failed to load delivery"
	errInvalidLast     = "invalid 'last'; use a non-negative integer"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondServiceError maps service and transport sentinels onto HTTP codes.
// Client-side errors carry the error text; everything else gets userMsg.
func (h *Handler) respondServiceError(c *gin.Context, userMsg, logKey string, err error, kv ...interface{}) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		h.logAndJSONError(c, code, userMsg, logKey, err, kv...)
		return
	}
	if h.log != nil {
		h.log.Infow(logKey, append([]interface{}{"err", err}, kv...)...)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCommand), errors.Is(err, service.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrDeviceNotFound), errors.Is(err, service.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, transport.ErrNotConnected):
		return http.StatusServiceUnavailable
	case errors.Is(err, transport.ErrPublishFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// @Summary      Health check
// @Description  Reports whether the broker connection is up.
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	conn := transportUnknown
	if h.services.Connectivity != nil {
		conn = transportDisconnected
		if h.services.Connectivity.IsConnected() {
			conn = transportConnected
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    statusOK,
		"transport": conn,
	})
}

// @Summary      Full snapshot
// @Description  Devices, series, journals, delivery and image metadata as one consistent copy.
// @Tags         fleet
// @Produce      json
// @Success      200  {object}  models.Snapshot
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/snapshot [get]
func (h *Handler) getSnapshot(c *gin.Context) {
	snap, err := h.services.Monitoring.Snapshot(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetSnapshot, "snapshot_failed", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      List devices
// @Tags         fleet
// @Produce      json
// @Param        kind  query   string  false  "Device kind"  Enums(controller,camera)
// @Success      200   {object}  map[string]interface{}  "count, devices"
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.Monitoring.Devices(c.Request.Context(), service.DeviceFilter{Kind: c.Query("kind")})
	if err != nil {
		h.respondServiceError(c, errListDevices, "devices_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}

// @Summary      Get device
// @Tags         fleet
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  models.DeviceStatus
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/devices/{id} [get]
func (h *Handler) getDevice(c *gin.Context) {
	id := c.Param("id")
	d, err := h.services.Monitoring.Device(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, errGetDevice, "device_get_failed", err, "device", id)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Remove device
// @Description  Forgets the device, its series and its image. Journal lines are kept.
// @Tags         fleet
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/devices/{id} [delete]
func (h *Handler) removeDevice(c *gin.Context) {
	id := c.Param("id")
	if err := h.services.FleetAdmin.RemoveDevice(c.Request.Context(), id); err != nil {
		h.respondServiceError(c, errRemoveDevice, "device_remove_failed", err, "device", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusRemoved, "device": id})
}

// @Summary      Metric series
// @Tags         fleet
// @Produce      json
// @Param        id      path   string  true   "Device id"
// @Param        metric  path   string  true   "Metric name"  example(distance)
// @Param        last    query  int     false  "Only the last N points; 0 means all retained"
// @Success      200     {object}  map[string]interface{}  "device, metric, points"
// @Failure      400     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Router       /api/v1/devices/{id}/series/{metric} [get]
func (h *Handler) getSeries(c *gin.Context) {
	id, metric := c.Param("id"), c.Param("metric")
	last := 0
	if qs := c.Query("last"); qs != "" {
		v, err := strconv.Atoi(qs)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLast})
			return
		}
		last = v
	}
	pts, err := h.services.Monitoring.Series(c.Request.Context(), id, metric, last)
	if err != nil {
		h.respondServiceError(c, errGetSeries, "series_get_failed", err, "device", id, "metric", metric)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"device": id,
		"metric": metric,
		"points": pts,
	})
}

// @Summary      Latest camera image
// @Tags         fleet
// @Produce      image/jpeg,image/png,image/gif
// @Param        id   path      string  true  "Device id"
// @Success      200  {file}    binary
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/devices/{id}/image [get]
func (h *Handler) getImage(c *gin.Context) {
	id := c.Param("id")
	img, err := h.services.Monitoring.Image(c.Request.Context(), id)
	if err != nil {
		h.respondServiceError(c, errGetImage, "image_get_failed", err, "device", id)
		return
	}
	c.Header("X-Image-Width", strconv.Itoa(img.Width))
	c.Header("X-Image-Height", strconv.Itoa(img.Height))
	if img.Resi != "" {
		c.Header("X-Resi", img.Resi)
	}
	c.Data(http.StatusOK, service.ContentType(img.Format), img.Raw)
}

// @Summary      Current delivery
// @Tags         fleet
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "delivery (null until a resi was reported)"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/delivery [get]
func (h *Handler) getDelivery(c *gin.Context) {
	d, err := h.services.Monitoring.Delivery(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetDelivery, "delivery_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": d})
}
