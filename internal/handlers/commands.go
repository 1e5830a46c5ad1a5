package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	errSendCommand = "failed to send command"
	errSendConfig  = "failed to send config"
)

type commandRequest struct {
	Command string         `json:"command" binding:"required"`
	Params  map[string]any `json:"params,omitempty"`
}

type configRequest struct {
	Fields map[string]any `json:"fields" binding:"required"`
}

// SendCommandRequest is an exported model for Swagger docs of the command payload.
type SendCommandRequest struct {
	// Command name understood by the firmware
	Command string `json:"command" example:"open_door"`
	// Extra envelope fields; they override command, timestamp and source
	Params map[string]any `json:"params,omitempty"`
}

// SendConfigRequest is an exported model for Swagger docs of the config payload.
type SendConfigRequest struct {
	Fields map[string]any `json:"fields"`
}

// @Summary      Send command
// @Description  Publishes {command, timestamp, source, ...params} to <ns>/<id>/command. Every attempt is journaled.
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        id    path   string              true  "Device id"
// @Param        body  body   SendCommandRequest  true  "Command payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/devices/{id}/command [post]
func (h *Handler) sendCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.services.Commands.Dispatch(c.Request.Context(), id, req.Command, req.Params); err != nil {
		h.respondServiceError(c, errSendCommand, "command_dispatch_failed", err, "device", id, "command", req.Command)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSent, "device": id, "command": req.Command})
}

// @Summary      Send configuration
// @Tags         commands
// @Accept       json
// @Produce      json
// @Param        id    path   string             true  "Device id"
// @Param        body  body   SendConfigRequest  true  "Config fields"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/devices/{id}/config [post]
func (h *Handler) sendConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := c.Param("id")
	if err := h.services.Commands.DispatchConfig(c.Request.Context(), id, req.Fields); err != nil {
		h.respondServiceError(c, errSendConfig, "config_dispatch_failed", err, "device", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusSent, "device": id})
}
