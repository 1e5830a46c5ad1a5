package handlers

import (
	"time"

	"jmailbox/internal/logger"
	"jmailbox/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	gatherer prometheus.Gatherer

	streamInterval time.Duration
}

// NewHandler constructs a new HTTP handler with dependencies. A nil gatherer
// leaves /metrics unregistered.
func NewHandler(services *service.Service, log *logger.Logger, gatherer prometheus.Gatherer) *Handler {
	return &Handler{services: services, log: log, gatherer: gatherer}
}

// WithStreamInterval sets the default WebSocket push interval used when the
// client does not ask for one.
func (h *Handler) WithStreamInterval(d time.Duration) *Handler {
	h.streamInterval = d
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}

	h.registerAPIRoutes(router)

	// Snapshot stream over WebSocket, same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/snapshot", h.getSnapshot)
		api.GET("/delivery", h.getDelivery)
		h.registerDeviceRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.GET("/:id", h.getDevice)
		devices.DELETE("/:id", h.removeDevice)
		devices.GET("/:id/series/:metric", h.getSeries)
		devices.GET("/:id/image", h.getImage)
		// Body example: {"command":"open_door","params":{"duration":5}}
		devices.POST("/:id/command", h.sendCommand)
		// Body example: {"fields":{"jpeg_quality":12}}
		devices.POST("/:id/config", h.sendConfig)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.getLogs)
	api.GET("/alerts", h.getAlerts)
}
