package handlers

import (
	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/logger"
	"cat_feeder/internal/metrics"
	"cat_feeder/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  *metrics.Metrics
	hub      *wsHub
}

// NewHandler constructs a new HTTP handler with dependencies and starts
// forwarding device and connection changes to WebSocket clients.
func NewHandler(services *service.Service, log *logger.Logger, m *metrics.Metrics) *Handler {
	h := &Handler{services: services, log: log, metrics: m, hub: newWSHub()}
	if services.Devices != nil {
		services.Devices.Watch(func(s devicesync.Snapshot) {
			h.hub.broadcast(wsEnvelope{Type: wsTypeDevice, Data: s})
		})
	}
	if services.Monitoring != nil {
		services.Monitoring.WatchConnection(func(v service.ConnectionView) {
			h.hub.broadcast(wsEnvelope{Type: wsTypeConnection, Data: v})
		})
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	router.GET("/health", h.health)

	// Log store proxy used by the feeders and the UI
	h.registerLogRoutes(router)

	h.registerAPIRoutes(router)

	// Snapshot stream (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerLogRoutes(r *gin.Engine) {
	logs := r.Group("/logs", cors)
	{
		logs.GET("", h.getLogs)
		logs.POST("", h.postLog)
		logs.OPTIONS("", h.preflight)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/connection", h.getConnection)
		h.registerDeviceRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.GET("/:id", h.getDevice)
		devices.POST("/:id/fetch", h.fetchSchedule)
		// Body example: [{"hour":8,"minute":0,"portion":2}]
		devices.PUT("/:id/schedule", h.setSchedule)
		devices.POST("/:id/feed", h.feed)
	}
}
