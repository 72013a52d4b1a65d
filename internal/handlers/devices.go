package handlers

import (
	"errors"
	"net/http"

	"cat_feeder/internal/bus"
	"cat_feeder/internal/devicesync"
	"cat_feeder/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"

	errNotConnected   = "bus not connected"
	errFeedRejected   = "feeder is busy"
	errInvalidDevice  = "invalid device id"
	errUnavailable    = "device tracking stopped"
	errDeviceLimit    = "device limit reached"
	errDeviceInternal = "device operation failed"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// deviceError maps device sentinels to status codes. Expected rejections are
// answered without an error log.
func (h *Handler) deviceError(c *gin.Context, logKey string, err error) {
	id := c.Param("id")
	switch {
	case errors.Is(err, devicesync.ErrInvalidDeviceID):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidDevice})
	case errors.Is(err, devicesync.ErrInvalidSchedule):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
	case errors.Is(err, bus.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": errNotConnected})
	case errors.Is(err, devicesync.ErrFeedRejected):
		c.JSON(http.StatusConflict, gin.H{"error": errFeedRejected})
	case errors.Is(err, devicesync.ErrTooManyDevices):
		c.JSON(http.StatusConflict, gin.H{"error": errDeviceLimit})
	case errors.Is(err, devicesync.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errUnavailable})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errDeviceInternal, logKey, err, "device_id", id)
	}
}

// @Summary      Health check
// @Description  status is "degraded" while the bus is not connected
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	conn := h.services.Monitoring.GetConnection()
	status := statusOK
	if !h.services.Monitoring.Connected() {
		status = statusDegraded
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"bus":    conn.State,
	})
}

// @Summary      Bus connection state
// @Tags         system
// @Produce      json
// @Success      200  {object}  service.ConnectionView
// @Router       /api/v1/connection [get]
func (h *Handler) getConnection(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.GetConnection())
}

// @Summary      List tracked feeders
// @Tags         devices
// @Produce      json
// @Success      200  {array}  devicesync.Snapshot
// @Router       /api/v1/devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Devices.List())
}

// @Summary      Feeder snapshot
// @Description  Unknown ids start being tracked, up to device.max_tracked.
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      200  {object}  devicesync.Snapshot
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/devices/{id} [get]
func (h *Handler) getDevice(c *gin.Context) {
	snap, err := h.services.Devices.Get(c.Param("id"))
	if err != nil {
		h.deviceError(c, "device_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Request the feeder's schedule
// @Description  The reply arrives asynchronously; watch the snapshot's fetch status.
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      202  {object}  devicesync.Snapshot
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/devices/{id}/fetch [post]
func (h *Handler) fetchSchedule(c *gin.Context) {
	snap, err := h.services.Devices.Fetch(c.Param("id"))
	if err != nil {
		h.deviceError(c, "device_fetch_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, snap)
}

// @Summary      Replace the feeder's schedule
// @Description  Hours and minutes are local wall-clock time.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        id    path      string                  true  "Device id"
// @Param        body  body      models.FeedingSchedule  true  "Schedule"
// @Success      200   {object}  devicesync.Snapshot
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /api/v1/devices/{id}/schedule [put]
func (h *Handler) setSchedule(c *gin.Context) {
	var schedule models.FeedingSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	snap, err := h.services.Devices.SetSchedule(c.Param("id"), schedule)
	if err != nil {
		h.deviceError(c, "device_schedule_failed", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Dispense one feeding now
// @Description  Rejected unless the feeder reports IDLE and no fetch is pending.
// @Tags         devices
// @Produce      json
// @Param        id   path      string  true  "Device id"
// @Success      202  {object}  map[string]string
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/devices/{id}/feed [post]
func (h *Handler) feed(c *gin.Context) {
	if err := h.services.Devices.Feed(c.Param("id")); err != nil {
		h.deviceError(c, "device_feed_failed", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}
