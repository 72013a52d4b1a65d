package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "POST, GET, OPTIONS"
	corsAllowHeaders = "Content-Type"
)

// cors sets the headers feeders and browser clients expect on /logs.
func cors(c *gin.Context) {
	header := c.Writer.Header()
	header.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	header.Set("Access-Control-Allow-Methods", corsAllowMethods)
	header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	c.Next()
}

func (h *Handler) preflight(c *gin.Context) {
	c.AbortWithStatus(http.StatusNoContent)
}

// requestLogger writes one debug line per request.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log == nil {
		return
	}
	h.log.Debugw("http_request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"duration", time.Since(start),
		"client_ip", c.ClientIP(),
	)
}
