package handlers

import (
	"net/http"
	"strings"
	"time"

	"cat_feeder/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	errMissingID       = "missing id"
	errMissingFields   = "missing required fields"
	errInvalidBodyPref = "invalid body: "
)

// @Summary      Device logs
// @Description  Newest first. Unknown ids return an empty list.
// @Tags         logs
// @Produce      json
// @Param        id   query     string  true  "Device id"  example(loki)
// @Success      200  {array}   models.LogEntry
// @Failure      400  {object}  map[string]string
// @Router       /logs [get]
func (h *Handler) getLogs(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingID})
		return
	}
	c.JSON(http.StatusOK, h.services.Logs.Get(id))
}

// @Summary      Append a device log line
// @Tags         logs
// @Accept       json
// @Produce      json
// @Param        body  body      models.LogBody  true  "Log line"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Router       /logs [post]
func (h *Handler) postLog(c *gin.Context) {
	var body models.LogBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	id := strings.TrimSpace(body.ID)
	if id == "" || body.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingFields})
		return
	}
	h.services.Logs.Append(c.Request.Context(), id, body.Message, time.Now().UnixMilli())
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}
