package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vital-route-api-server/internal/socket"
)

type HealthHandler struct {
	Hub *socket.Hub
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": h.Hub.Count(),
	})
}
