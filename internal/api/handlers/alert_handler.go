package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vital-route-api-server/internal/dispatch"
)

// AlertHandler serves the public, unauthenticated submission form.
type AlertHandler struct {
	Dispatch *dispatch.Service
}

func (h *AlertHandler) SubmitAlert(c *gin.Context) {
	var in dispatch.AlertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// priority is an admin-only field
	in.Priority = ""

	alert, err := h.Dispatch.SubmitPublicAlert(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Alert sent. Help is on the way.",
		"alert":   alert,
	})
}
