// server/internal/api/handlers/admin_handler.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vital-route-api-server/internal/api/middleware"
	"vital-route-api-server/internal/dispatch"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

type AdminHandler struct {
	Dispatch *dispatch.Service
}

func (h *AdminHandler) ListAlerts(c *gin.Context) {
	alerts, err := h.Dispatch.ListAdminAlerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *AdminHandler) CreateAlert(c *gin.Context) {
	var in dispatch.AlertInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	alert, err := h.Dispatch.CreateAdminAlert(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *AdminHandler) DeleteAlert(c *gin.Context) {
	if err := h.Dispatch.DeleteAlert(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}

type AssignVehiclePayload struct {
	VehicleID string `json:"vehicleId" binding:"required"`
}

// AssignVehicle accepts the alert with the vehicle and marks the vehicle enroute.
// When only the first write lands the response is 502 and still carries the alert.
func (h *AdminHandler) AssignVehicle(c *gin.Context) {
	var payload AssignVehiclePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := h.Dispatch.AssignVehicle(c.Request.Context(), c.Param("id"), payload.VehicleID)
	if err != nil {
		if alert.ID != "" {
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "alert": alert})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.Dispatch.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) ListVehicles(c *gin.Context) {
	var filter store.VehicleFilter
	if t := c.Query("type"); t != "" {
		typ, err := models.ParseAlertType(t)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Type = typ
	}
	if s := c.Query("status"); s != "" {
		st, err := models.ParseVehicleStatus(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Status = st
	}

	vehicles, err := h.Dispatch.ListVehicles(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicles)
}

func (h *AdminHandler) CreateVehicle(c *gin.Context) {
	var in dispatch.VehicleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.Dispatch.CreateVehicle(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

type vehicleStatusPayload struct {
	Status string `json:"status" binding:"required"`
}

func (h *AdminHandler) UpdateVehicleStatus(c *gin.Context) {
	var payload vehicleStatusPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := models.ParseVehicleStatus(payload.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.Dispatch.SetVehicleStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
