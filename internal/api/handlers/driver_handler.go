// server/internal/api/handlers/driver_handler.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"vital-route-api-server/internal/dispatch"
	"vital-route-api-server/internal/maps"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

type DriverHandler struct {
	Dispatch *dispatch.Service
	Users    store.UserStore
}

// missionRequest optionally names the alert; otherwise the active mission is used.
type missionRequest struct {
	AlertID string `json:"alertId"`
}

func bindMission(c *gin.Context) (string, bool) {
	var req missionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return "", false
		}
	}
	if req.AlertID == "" {
		req.AlertID = c.Query("alertId")
	}
	return req.AlertID, true
}

// ListPendingAlerts returns pending alerts of the driver's type. lat/lng, when
// given, are used for distance and ETA.
func (h *DriverHandler) ListPendingAlerts(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}

	var from *models.GeoPoint
	if latStr, lngStr := c.Query("lat"), c.Query("lng"); latStr != "" || lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		p := models.GeoPoint{Lat: lat, Lng: lng}
		if errLat != nil || errLng != nil || p.Validate() != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng must be valid coordinates"})
			return
		}
		from = &p
	}

	alerts, err := s.PendingAlerts(c.Request.Context(), from)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *DriverHandler) AcceptAlert(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	alert, err := s.Accept(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alert":         alert,
		"navigationUrl": maps.NavigationURL(nil, alert.Location),
	})
}

func (h *DriverHandler) RejectAlert(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	alert, err := s.Reject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *DriverHandler) GetMission(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	view, err := s.CurrentMission(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DriverHandler) ArriveOnScene(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	alertID, ok := bindMission(c)
	if !ok {
		return
	}
	view, err := s.ArriveOnScene(c.Request.Context(), alertID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DriverHandler) FindHospitals(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	view, err := s.FindHospitals(c.Request.Context(), c.Query("alertId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DriverHandler) SelectDestination(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	var in dispatch.DestinationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := s.SelectDestination(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *DriverHandler) Directions(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	route, err := s.Directions(c.Request.Context(), c.Query("alertId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

func (h *DriverHandler) CompleteMission(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	alertID, ok := bindMission(c)
	if !ok {
		return
	}
	alert, err := s.Complete(c.Request.Context(), alertID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *DriverHandler) ReportPosition(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	var p models.GeoPoint
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ReportPosition(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type panicRequest struct {
	Message string `json:"message"`
}

func (h *DriverHandler) Panic(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	var req panicRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	notice, err := s.Panic(c.Request.Context(), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, notice)
}

func (h *DriverHandler) History(c *gin.Context) {
	s, ok := sessionFor(c, h.Dispatch, h.Users)
	if !ok {
		return
	}
	alerts, err := s.History(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}
