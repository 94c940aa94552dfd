package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"vital-route-api-server/internal/dispatch"
	"vital-route-api-server/internal/lifecycle"
	"vital-route-api-server/internal/maps"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/store"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, dispatch.ErrNoMission):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDuplicate),
		errors.Is(err, lifecycle.ErrIllegalTransition),
		errors.Is(err, dispatch.ErrMissionInProgress):
		return http.StatusConflict
	case errors.Is(err, dispatch.ErrNotMissionOwner),
		errors.Is(err, dispatch.ErrNotDriver),
		errors.Is(err, dispatch.ErrWrongAlertType):
		return http.StatusForbidden
	case errors.Is(err, dispatch.ErrInvalidAlert),
		errors.Is(err, dispatch.ErrInvalidVehicle),
		errors.Is(err, dispatch.ErrUnknownFacility),
		errors.Is(err, dispatch.ErrNoPosition),
		errors.Is(err, models.ErrInvalidCoordinates):
		return http.StatusBadRequest
	case errors.Is(err, maps.ErrNoResults):
		return http.StatusNotFound
	case errors.Is(err, maps.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, dispatch.ErrPartialAssignment):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}. Unexpected errors are logged and hidden.
func respondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(code, gin.H{"error": "Internal server error"})
		return
	}
	msg := err.Error()
	if errors.Is(err, store.ErrConflict) {
		msg = "The alert was changed by someone else. Refresh and try again."
	}
	c.JSON(code, gin.H{"error": msg})
}
