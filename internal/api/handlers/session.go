package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"vital-route-api-server/internal/api/middleware"
	"vital-route-api-server/internal/dispatch"
	"vital-route-api-server/internal/store"
)

// sessionFor loads the caller's profile and opens a dispatch session for it.
func sessionFor(c *gin.Context, svc *dispatch.Service, users store.UserStore) (*dispatch.Session, bool) {
	user, err := users.GetUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	s, err := svc.Session(user)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown role. Please contact support."})
		return nil, false
	}
	return s, true
}
