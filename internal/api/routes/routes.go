// server/internal/api/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vital-route-api-server/config"
	"vital-route-api-server/internal/api/handlers"
	"vital-route-api-server/internal/api/middleware"
	"vital-route-api-server/internal/auth"
	"vital-route-api-server/internal/dispatch"
	"vital-route-api-server/internal/models"
	"vital-route-api-server/internal/socket"
	"vital-route-api-server/internal/store"
)

// Dependencies are the wired components the router hands to its handlers.
type Dependencies struct {
	Users    store.UserStore
	Tokens   *auth.Manager
	Dispatch *dispatch.Service
	Hub      *socket.Hub
	Uploader handlers.PhotoUploader // nil disables profile photos
}

// SetupRouter builds the gin engine with every route of the API.
func SetupRouter(cfg config.Config, deps Dependencies) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	publicAlertLimit, err := middleware.RateLimit(cfg.RateLimit.PublicAlerts)
	if err != nil {
		return nil, err
	}

	authHandler := &handlers.AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Uploader: deps.Uploader}
	alertHandler := &handlers.AlertHandler{Dispatch: deps.Dispatch}
	driverHandler := &handlers.DriverHandler{Dispatch: deps.Dispatch, Users: deps.Users}
	adminHandler := &handlers.AdminHandler{Dispatch: deps.Dispatch}
	healthHandler := &handlers.HealthHandler{Hub: deps.Hub}
	webSocketHandler := &handlers.WebSocketHandler{
		Hub:      deps.Hub,
		Tokens:   deps.Tokens,
		Users:    deps.Users,
		Dispatch: deps.Dispatch,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		},
	}

	router.GET("/healthz", healthHandler.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		authRoutes := apiV1.Group("/auth")
		{
			authRoutes.POST("/signup", authHandler.SignUp)
			authRoutes.POST("/login", authHandler.Login)
		}

		apiV1.POST("/alerts", publicAlertLimit, alertHandler.SubmitAlert)

		authed := apiV1.Group("/")
		authed.Use(middleware.Authenticate(deps.Tokens))
		{
			authed.GET("/me", authHandler.Me)
		}

		driver := apiV1.Group("/driver")
		driver.Use(middleware.Authenticate(deps.Tokens))
		driver.Use(middleware.Authorize(models.RoleAmbulanceDriver, models.RoleFireDriver))
		{
			driver.GET("/alerts", driverHandler.ListPendingAlerts)
			driver.POST("/alerts/:id/accept", driverHandler.AcceptAlert)
			driver.POST("/alerts/:id/reject", driverHandler.RejectAlert)

			mission := driver.Group("/mission")
			{
				mission.GET("", driverHandler.GetMission)
				mission.POST("/arrive", driverHandler.ArriveOnScene)
				mission.GET("/directions", driverHandler.Directions)
				mission.POST("/complete", driverHandler.CompleteMission)

				ambulance := mission.Group("/")
				ambulance.Use(middleware.Authorize(models.RoleAmbulanceDriver))
				{
					ambulance.GET("/hospitals", driverHandler.FindHospitals)
					ambulance.POST("/destination", driverHandler.SelectDestination)
				}
			}

			driver.POST("/position", driverHandler.ReportPosition)
			driver.POST("/panic", driverHandler.Panic)
			driver.GET("/history", driverHandler.History)
		}

		admin := apiV1.Group("/admin")
		admin.Use(middleware.Authenticate(deps.Tokens))
		admin.Use(middleware.Authorize(models.RoleAdmin))
		{
			admin.GET("/alerts", adminHandler.ListAlerts)
			admin.POST("/alerts", adminHandler.CreateAlert)
			admin.DELETE("/alerts/:id", adminHandler.DeleteAlert)
			admin.POST("/alerts/:id/assign", adminHandler.AssignVehicle)
			admin.GET("/stats", adminHandler.Stats)

			vehicles := admin.Group("/vehicles")
			{
				vehicles.GET("", adminHandler.ListVehicles)
				vehicles.POST("", adminHandler.CreateVehicle)
				vehicles.PATCH("/:id/status", adminHandler.UpdateVehicleStatus)
			}
		}
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization")
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
