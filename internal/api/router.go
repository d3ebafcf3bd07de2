package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/mentorhub/internal/app"
	iauth "github.com/charlesng35/mentorhub/internal/auth"
	"github.com/charlesng35/mentorhub/internal/handlers"
	"github.com/charlesng35/mentorhub/internal/middleware"
	"github.com/charlesng35/mentorhub/internal/monitoring"
	"github.com/charlesng35/mentorhub/internal/realtime"
	"github.com/charlesng35/mentorhub/internal/services"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	DB            *gorm.DB
	JWT           *iauth.JWTService
	Config        *app.Config
	Engine        *services.MatchingEngine
	Profiles      *services.ProfileService
	Notifications *services.NotificationService
	Hub           *realtime.Hub
	Health        *monitoring.HealthManager
	RateStore     middleware.RateStore
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return fmt.Errorf("database handle must be provided")
	case d.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.Engine == nil:
		return fmt.Errorf("matching engine must be provided")
	case d.Profiles == nil:
		return fmt.Errorf("profile service must be provided")
	case d.Notifications == nil:
		return fmt.Errorf("notification service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers the MentorHub routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Tracing())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, cfg, deps.Health)

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))
	if limit := cfg.Server.RateLimit; limit.Enabled && limit.Requests > 0 {
		store := deps.RateStore
		if store == nil {
			store = middleware.NewMemoryRateStore()
		}
		api.Use(middleware.RateLimit(store, limit.Requests, limit.Window))
	}

	registerRequestRoutes(api, handlers.NewRequestHandler(deps.Engine))
	registerConnectionRoutes(api, handlers.NewConnectionHandler(deps.Engine))
	registerDashboardRoutes(api, handlers.NewDashboardHandler(deps.Engine))
	registerProfileRoutes(api, handlers.NewProfileHandler(deps.Profiles))
	registerNotificationRoutes(api, handlers.NewNotificationHandler(deps.Notifications))

	if deps.Hub != nil {
		realtimeHandler := handlers.NewRealtimeHandler(deps.Hub)
		api.GET("/realtime", realtimeHandler.Stream)
		api.GET("/realtime/:stream", realtimeHandler.Stream)
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
