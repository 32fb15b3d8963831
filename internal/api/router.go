package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/app"
	iauth "github.com/visicontrol/visicontrol/internal/auth"
	"github.com/visicontrol/visicontrol/internal/handlers"
	"github.com/visicontrol/visicontrol/internal/middleware"
	"github.com/visicontrol/visicontrol/internal/realtime"
	"github.com/visicontrol/visicontrol/internal/services"
)

const defaultMetricsEndpoint = "/metrics"

// Dependencies bundles everything the router wires into handlers.
type Dependencies struct {
	DB            *gorm.DB
	Config        *app.Config
	JWT           *iauth.JWTService
	Hub           *realtime.Hub
	Notifications *services.NotificationService
	Visits        *services.VisitService
	Inmates       *services.InmateService
	Accounts      *services.AccountService
	// RateStore backs the credential endpoint limiter. Defaults to an in-memory store.
	RateStore middleware.RateStore
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return fmt.Errorf("database handle must be provided")
	case d.Config == nil:
		return fmt.Errorf("config must be provided")
	case d.JWT == nil:
		return fmt.Errorf("jwt service must be provided")
	case d.Hub == nil:
		return fmt.Errorf("realtime hub must be provided")
	case d.Notifications == nil:
		return fmt.Errorf("notification service must be provided")
	case d.Visits == nil:
		return fmt.Errorf("visit service must be provided")
	case d.Inmates == nil:
		return fmt.Errorf("inmate service must be provided")
	case d.Accounts == nil:
		return fmt.Errorf("account service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every API route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config
	if deps.RateStore == nil {
		deps.RateStore = middleware.NewMemoryRateStore()
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cfg.Server.IsProduction()))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))

	// Health endpoint (public)
	r.GET("/api/health", handlers.Health(deps.DB, deps.Hub))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = defaultMetricsEndpoint
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requests, window := cfg.Auth.RateLimitParams()
	limiter := middleware.RateLimit(deps.RateStore, requests, window)
	requireAuth := middleware.Auth(deps.JWT)

	api := r.Group("/api")

	registerAuthRoutes(api, handlers.NewAuthHandler(deps.Accounts), requireAuth, limiter)
	registerInmateRoutes(api, handlers.NewInmateHandler(deps.Inmates), requireAuth)
	registerVisitRoutes(api, handlers.NewVisitHandler(deps.Visits), requireAuth)

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Hub, handlers.NotificationHandlerConfig{
		Production:     cfg.Server.IsProduction(),
		AllowedOrigins: cfg.Server.CORSOrigins,
	})
	registerNotificationRoutes(api, notificationHandler, requireAuth, middleware.StreamAuth(deps.JWT))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
