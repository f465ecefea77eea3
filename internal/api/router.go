package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/handlers"
	"github.com/charlesng35/talenthub/internal/middleware"
	"github.com/charlesng35/talenthub/internal/realtime"
	"github.com/charlesng35/talenthub/internal/services"
)

// RateLimitSettings configures the per client token bucket.
type RateLimitSettings struct {
	RPS   float64
	Burst int
}

// Dependencies carries everything the router mounts. Services are built once
// at process start and shared by every request.
type Dependencies struct {
	DB            *gorm.DB
	Auth          middleware.Authenticator
	Hub           *realtime.Hub
	Applications  *services.ApplicationService
	Notifications *services.NotificationService
	SavedJobs     *services.SavedJobService
	Dashboard     *services.DashboardService

	// Resumes enables multipart resume uploads when set.
	Resumes handlers.ResumeStore
	// ResumeDir is served under ResumePath when both are set.
	ResumeDir  string
	ResumePath string

	AllowedOrigins  []string
	RateLimit       RateLimitSettings
	MetricsEndpoint string
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("database handle must be provided")
	case d.Auth == nil:
		return errors.New("authenticator must be provided")
	case d.Hub == nil:
		return errors.New("realtime hub must be provided")
	case d.Applications == nil:
		return errors.New("application service must be provided")
	case d.Notifications == nil:
		return errors.New("notification service must be provided")
	case d.SavedJobs == nil:
		return errors.New("saved job service must be provided")
	case d.Dashboard == nil:
		return errors.New("dashboard service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(deps.AllowedOrigins...))
	r.Use(middleware.RateLimit(deps.RateLimit.RPS, deps.RateLimit.Burst))

	// Public
	r.GET("/api/health", handlers.Health(deps.DB))
	r.GET("/api/ws", handlers.NewRealtimeHandler(deps.Hub, deps.Auth).Stream)
	if endpoint := strings.TrimSpace(deps.MetricsEndpoint); endpoint != "" {
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}
	if deps.ResumeDir != "" && deps.ResumePath != "" {
		r.Static(deps.ResumePath, deps.ResumeDir)
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Auth))

	registerApplicationRoutes(api, handlers.NewApplicationHandler(deps.Applications, deps.Resumes))
	registerNotificationRoutes(api, handlers.NewNotificationHandler(deps.Notifications))
	registerSavedJobRoutes(api, handlers.NewSavedJobHandler(deps.SavedJobs))
	registerDashboardRoutes(api, handlers.NewDashboardHandler(deps.Dashboard))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
