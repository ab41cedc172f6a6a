package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/calcutta-sim/internal/api/handlers"
	"github.com/stitts-dev/calcutta-sim/internal/api/middleware"
	"github.com/stitts-dev/calcutta-sim/internal/services"
	"github.com/stitts-dev/calcutta-sim/pkg/database"
)

// Dependencies are the services the router wires into handlers. Only
// Allocation is required.
type Dependencies struct {
	Allocation  *services.AllocationService
	DB          *database.DB
	Cache       *services.CacheService
	Breakers    *services.CircuitBreakerService
	RateLimiter *services.ClientRateLimiter
	Metrics     *services.Metrics
	CorsOrigins []string
	Logger      *logrus.Logger
}

// NewRouter builds the gin engine with every route registered
func NewRouter(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(deps.CorsOrigins))

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache, deps.Breakers, deps.Logger)
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	SetupRoutes(apiV1, deps)

	return router
}

// SetupRoutes configures all API routes on the given router group
func SetupRoutes(group *gin.RouterGroup, deps Dependencies) {
	allocationHandler := handlers.NewAllocationHandler(deps.Allocation, deps.Logger)

	allocate := group.Group("/allocate")
	if deps.RateLimiter != nil {
		allocate.Use(middleware.RateLimit(deps.RateLimiter))
	}
	{
		allocate.POST("", allocationHandler.Allocate)
		allocate.POST("/validate", allocationHandler.ValidateAllocation)
		allocate.POST("/compare", allocationHandler.Compare)
	}

	group.GET("/allocations", allocationHandler.ListRuns)
	group.GET("/allocations/:id", allocationHandler.GetRun)
}
