package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/HugoCL/mlh-code-check-sub000/internal/analyses"
	"github.com/HugoCL/mlh-code-check-sub000/internal/repositories"
	"github.com/HugoCL/mlh-code-check-sub000/internal/rubrics"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/config"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/metrics"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server/middleware"
	"github.com/HugoCL/mlh-code-check-sub000/internal/shared/server/respond"
	"github.com/HugoCL/mlh-code-check-sub000/internal/usage"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config            config.Config
	RepositoryHandler *repositories.Handler
	RubricHandler     *rubrics.Handler
	AnalysisHandler   *analyses.Handler
	UsageHandler      *usage.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"WRITE": {Rate: 2, Burst: 10},
			},
			DefaultGroup: "READ",
			GroupFor: func(c *gin.Context) string {
				switch c.Request.Method {
				case http.MethodPost, http.MethodPut, http.MethodDelete:
					return "WRITE"
				default:
					return "READ"
				}
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.RepositoryHandler != nil {
		deps.RepositoryHandler.RegisterRoutes(api)
	}
	if deps.RubricHandler != nil {
		deps.RubricHandler.RegisterRoutes(api)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.UsageHandler != nil {
		deps.UsageHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
