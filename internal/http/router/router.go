package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/scout-reports/internal/config"
	"github.com/ignatzorin/scout-reports/internal/http/handlers"
	"github.com/ignatzorin/scout-reports/internal/http/middleware"
	"github.com/ignatzorin/scout-reports/internal/metrics"
	"github.com/ignatzorin/scout-reports/internal/service"
)

// Handlers набор хэндлеров API. Analyze и Reports обязательны.
type Handlers struct {
	Analyze  *handlers.AnalyzeHandler
	Auth     *handlers.AuthHandler
	Upload   *handlers.UploadHandler
	Reports  *handlers.ReportHandler
	Profile  *handlers.ProfileHandler
	Health   *handlers.HealthHandler
	Realtime *handlers.RealtimeHandler
}

// Deps зависимости маршрутизатора.
type Deps struct {
	Tokens       *service.TokenManager
	Roles        middleware.RoleLookup
	LimiterStore limiter.Store
	Metrics      *metrics.Metrics
	// MediaRoot каталог локального хранилища, пустой для S3.
	MediaRoot string
}

func SetupRouter(cfg *config.Config, h Handlers, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.MetricsMiddleware(deps.Metrics))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	if h.Health != nil {
		r.GET("/health", h.Health.Health)
	}
	if reg := deps.Metrics.Registry(); reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}
	if deps.MediaRoot != "" {
		r.StaticFS("/media", http.Dir(deps.MediaRoot))
	}

	api := r.Group("/api")
	requireAuth := middleware.AuthMiddleware(deps.Tokens, deps.Roles)

	if h.Auth != nil {
		authGroup := api.Group("/auth")
		authGroup.Use(middleware.RateLimitMiddleware(deps.LimiterStore, "auth", 5, cfg.RateLimitPeriod))
		authGroup.POST("/signup", h.Auth.SignUp)
		authGroup.POST("/signin", h.Auth.SignIn)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/signout", requireAuth, h.Auth.SignOut)
	}

	api.POST("/analyze",
		middleware.RateLimitMiddleware(deps.LimiterStore, "analyze", cfg.RateLimitLimit, cfg.RateLimitPeriod),
		middleware.OptionalAuth(deps.Tokens),
		h.Analyze.Analyze,
	)

	protected := api.Group("/")
	protected.Use(requireAuth)
	{
		if h.Upload != nil {
			protected.POST("/uploads", h.Upload.Upload)
		}

		protected.GET("/reports", h.Reports.List)
		protected.GET("/reports/map", h.Reports.Map)
		protected.PATCH("/reports/:id/resolve", middleware.UUIDValidator("id"), h.Reports.Resolve)
		protected.GET("/ranger/dashboard", h.Reports.Dashboard)

		if h.Profile != nil {
			protected.GET("/profile", h.Profile.Get)
			protected.GET("/profile/stats", h.Profile.Stats)
		}

		if h.Realtime != nil {
			protected.GET("/realtime", h.Realtime.Handle)
		}
	}

	return r
}
