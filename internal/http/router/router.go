package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alwalid54321/su-st-sub001/internal/config"
	"github.com/alwalid54321/su-st-sub001/internal/http/handlers"
	"github.com/alwalid54321/su-st-sub001/internal/http/middleware"
	"github.com/alwalid54321/su-st-sub001/internal/metrics"
	"github.com/alwalid54321/su-st-sub001/internal/service"
)

// Handlers собирает зависимости HTTP слоя.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Verification *handlers.VerificationHandler
	Alerts       *handlers.AlertHandler
	Admin        *handlers.AdminHandler
	Health       *handlers.HealthHandler
}

// SetupRouter регистрирует маршруты. m и gatherer могут быть nil, тогда /metrics не публикуется.
func SetupRouter(
	cfg *config.Config,
	h Handlers,
	tokenManager *service.TokenManager,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	if m != nil {
		r.Use(m.Middleware())
	}

	r.GET("/health", h.Health.Health)
	if cfg.MetricsEnabled && gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/resend-verification", h.Verification.ResendVerification)
		authGroup.POST("/verify-email", h.Verification.VerifyEmail)
		authGroup.POST("/password-reset/request", h.Verification.RequestPasswordReset)
		authGroup.POST("/password-reset/confirm", h.Verification.ResetPassword)
		authGroup.POST("/login-code/request", h.Verification.RequestLoginCode)
		authGroup.POST("/login-code/verify", h.Verification.VerifyLoginCode)
	}

	auth := middleware.AuthMiddleware(tokenManager)

	api.GET("/auth/session", auth, h.Auth.Session)

	user := api.Group("/user")
	user.Use(auth)
	{
		user.GET("/alerts", h.Alerts.List)
		user.POST("/alerts", h.Alerts.Create)
		user.DELETE("/alerts", h.Alerts.Delete)
		user.POST("/push-subscription", h.Alerts.SaveSubscription)
		user.DELETE("/push-subscription", h.Alerts.DeleteSubscription)
	}

	api.GET("/cron/check-alerts", middleware.CronAuth(cfg.CronSecret), h.Alerts.CheckAlerts)

	admin := api.Group("/admin")
	admin.Use(auth, middleware.RequireAdmin())
	{
		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:id", middleware.UUIDValidator("id"), h.Admin.UpdateUser)
		admin.DELETE("/users/:id", middleware.UUIDValidator("id"), h.Admin.DisableUser)
		admin.DELETE("/attempts/:identifier", h.Admin.ClearAttempts)
	}

	return r
}
