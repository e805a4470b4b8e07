package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/taskflow/taskflow-api/docs"
	"github.com/taskflow/taskflow-api/internal/api/handler"
	"github.com/taskflow/taskflow-api/internal/api/middleware"
	"github.com/taskflow/taskflow-api/internal/core/domain"
	"github.com/taskflow/taskflow-api/internal/core/ports"
)

const (
	bodyLimit        = "1M"
	webhookBodyLimit = "64K"
)

// Deps carries everything the router wires into handlers and middleware.
type Deps struct {
	Log         zerolog.Logger
	Production  bool
	FrontendURL string
	// RateLimit is requests per second per client IP. Zero disables limiting.
	RateLimit float64

	Auth          ports.AuthService
	Users         ports.UserService
	Projects      ports.ProjectService
	Tasks         ports.TaskService
	Billing       ports.BillingService
	Subscriptions ports.SubscriptionRepository

	HealthChecks map[string]handler.HealthCheck
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, d.Production)

	// --- Global middleware ---
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(middleware.Metrics())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         15552000,
		ReferrerPolicy:     "no-referrer",
	}))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     []string{d.FrontendURL},
		AllowCredentials: true,
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
		},
	}))
	e.Use(echomiddleware.GzipWithConfig(echomiddleware.GzipConfig{Skipper: isOpsPath}))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	if d.RateLimit > 0 {
		e.Use(echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
			Skipper: isOpsPath,
			Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(d.RateLimit),
				Burst:     rateLimitBurst(d.RateLimit),
				ExpiresIn: 3 * time.Minute,
			}),
		}))
	}

	// --- Health probes, metrics and docs (no auth required) ---
	health := handler.NewHealthHandler(d.HealthChecks)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if !d.Production {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	api := e.Group("/api")
	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "success", "message": "API is running"})
	})

	protect := middleware.Auth(d.Auth)
	entitled := middleware.RequireActiveSubscription(d.Subscriptions)

	authH := handler.NewAuthHandler(d.Auth)
	userH := handler.NewUserHandler(d.Users)
	projectH := handler.NewProjectHandler(d.Projects)
	taskH := handler.NewTaskHandler(d.Tasks)
	subH := handler.NewSubscriptionHandler(d.Billing)

	// --- Auth ---
	auth := api.Group("/auth")
	auth.POST("/register", authH.Register)
	auth.POST("/login", authH.Login)
	auth.GET("/me", userH.Me, protect)
	auth.PATCH("/update-me", userH.UpdateMe, protect)
	auth.PATCH("/update-password", authH.UpdatePassword, protect)

	// --- Users ---
	users := api.Group("/users", protect)
	users.GET("/me", userH.Me)
	users.PATCH("/update-me", userH.UpdateMe)
	users.DELETE("/delete-me", userH.DeleteMe)

	adminOnly := middleware.RestrictTo(domain.RoleAdmin)
	users.GET("", userH.List, adminOnly)
	users.GET("/:id", userH.Get, adminOnly)
	users.PATCH("/:id", userH.Update, adminOnly)
	users.DELETE("/:id", userH.Delete, adminOnly)

	// --- Projects, members, tasks ---
	projects := api.Group("/projects", protect)
	projects.GET("", projectH.List)
	projects.POST("", projectH.Create, entitled)
	projects.GET("/:projectId", projectH.Get)
	projects.PATCH("/:projectId", projectH.Update)
	projects.DELETE("/:projectId", projectH.Delete)

	projects.GET("/:projectId/members", projectH.ListMembers)
	projects.POST("/:projectId/members", projectH.AddMember, entitled)
	projects.PATCH("/:projectId/members/:userId", projectH.UpdateMemberRole)
	projects.DELETE("/:projectId/members/:userId", projectH.RemoveMember)

	projects.GET("/:projectId/tasks", taskH.List)
	projects.POST("/:projectId/tasks", taskH.Create, entitled)
	projects.GET("/:projectId/tasks/:taskId", taskH.Get)
	projects.PATCH("/:projectId/tasks/:taskId", taskH.Update)
	projects.DELETE("/:projectId/tasks/:taskId", taskH.Delete)
	projects.POST("/:projectId/tasks/:taskId/comments", taskH.AddComment)

	// --- Subscriptions ---
	subs := api.Group("/subscriptions")
	subs.POST("/webhook", subH.Webhook, echomiddleware.BodyLimit(webhookBodyLimit))
	subs.GET("/plans", subH.Plans, protect)
	subs.GET("/my-subscription", subH.MySubscription, protect)
	subs.POST("/create-checkout-session", subH.CreateCheckoutSession, protect)
	subs.POST("/cancel", subH.Cancel, protect)

	return e
}

// isOpsPath matches probe, metrics and docs routes.
// rateLimitBurst allows twice the per-second rate, and at least one request so
// fractional rates still admit traffic.
func rateLimitBurst(rps float64) int {
	return max(1, int(rps*2))
}

func isOpsPath(c echo.Context) bool {
	p := c.Request().URL.Path
	return strings.HasPrefix(p, "/health") || p == "/metrics" || strings.HasPrefix(p, "/swagger")
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		Skipper:      isOpsPath,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
