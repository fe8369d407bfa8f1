package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tg-monitor-relay-go/internal/config"
	"tg-monitor-relay-go/internal/matcher"
	"tg-monitor-relay-go/internal/metrics"
	"tg-monitor-relay-go/internal/repository"
	"tg-monitor-relay-go/internal/runtime"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	repo    *repository.Repository
	runtime *runtime.Runtime
	matcher *matcher.Matcher
	metrics *metrics.Metrics
	tokens  *TokenManager
	admin   config.AdminConfig
}

// NewHandlers creates new HTTP handlers
func NewHandlers(repo *repository.Repository, rt *runtime.Runtime, m *matcher.Matcher, mtr *metrics.Metrics, admin config.AdminConfig) *Handlers {
	return &Handlers{
		repo:    repo,
		runtime: rt,
		matcher: m,
		metrics: mtr,
		tokens:  NewTokenManager(admin),
		admin:   admin,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Admin authentication
	router.POST("/login", h.Login)

	// API routes
	api := router.Group("/api/v1")
	api.Use(h.authMiddleware())
	{
		// Status and controls
		api.GET("/status", h.GetStatus)
		api.POST("/controls/enable", h.Enable)
		api.POST("/controls/disable", h.Disable)
		api.POST("/controls/restart", h.Restart)
		api.POST("/cleanup", h.CleanupNow)

		// Keywords
		api.GET("/keywords", h.ListKeywords)
		api.POST("/keywords", h.AddKeyword)
		api.DELETE("/keywords/:id", h.DeleteKeyword)

		// Event log
		api.GET("/logs", h.GetLogs)
	}
}
