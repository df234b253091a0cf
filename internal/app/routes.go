package app

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nxhieu3102/ai-assistant/internal/config"
	"github.com/nxhieu3102/ai-assistant/internal/handlers"
	"github.com/nxhieu3102/ai-assistant/internal/service"
)

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, cfg config.Config, taskSvc *service.TaskService, log *slog.Logger) {
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg))
	r.GET("/version", versionHandler(cfg))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	taskHandler := handlers.NewTaskHandler(taskSvc, log)
	registerTaskRoutes(r.Group("/tasks"), taskHandler)
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "AI Assistant Tasks API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"health":  "/health",
			"tasks":   "/tasks",
		})
	}
}

func healthHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"version": cfg.App.Version})
	}
}

func registerTaskRoutes(api *gin.RouterGroup, h *handlers.TaskHandler) {
	api.GET("", h.List)
	api.POST("", h.Create)
	api.PUT("/:id", h.Update)
	api.DELETE("/:id", h.Delete)
	api.POST("/migrate", h.Migrate)
	api.GET("/calendar", h.Calendar)
	api.GET("/incomplete", h.Incomplete)
}
