package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mealkeeper/mealkeeper/internal/database"
	"github.com/mealkeeper/mealkeeper/internal/oauth2"
	"github.com/mealkeeper/mealkeeper/internal/services"
	"github.com/mealkeeper/mealkeeper/internal/tokenstore"
)

// RouterConfig carries the dependencies the router needs.
type RouterConfig struct {
	Database      *database.Database
	BackupService *services.BackupService
	FlowHandler   *oauth2.FlowHandler
	TokenStore    *tokenstore.Store
	Version       string
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(AccountMiddleware())

	health := NewHealthController(cfg.Database, cfg.Version)
	backup := NewBackupController(cfg.BackupService)
	schedule := NewScheduleController(cfg.BackupService)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Import/export endpoints
	router.POST("/api/backup/preview", backup.Preview)
	router.POST("/api/backup/import", backup.Import)
	router.GET("/api/backup/export", backup.Export)

	// Cloud backup endpoints
	router.POST("/api/backup/cloud/:provider", backup.BackupToCloud)
	router.GET("/api/backup/cloud/:provider", backup.ListRemote)
	router.GET("/api/backup/cloud/:provider/preview", backup.PreviewRemote)
	router.POST("/api/backup/cloud/:provider/restore", backup.RestoreFromCloud)
	router.DELETE("/api/backup/cloud/:provider", backup.DeleteRemote)

	// History and accounting
	router.GET("/api/backup/history", backup.History)
	router.GET("/api/backup/audit", backup.AuditTrail)
	router.GET("/api/backup/usage", backup.UsageStats)

	// Schedule endpoints
	router.GET("/api/backup/schedule", schedule.Get)
	router.PUT("/api/backup/schedule", schedule.Update)

	// Provider connection endpoints
	if cfg.FlowHandler != nil && cfg.TokenStore != nil {
		providers := NewProvidersController(cfg.FlowHandler, cfg.TokenStore)
		router.GET("/api/providers", providers.Status)
		router.POST("/api/providers/:provider/connect", providers.Connect)
		router.GET("/api/providers/callback", providers.Callback)
		router.DELETE("/api/providers/:provider", providers.Disconnect)
	}

	return router
}
