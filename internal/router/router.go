package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scanorder/internal/config"
	"scanorder/internal/handler"
	"scanorder/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	logger *zap.Logger,
	documentH *handler.DocumentHandler,
	orderH *handler.OrderHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()
	// Uploads are streamed part by part; keep little of them in memory.
	r.MaxMultipartMemory = 1 << 20

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(&cfg.CORS))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	api := r.Group("/api")

	documents := api.Group("/documents")
	documents.POST("", documentH.Upload)
	documents.GET("/:id", documentH.Status)
	documents.GET("/:id/events", documentH.Events)
	documents.PUT("/:id/save", documentH.Save)

	orders := api.Group("/orders")
	orders.GET("", orderH.List)
	orders.GET("/:id", orderH.Get)

	exports := api.Group("/export")
	exports.GET("/orders.csv", orderH.ExportCSV)
	exports.GET("/orders.xlsx", orderH.ExportXLSX)

	return r
}
