package router

import (
	"html/template"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docextract/internal/config"
	"docextract/internal/handler"
	"docextract/internal/metrics"
	"docextract/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	cfg *config.Config,
	logger *zap.Logger,
	m *metrics.Metrics,
	tmpl *template.Template,
	extractH *handler.ExtractionHandler,
	exportH *handler.ExportHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()
	r.SetHTMLTemplate(tmpl)

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(m))
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	// HTML front end
	r.GET("/", extractH.Index)
	r.POST("/extract-text", extractH.ExtractPage)
	r.POST("/export", exportH.Export)

	v1 := r.Group("/api/v1")
	v1.POST("/extract", extractH.Extract)

	return r
}
