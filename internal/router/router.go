package router

import (
	"github.com/gin-gonic/gin"

	"calibra/internal/handler"
	"calibra/internal/middleware"
)

// Options holds router-level settings.
type Options struct {
	AllowedOrigins []string
	// MaxBodyBytes caps upload request bodies; multipart overhead is added by the caller.
	MaxBodyBytes int64
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	extractionH *handler.ExtractionHandler,
	healthH *handler.HealthHandler,
	opts Options,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")
	v1.GET("/fields", extractionH.Fields)

	extractions := v1.Group("/extractions")
	extractions.Use(middleware.BodyLimit(opts.MaxBodyBytes))
	extractions.POST("", extractionH.Extract)
	extractions.POST("/report", extractionH.Report)
	extractions.POST("/sample", extractionH.Sample)

	return r
}
