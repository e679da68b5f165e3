package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"calibra/internal/config"
	"calibra/internal/domain"
	"calibra/internal/extractor"
	_ "calibra/internal/extractor/claude"
	_ "calibra/internal/extractor/gemini"
	_ "calibra/internal/extractor/openai"
	"calibra/internal/handler"
	"calibra/internal/imagesource"
	"calibra/internal/imaging"
	"calibra/internal/logutil"
	"calibra/internal/port"
	"calibra/internal/report"
	"calibra/internal/router"
	"calibra/internal/service"
	s3storage "calibra/internal/storage/s3"
)

// multipartOverhead is added to the image limit when capping request bodies.
const multipartOverhead = 1 << 20

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logutil.Setup(cfg.Log, os.Stderr)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize extractor. A missing key leaves the server up but not ready.
	var visionExtractor port.VisionExtractor
	visionExtractor, err = extractor.NewExtractor(&cfg.Extractor)
	switch {
	case errors.Is(err, domain.ErrExtractorNotConfigured):
		log.Printf("WARNING: %v; /readyz will report unavailable", err)
		visionExtractor = nil
	case err != nil:
		return fmt.Errorf("failed to initialize extractor: %w", err)
	default:
		log.Printf("Extractor: provider=%s model=%q key=%s timeout=%s",
			cfg.Extractor.Provider, cfg.Extractor.Model, logutil.RedactKey(cfg.Extractor.APIKey), cfg.Extractor.Timeout())
	}

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3, cfg.Extraction.MaxImageBytes())
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize services
	builder := report.NewBuilder(cfg.Report.Title, domain.ParsePresencePolicy(cfg.Report.PresencePolicy), nil)
	resolver := imagesource.NewResolver(s3Client, nil, cfg.Extraction.MaxImageBytes())
	extractionSvc := service.NewExtractionService(
		visionExtractor,
		builder,
		resolver,
		imaging.Limits{MaxBytes: cfg.Extraction.MaxImageBytes(), MaxPixels: cfg.Extraction.MaxImagePixels()},
		cfg.Extraction.SampleImage,
	)

	// Initialize handlers
	extractionH := handler.NewExtractionHandler(extractionSvc, cfg.Extraction.MaxImageBytes())
	healthH := handler.NewHealthHandler(extractionSvc)

	// Setup router
	r := router.Setup(extractionH, healthH, router.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxBodyBytes:   cfg.Extraction.MaxImageBytes() + multipartOverhead,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
