package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"calibra/internal/domain"
	"calibra/internal/export"
	"calibra/internal/imagesource"
	"calibra/internal/imaging"
	"calibra/internal/port"
	"calibra/internal/report"
)

var errNoImageLoader = errors.New("no image loader configured")

// ExtractInput is the DTO for extracting calibration values from an image.
type ExtractInput struct {
	Image      []byte
	SourceName string
}

// ImageLoader resolves an image reference (path, "-", s3://) to bytes.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (*imagesource.Source, error)
}

// ExtractionService defines the screenshot extraction contract.
//
// A response the model produced but that could not be parsed is not an
// error: the returned Extraction has status parse_failed and keeps the raw
// response. Provider failures are returned as *domain.ServiceError.
type ExtractionService interface {
	Extract(ctx context.Context, input *ExtractInput) (*domain.Extraction, error)
	ExtractFromSource(ctx context.Context, ref string) (*domain.Extraction, error)
	ExtractSample(ctx context.Context) (*domain.Extraction, error)
	Export(ext *domain.Extraction, format domain.ExportFormat) (*export.Artifact, error)
	Ready() error
}

type extractionService struct {
	extractor   port.VisionExtractor
	builder     *report.Builder
	loader      ImageLoader
	limits      imaging.Limits
	sampleImage string
}

// NewExtractionService creates a new ExtractionService. extractor may be nil
// when no provider is configured; extraction then fails until one is.
func NewExtractionService(
	extractor port.VisionExtractor,
	builder *report.Builder,
	loader ImageLoader,
	limits imaging.Limits,
	sampleImage string,
) ExtractionService {
	return &extractionService{
		extractor:   extractor,
		builder:     builder,
		loader:      loader,
		limits:      limits,
		sampleImage: sampleImage,
	}
}

func (s *extractionService) Ready() error {
	if s.extractor == nil {
		return domain.ErrExtractorNotConfigured
	}
	return nil
}

func (s *extractionService) Extract(ctx context.Context, input *ExtractInput) (*domain.Extraction, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	img, err := imaging.Normalize(input.Image, s.limits)
	if err != nil {
		log.Printf("extractionService.Extract: rejecting image %q: %v", input.SourceName, err)
		return nil, err
	}

	log.Printf("extractionService.Extract: extracting %q (%s %dx%d, %d bytes)",
		input.SourceName, img.OriginalFormat, img.Width, img.Height, len(img.Data))

	start := time.Now()
	out, err := s.extractor.Extract(ctx, port.ExtractInput{
		ImageBytes:  img.Data,
		ContentType: img.ContentType,
	})
	elapsed := time.Since(start)
	if err != nil {
		log.Printf("extractionService.Extract: provider call failed for %q after %s: %v",
			input.SourceName, elapsed.Round(time.Millisecond), err)
		return nil, err
	}

	res := s.builder.Build(out.RawResponse)

	ext := &domain.Extraction{
		ID:          uuid.New(),
		Status:      res.Status,
		Source:      input.SourceName,
		Provider:    out.Provider,
		Model:       out.ModelUsed,
		RawResponse: out.RawResponse,
		ParseStage:  res.Stage,
		Fields:      res.Fields,
		Report:      res.Report,
		Duration:    elapsed,
		DurationSec: elapsed.Seconds(),
		CreatedAt:   time.Now().UTC(),
	}

	if !res.Parsed() {
		log.Printf("extractionService.Extract: extraction %s could not be parsed (%s/%s, %s): %v",
			ext.ID, ext.Provider, ext.Model, elapsed.Round(time.Millisecond), res.Err)
		return ext, nil
	}

	log.Printf("extractionService.Extract: extraction %s parsed via %s stage, %d fields (%s/%s, %s)",
		ext.ID, ext.ParseStage, len(ext.Fields), ext.Provider, ext.Model, elapsed.Round(time.Millisecond))
	return ext, nil
}

func (s *extractionService) ExtractFromSource(ctx context.Context, ref string) (*domain.Extraction, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("loading %s: %w", ref, errNoImageLoader)
	}
	src, err := s.loader.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.Extract(ctx, &ExtractInput{Image: src.Data, SourceName: src.Name})
}

func (s *extractionService) ExtractSample(ctx context.Context) (*domain.Extraction, error) {
	if s.sampleImage == "" {
		return nil, domain.ErrSampleImageNotSet
	}
	return s.ExtractFromSource(ctx, s.sampleImage)
}

func (s *extractionService) Export(ext *domain.Extraction, format domain.ExportFormat) (*export.Artifact, error) {
	if ext == nil || !ext.Parsed() {
		return nil, domain.ErrReportUnavailable
	}
	return export.Render(ext.Report, format)
}
