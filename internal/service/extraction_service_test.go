package service_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"calibra/internal/domain"
	"calibra/internal/extractor"
	"calibra/internal/imagesource"
	"calibra/internal/imaging"
	"calibra/internal/port"
	"calibra/internal/report"
	"calibra/internal/service"
	"calibra/mocks"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(x port.VisionExtractor, loader service.ImageLoader, sample string) service.ExtractionService {
	b := report.NewBuilder("Calibration Report", domain.PresenceTruthy, func() time.Time {
		return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	})
	return service.NewExtractionService(x, b, loader, imaging.Limits{MaxBytes: 1 << 20}, sample)
}

func output(raw string) *port.ExtractOutput {
	return &port.ExtractOutput{RawResponse: raw, Provider: "openai", ModelUsed: "gpt-4o-mini"}
}

func TestExtract_Parsed(t *testing.T) {
	x := new(mocks.MockVisionExtractor)
	x.On("Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.ContentType == "image/png" && len(in.ImageBytes) > 0
	})).Return(output(`{"kV": "120", "Dose": "5.2 mGy", "Sensor": "S-200"}`), nil)

	svc := newTestService(x, nil, "")
	ext, err := svc.Extract(context.Background(), &service.ExtractInput{Image: pngBytes(t), SourceName: "shot.png"})

	require.NoError(t, err)
	assert.True(t, ext.Parsed())
	assert.Equal(t, domain.ExtractionStatusParsed, ext.Status)
	assert.Equal(t, domain.ParseStageStrict, ext.ParseStage)
	assert.Equal(t, "shot.png", ext.Source)
	assert.Equal(t, "openai", ext.Provider)
	assert.Equal(t, "gpt-4o-mini", ext.Model)
	assert.Len(t, ext.Fields, 3)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", ext.ID.String())
	assert.Contains(t, ext.Report.Text(), "- **Sensor:** S-200")
	x.AssertExpectations(t)
}

func TestExtract_ParseFailureIsNotAnError(t *testing.T) {
	x := new(mocks.MockVisionExtractor)
	x.On("Extract", mock.Anything, mock.Anything).Return(output("No data available."), nil)

	svc := newTestService(x, nil, "")
	ext, err := svc.Extract(context.Background(), &service.ExtractInput{Image: pngBytes(t)})

	require.NoError(t, err)
	assert.False(t, ext.Parsed())
	assert.Equal(t, domain.ExtractionStatusParseFailed, ext.Status)
	assert.Equal(t, domain.ParseStageFailed, ext.ParseStage)
	assert.Equal(t, "No data available.", ext.RawResponse)
	assert.Nil(t, ext.Report)
}

func TestExtract_ServiceErrorAborts(t *testing.T) {
	svcErr := domain.NewServiceError("openai", 401, errors.New("invalid api key"))
	x := new(mocks.MockVisionExtractor)
	x.On("Extract", mock.Anything, mock.Anything).Return(nil, svcErr)

	svc := newTestService(x, nil, "")
	ext, err := svc.Extract(context.Background(), &service.ExtractInput{Image: pngBytes(t)})

	assert.Nil(t, ext)
	assert.Same(t, svcErr, err)
	assert.True(t, errors.Is(err, domain.ErrServiceFailure))
}

func TestExtract_RateLimitPropagates(t *testing.T) {
	rl := extractor.NewRateLimitError("openai", errors.New("429"), 20)
	x := new(mocks.MockVisionExtractor)
	x.On("Extract", mock.Anything, mock.Anything).Return(nil, domain.NewServiceError("openai", 429, rl))

	svc := newTestService(x, nil, "")
	_, err := svc.Extract(context.Background(), &service.ExtractInput{Image: pngBytes(t)})

	var got *extractor.RateLimitError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, 20*time.Second, got.RetryAfter)
	x.AssertNumberOfCalls(t, "Extract", 1)
}

func TestExtract_BadImageNeverCallsProvider(t *testing.T) {
	x := new(mocks.MockVisionExtractor)

	svc := newTestService(x, nil, "")

	_, err := svc.Extract(context.Background(), &service.ExtractInput{Image: []byte("not an image")})
	assert.True(t, errors.Is(err, domain.ErrUnsupportedImage))

	_, err = svc.Extract(context.Background(), &service.ExtractInput{})
	assert.True(t, errors.Is(err, domain.ErrEmptyImage))

	x.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestExtract_NoExtractorConfigured(t *testing.T) {
	svc := newTestService(nil, nil, "")

	_, err := svc.Extract(context.Background(), &service.ExtractInput{Image: pngBytes(t)})

	assert.True(t, errors.Is(err, domain.ErrExtractorNotConfigured))
	assert.True(t, errors.Is(svc.Ready(), domain.ErrExtractorNotConfigured))
}

func TestExtractFromSource_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "screen.png")
	require.NoError(t, os.WriteFile(p, pngBytes(t), 0o600))

	x := new(mocks.MockVisionExtractor)
	x.On("Extract", mock.Anything, mock.Anything).Return(output("Result: {\"kV\": 80} done"), nil)

	svc := newTestService(x, imagesource.NewResolver(nil, nil, 1<<20), "")
	ext, err := svc.ExtractFromSource(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, "screen.png", ext.Source)
	assert.Equal(t, domain.ParseStageFallback, ext.ParseStage)
	assert.Contains(t, ext.Report.Lines(), "- **kV:** 80")
}

func TestExtractFromSource_S3(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	storage.On("Download", mock.Anything, "qa", "2025/room1.png").Return(pngBytes(t), nil)

	x := new(mocks.MockVisionExtractor)
	x.On("Extract", mock.Anything, mock.Anything).Return(output(`{}`), nil)

	svc := newTestService(x, imagesource.NewResolver(storage, nil, 0), "")
	ext, err := svc.ExtractFromSource(context.Background(), "s3://qa/2025/room1.png")

	require.NoError(t, err)
	assert.Equal(t, "room1.png", ext.Source)
	assert.True(t, ext.Parsed())
	storage.AssertExpectations(t)
}

func TestExtractFromSource_LoadError(t *testing.T) {
	x := new(mocks.MockVisionExtractor)
	svc := newTestService(x, imagesource.NewResolver(nil, nil, 0), "")

	_, err := svc.ExtractFromSource(context.Background(), filepath.Join(t.TempDir(), "missing.png"))

	assert.True(t, errors.Is(err, domain.ErrImageNotFound))
	x.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestExtractSample(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sample_calibration.png")
	require.NoError(t, os.WriteFile(p, pngBytes(t), 0o600))

	x := new(mocks.MockVisionExtractor)
	x.On("Extract", mock.Anything, mock.Anything).Return(output(`{"HVL": "3.2 mm Al"}`), nil)

	svc := newTestService(x, imagesource.NewResolver(nil, nil, 0), p)
	ext, err := svc.ExtractSample(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "sample_calibration.png", ext.Source)

	_, err = newTestService(x, nil, "").ExtractSample(context.Background())
	assert.True(t, errors.Is(err, domain.ErrSampleImageNotSet))
}

func TestExport(t *testing.T) {
	x := new(mocks.MockVisionExtractor)
	x.On("Extract", mock.Anything, mock.Anything).Return(output(`{"kV": "90"}`), nil).Once()
	x.On("Extract", mock.Anything, mock.Anything).Return(output(`garbage`), nil).Once()

	svc := newTestService(x, nil, "")

	ok, err := svc.Extract(context.Background(), &service.ExtractInput{Image: pngBytes(t)})
	require.NoError(t, err)
	a, err := svc.Export(ok, domain.ExportFormatText)
	require.NoError(t, err)
	assert.Equal(t, "calibration_report.txt", a.FileName)
	assert.Equal(t, ok.Report.Text(), string(a.Data))

	failed, err := svc.Extract(context.Background(), &service.ExtractInput{Image: pngBytes(t)})
	require.NoError(t, err)
	_, err = svc.Export(failed, domain.ExportFormatText)
	assert.True(t, errors.Is(err, domain.ErrReportUnavailable))

	_, err = svc.Export(nil, domain.ExportFormatCSV)
	assert.True(t, errors.Is(err, domain.ErrReportUnavailable))
}
