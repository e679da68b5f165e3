package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"calibra/internal/domain"
	"calibra/internal/export"
	"calibra/internal/service"
)

// ExtractionHandler handles screenshot extraction endpoints.
type ExtractionHandler struct {
	extractionService service.ExtractionService
	maxImageBytes     int64
}

// NewExtractionHandler creates a new ExtractionHandler.
func NewExtractionHandler(extractionService service.ExtractionService, maxImageBytes int64) *ExtractionHandler {
	return &ExtractionHandler{extractionService: extractionService, maxImageBytes: maxImageBytes}
}

// FieldsResponse lists the calibration vocabulary in report order.
type FieldsResponse struct {
	Primary  []string `json:"primary"`
	Metadata []string `json:"metadata"`
}

// Fields handles GET /api/v1/fields
func (h *ExtractionHandler) Fields(c *gin.Context) {
	RespondOK(c, FieldsResponse{Primary: domain.PrimaryFields, Metadata: domain.MetadataFields})
}

// Extract handles POST /api/v1/extractions
// Expects a multipart form with a "file" image field.
func (h *ExtractionHandler) Extract(c *gin.Context) {
	ext, ok := h.extractUpload(c)
	if !ok {
		return
	}
	if !ext.Parsed() {
		RespondParseFailure(c, ext)
		return
	}
	RespondOK(c, ext)
}

// Sample handles POST /api/v1/extractions/sample
func (h *ExtractionHandler) Sample(c *gin.Context) {
	ext, err := h.extractionService.ExtractSample(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	if !ext.Parsed() {
		RespondParseFailure(c, ext)
		return
	}
	RespondOK(c, ext)
}

// Report handles POST /api/v1/extractions/report?format=txt|csv|xlsx
// Runs the extraction and returns the report as a file download.
func (h *ExtractionHandler) Report(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}

	ext, ok := h.extractUpload(c)
	if !ok {
		return
	}
	if !ext.Parsed() {
		RespondParseFailure(c, ext)
		return
	}

	artifact, err := h.extractionService.Export(ext, format)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifact.FileName))
	c.Header("X-Extraction-ID", ext.ID.String())
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

// extractUpload reads the "file" form field and runs the extraction. It writes
// the error response itself and returns false on failure.
func (h *ExtractionHandler) extractUpload(c *gin.Context) (*domain.Extraction, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		var mbErr *http.MaxBytesError
		if errors.As(err, &mbErr) {
			HandleError(c, err)
			return nil, false
		}
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "file is required")
		return nil, false
	}
	if h.maxImageBytes > 0 && fh.Size > h.maxImageBytes {
		HandleError(c, domain.ErrImageTooLarge)
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "could not read uploaded file")
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "could not read uploaded file")
		return nil, false
	}

	ext, err := h.extractionService.Extract(c.Request.Context(), &service.ExtractInput{
		Image:      data,
		SourceName: fh.Filename,
	})
	if err != nil {
		HandleError(c, err)
		return nil, false
	}
	return ext, true
}
