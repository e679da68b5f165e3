package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"calibra/internal/domain"
	"calibra/internal/extractor"
	"calibra/internal/imagesource"
	"calibra/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// RespondParseFailure sends 422 with the extraction attached so the caller
// can still show the raw model output.
func RespondParseFailure(c *gin.Context, ext *domain.Extraction) {
	c.JSON(http.StatusUnprocessableEntity, APIResponse{
		Success: false,
		Data:    ext,
		Error:   &APIError{Code: "PARSE_FAILURE", Message: "could not interpret model output as JSON"},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code, msg string) {
	var rlErr *extractor.RateLimitError
	var svcErr *domain.ServiceError
	var mbErr *http.MaxBytesError

	switch {
	case errors.As(err, &rlErr):
		return http.StatusTooManyRequests, "RATE_LIMITED",
			fmt.Sprintf("%s rate limited the request; try again in %s", rlErr.Provider, rlErr.RetryAfter)
	case errors.As(err, &svcErr):
		return http.StatusBadGateway, "EXTRACTION_SERVICE_ERROR", svcErr.Error()
	case errors.Is(err, domain.ErrParseFailure):
		return http.StatusUnprocessableEntity, "PARSE_FAILURE", "could not interpret model output as JSON"
	case errors.Is(err, domain.ErrEmptyImage):
		return http.StatusBadRequest, "EMPTY_IMAGE", "uploaded image is empty"
	case errors.Is(err, domain.ErrUnsupportedImage):
		return http.StatusBadRequest, "UNSUPPORTED_IMAGE", "unsupported image; allowed: png, jpg, gif, bmp, tiff, webp"
	case errors.Is(err, domain.ErrImageTooLarge), errors.As(err, &mbErr):
		return http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "image exceeds maximum allowed size"
	case errors.Is(err, domain.ErrImageNotFound):
		return http.StatusNotFound, "IMAGE_NOT_FOUND", "image not found"
	case errors.Is(err, domain.ErrSampleImageNotSet):
		return http.StatusNotFound, "SAMPLE_NOT_CONFIGURED", "no sample image is configured"
	case errors.Is(err, domain.ErrReportUnavailable):
		return http.StatusUnprocessableEntity, "REPORT_UNAVAILABLE", "no report available for this extraction"
	case errors.Is(err, domain.ErrUnsupportedExportFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "unsupported report format; allowed: txt, csv, xlsx"
	case errors.Is(err, domain.ErrExtractorNotConfigured):
		return http.StatusServiceUnavailable, "EXTRACTOR_NOT_CONFIGURED", "no vision extractor is configured"
	case errors.Is(err, imagesource.ErrStorageNotConfigured):
		return http.StatusServiceUnavailable, "STORAGE_NOT_CONFIGURED", "object storage is not configured"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)

	var rlErr *extractor.RateLimitError
	if errors.As(err, &rlErr) {
		c.Header("Retry-After", strconv.Itoa(int(rlErr.RetryAfter.Seconds())))
	}
	if status >= 500 {
		log.Printf("[%s] %s: %v", middleware.GetRequestID(c), code, err)
	}
	RespondError(c, status, code, msg)
}
