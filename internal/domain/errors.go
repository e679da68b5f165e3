package domain

import (
	"errors"
	"fmt"
)

var (
	ErrServiceFailure          = errors.New("extraction service call failed")
	ErrParseFailure            = errors.New("could not parse JSON from model output")
	ErrEmptyImage              = errors.New("image is empty")
	ErrUnsupportedImage        = errors.New("unsupported or undecodable image")
	ErrImageTooLarge           = errors.New("image exceeds maximum allowed size")
	ErrImageNotFound           = errors.New("image source not found")
	ErrReportUnavailable       = errors.New("no report available for this extraction")
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
	ErrUnknownProvider         = errors.New("unknown extractor provider")
	ErrExtractorNotConfigured  = errors.New("extractor is not configured")
	ErrSampleImageNotSet       = errors.New("no sample image configured")
)

// ServiceError reports a failed call to the vision completion service.
// It is never retried; callers abort the current extraction.
type ServiceError struct {
	Provider   string
	StatusCode int // zero when the call never produced an HTTP response
	Err        error
}

// NewServiceError wraps err as a ServiceError for provider.
func NewServiceError(provider string, statusCode int, err error) *ServiceError {
	return &ServiceError{Provider: provider, StatusCode: statusCode, Err: err}
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s service error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s service error: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrServiceFailure) match any ServiceError.
func (e *ServiceError) Is(target error) bool {
	return target == ErrServiceFailure
}
