package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingInput         = errors.New("missing file or document type")
	ErrUnsupportedMediaType = errors.New("unsupported image type")
	ErrInvalidDocumentType  = errors.New("invalid document type")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrResponseParse        = errors.New("model response is not valid JSON")
	ErrExternalService      = errors.New("document understanding service failed")

	// ErrServiceUnavailable is an external service failure the caller may
	// retry later: a rate limit, exhausted quota or an open circuit breaker.
	ErrServiceUnavailable = fmt.Errorf("%w: temporarily unavailable", ErrExternalService)
)

// ErrorKind is the machine-readable classification of a failed extraction.
type ErrorKind string

const (
	KindMissingInput         ErrorKind = "MISSING_INPUT"
	KindUnsupportedMediaType ErrorKind = "UNSUPPORTED_MEDIA_TYPE"
	KindInvalidDocumentType  ErrorKind = "INVALID_DOCUMENT_TYPE"
	KindFileTooLarge         ErrorKind = "FILE_TOO_LARGE"
	KindResponseParse        ErrorKind = "RESPONSE_PARSE_ERROR"
	KindExternalService      ErrorKind = "EXTERNAL_SERVICE_ERROR"
	KindInternal             ErrorKind = "INTERNAL_ERROR"
)

// KindOf classifies err into an ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrMissingInput):
		return KindMissingInput
	case errors.Is(err, ErrUnsupportedMediaType):
		return KindUnsupportedMediaType
	case errors.Is(err, ErrInvalidDocumentType):
		return KindInvalidDocumentType
	case errors.Is(err, ErrFileTooLarge):
		return KindFileTooLarge
	case errors.Is(err, ErrResponseParse):
		return KindResponseParse
	case errors.Is(err, ErrExternalService):
		return KindExternalService
	default:
		return KindInternal
	}
}
