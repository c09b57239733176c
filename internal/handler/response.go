package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docextract/internal/domain"
	"docextract/internal/middleware"
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

// MapDomainError translates domain errors to HTTP status codes, error codes
// and the message shown to the user.
func MapDomainError(err error) (status int, code, msg string) {
	kind := string(domain.KindOf(err))
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		return http.StatusBadRequest, kind, "Missing file or document type"
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, kind, "Invalid file type. Only PNG, JPG, and JPEG are allowed."
	case errors.Is(err, domain.ErrInvalidDocumentType):
		return http.StatusBadRequest, kind, "Invalid document type. Choose either 'invoice' or 'po'."
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, kind, "File is too large."
	case errors.Is(err, domain.ErrResponseParse):
		return http.StatusBadGateway, kind, "Failed to parse extracted data."
	case errors.Is(err, domain.ErrExternalService):
		status = http.StatusBadGateway
		if errors.Is(err, domain.ErrServiceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		return status, kind, "Failed to process the image. Please try again."
	default:
		return http.StatusInternalServerError, kind, "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, logger *zap.Logger, err error) {
	status, code, msg := reportError(c, logger, err)
	RespondError(c, status, code, msg)
}

func reportError(c *gin.Context, logger *zap.Logger, err error) (status int, code, msg string) {
	status, code, msg = MapDomainError(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("code", code),
		zap.Error(err),
	}
	if status >= 500 {
		logger.Error("request failed", fields...)
	} else {
		logger.Info("request rejected", fields...)
	}
	return status, code, msg
}
