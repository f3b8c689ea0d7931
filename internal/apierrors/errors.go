// Package apierrors provides the structured error type shared by the HTTP
// layer, grounded on common/utils/ErrorHandling.go's IAROSError/ErrorHandler
// pair, narrowed to the categories of the landed-cost API (NeedsInput is
// declared for it but no handler raises it).
package apierrors

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Category groups errors for logging level and HTTP status mapping.
type Category string

const (
	Validation    Category = "VALIDATION_ERROR"
	NotFound      Category = "NOT_FOUND"
	NeedsInput    Category = "NEEDS_INPUT"
	Database      Category = "DATABASE_ERROR"
	Upstream      Category = "UPSTREAM_ERROR" // rate-provider / remote fetch failure
	Internal      Category = "INTERNAL_ERROR"
	Unauthorized  Category = "UNAUTHORIZED"
)

var statusByCategory = map[Category]int{
	Validation:   http.StatusBadRequest,
	NotFound:     http.StatusNotFound,
	NeedsInput:   http.StatusUnprocessableEntity,
	Database:     http.StatusInternalServerError,
	Upstream:     http.StatusBadGateway,
	Internal:     http.StatusInternalServerError,
	Unauthorized: http.StatusUnauthorized,
}

// AppError is the uniform error shape returned by the HTTP layer.
type AppError struct {
	ID        string    `json:"error_id"`
	Category  Category  `json:"error_type"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	HTTPStatus int      `json:"-"`
	Cause     error     `json:"-"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Operation, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// New builds an AppError for the given category, logging it at a level
// appropriate to the category (mirrors ErrorHandler.logError's severity
// switch).
func New(log *zap.Logger, category Category, operation, message string, cause error) *AppError {
	err := &AppError{
		ID:         uuid.New().String(),
		Category:   category,
		Operation:  operation,
		Message:    message,
		Timestamp:  time.Now(),
		HTTPStatus: statusByCategory[category],
		Cause:      cause,
	}
	if log != nil {
		fields := []zap.Field{
			zap.String("error_id", err.ID),
			zap.String("error_type", string(category)),
			zap.String("operation", operation),
		}
		if cause != nil {
			fields = append(fields, zap.Error(cause))
		}
		switch category {
		case Validation, NotFound, NeedsInput, Unauthorized:
			log.Warn(message, fields...)
		default:
			log.Error(message, fields...)
		}
	}
	return err
}

// Body is the JSON response shape for an AppError.
func (e *AppError) Body() map[string]any {
	return map[string]any{
		"error_id":   e.ID,
		"error_type": e.Category,
		"operation":  e.Operation,
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}
}
