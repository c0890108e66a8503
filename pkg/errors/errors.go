package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Stock error types. Callers match them with errors.Is.
var (
	ErrInvalidMovementType    = errors.New("invalid movement type")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrProductNotFound        = errors.New("product not found")
	ErrLotNotFound            = errors.New("lot not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInsufficientBatchStock = errors.New("insufficient batch stock")
	ErrNoBatchesAvailable     = errors.New("no batches available")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func TokenExpired() *AppError {
	return &AppError{
		Err:        ErrTokenExpired,
		Code:       "TOKEN_EXPIRED",
		Message:    "token has expired",
		StatusCode: http.StatusUnauthorized,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// Stock error constructors

func InvalidMovementType(movementType string) *AppError {
	return &AppError{
		Err:        ErrInvalidMovementType,
		Code:       "INVALID_MOVEMENT_TYPE",
		Message:    fmt.Sprintf("movement type %q is not allowed, use entrada or saida", movementType),
		StatusCode: http.StatusBadRequest,
	}
}

func InvalidQuantity(quantity int) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    fmt.Sprintf("quantity must be greater than zero, got %d", quantity),
		StatusCode: http.StatusBadRequest,
	}
}

func ProductNotFound(code string) *AppError {
	return &AppError{
		Err:        ErrProductNotFound,
		Code:       "PRODUCT_NOT_FOUND",
		Message:    fmt.Sprintf("no active product matches %q", code),
		StatusCode: http.StatusNotFound,
	}
}

func LotNotFound(lotNumber string) *AppError {
	return &AppError{
		Err:        ErrLotNotFound,
		Code:       "LOT_NOT_FOUND",
		Message:    fmt.Sprintf("lot %s not found or exhausted", lotNumber),
		StatusCode: http.StatusNotFound,
	}
}

func InsufficientStock(available, requested int) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    "insufficient stock for this movement",
		StatusCode: http.StatusUnprocessableEntity,
		Details: map[string]string{
			"available": fmt.Sprint(available),
			"requested": fmt.Sprint(requested),
		},
	}
}

// StockWouldGoNegative is raised when the database refuses a write that
// would leave a quantity below zero. The counts are not known there.
func StockWouldGoNegative() *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    "stock would become negative",
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func InsufficientBatchStock(lotNumber string, available, requested int) *AppError {
	return &AppError{
		Err:        ErrInsufficientBatchStock,
		Code:       "INSUFFICIENT_BATCH_STOCK",
		Message:    fmt.Sprintf("insufficient stock in lot %s", lotNumber),
		StatusCode: http.StatusUnprocessableEntity,
		Details: map[string]string{
			"lot_number": lotNumber,
			"available":  fmt.Sprint(available),
			"requested":  fmt.Sprint(requested),
		},
	}
}

func NoBatchesAvailable(productName string) *AppError {
	return &AppError{
		Err:        ErrNoBatchesAvailable,
		Code:       "NO_BATCHES_AVAILABLE",
		Message:    fmt.Sprintf("product %s has no batches with available stock", productName),
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
