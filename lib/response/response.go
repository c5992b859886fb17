package response

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getevo/evo/v2/lib/outcome"
	"github.com/getevo/evo/v2/lib/text"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Input validation errors
	ErrorCodeInvalidInput    ErrorCode = "invalid_input"
	ErrorCodeMissingRequired ErrorCode = "missing_required"

	// Resource errors
	ErrorCodeNotFound             ErrorCode = "not_found"
	ErrorCodeConversationNotFound ErrorCode = "conversation_not_found"

	// Pipeline rejection errors
	ErrorCodeChannelInactive     ErrorCode = "channel_inactive"
	ErrorCodeCreditExhausted     ErrorCode = "credit_exhausted"
	ErrorCodeProviderUnavailable ErrorCode = "provider_unavailable"
	ErrorCodeRateLimited         ErrorCode = "rate_limited"

	// Internal errors
	ErrorCodeInternalError ErrorCode = "internal_error"
	ErrorCodeDatabaseError ErrorCode = "database_error"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode `json:"error"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Response returns an outcome.Response for the error
func (e AppError) Response() outcome.Response {
	return outcome.Response{
		StatusCode: e.StatusCode,
		Data: text.ToJSON(map[string]interface{}{
			"error":   string(e.Code),
			"message": e.Message,
		}),
	}
}

// NewError creates a new AppError
func NewError(code ErrorCode, message string, statusCode int) AppError {
	return AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Predefined common errors
var (
	ErrInvalidInput = AppError{
		Code:       ErrorCodeInvalidInput,
		Message:    "Invalid request data",
		StatusCode: http.StatusBadRequest,
	}

	ErrMissingRequired = AppError{
		Code:       ErrorCodeMissingRequired,
		Message:    "Missing required fields",
		StatusCode: http.StatusBadRequest,
	}

	ErrNotFound = AppError{
		Code:       ErrorCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrConversationNotFound = AppError{
		Code:       ErrorCodeConversationNotFound,
		Message:    "Conversation not found",
		StatusCode: http.StatusNotFound,
	}

	ErrChannelInactive = AppError{
		Code:       ErrorCodeChannelInactive,
		Message:    "Channel not found or inactive",
		StatusCode: http.StatusForbidden,
	}

	ErrCreditExhausted = AppError{
		Code:       ErrorCodeCreditExhausted,
		Message:    "Workspace has no message credits left",
		StatusCode: http.StatusPaymentRequired,
	}

	ErrProviderUnavailable = AppError{
		Code:       ErrorCodeProviderUnavailable,
		Message:    "No AI provider is available for this agent",
		StatusCode: http.StatusBadGateway,
	}

	ErrInternalError = AppError{
		Code:       ErrorCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrDatabaseError = AppError{
		Code:       ErrorCodeDatabaseError,
		Message:    "Database operation failed",
		StatusCode: http.StatusInternalServerError,
	}
)

// Helper function to create outcome.Response from AppError
func Error(err AppError) outcome.Response {
	return err.Response()
}

// APIResponse represents a standardized API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (r APIResponse) ToJSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Meta contains metadata for API responses
type Meta struct {
	Page       int   `json:"page,omitempty"`
	Limit      int   `json:"limit,omitempty"`
	Total      int64 `json:"total,omitempty"`
	TotalPages int   `json:"total_pages,omitempty"`
	Count      int   `json:"count,omitempty"`
}

// OK creates a standardized success response
func OK(data interface{}) outcome.Response {
	return outcome.Response{
		ContentType: "application/json",
		StatusCode:  http.StatusOK,
		Data: APIResponse{
			Success: true,
			Data:    data,
		}.ToJSON(),
	}
}

// OKWithMeta creates a success response with metadata
func OKWithMeta(data interface{}, meta *Meta) outcome.Response {
	return outcome.Response{
		ContentType: "application/json",
		StatusCode:  http.StatusOK,
		Data: APIResponse{
			Success: true,
			Data:    data,
			Meta:    meta,
		}.ToJSON(),
	}
}

// Created creates a 201 Created response
func Created(data interface{}) outcome.Response {
	return outcome.Response{
		ContentType: "application/json",
		StatusCode:  http.StatusCreated,
		Data: APIResponse{
			Success: true,
			Data:    data,
		}.ToJSON(),
	}
}

// Paginated creates a paginated response
func Paginated(data interface{}, page, limit int, total int64) outcome.Response {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	meta := &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}

	return OKWithMeta(data, meta)
}

// List creates a response for lists/collections with count
func List(data interface{}, count int) outcome.Response {
	return OKWithMeta(data, &Meta{Count: count})
}

// Message creates a response with only a success message
func Message(message string) outcome.Response {
	return outcome.Response{
		ContentType: "application/json",
		StatusCode:  http.StatusOK,
		Data: APIResponse{
			Success: true,
			Message: message,
		}.ToJSON(),
	}
}

// BadRequest creates a 400 Bad Request response
func BadRequest(message string) outcome.Response {
	return Error(NewError(ErrorCodeInvalidInput, message, http.StatusBadRequest))
}

// NotFound creates a 404 Not Found response
func NotFound(message string) outcome.Response {
	return Error(NewError(ErrorCodeNotFound, message, http.StatusNotFound))
}

// InternalError creates a 500 Internal Server Error response
func InternalError(message string) outcome.Response {
	return Error(NewError(ErrorCodeInternalError, message, http.StatusInternalServerError))
}
