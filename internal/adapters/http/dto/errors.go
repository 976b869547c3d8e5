// Package dto holds the JSON shapes of the quote API and the error envelope.
package dto

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/platform/logging"
)

// Error codes carried in ErrorDetail.Code.
const (
	ErrorCodeNotFound        = "NOT_FOUND"
	ErrorCodeNoQuotes        = "NO_QUOTES"
	ErrorCodeValidation      = "VALIDATION_ERROR"
	ErrorCodeInvalidFormat   = "INVALID_FORMAT"
	ErrorCodeUnavailable     = "SERVICE_UNAVAILABLE"
	ErrorCodeInternal        = "INTERNAL_ERROR"
	ErrorCodeTimeout         = "TIMEOUT"
	ErrorCodeBadRequest      = "BAD_REQUEST"
	ErrorCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
)

const internalMessage = "an internal error occurred"

var codeStatus = map[string]int{
	ErrorCodeNotFound:        http.StatusNotFound,
	ErrorCodeNoQuotes:        http.StatusNotFound,
	ErrorCodeValidation:      http.StatusBadRequest,
	ErrorCodeInvalidFormat:   http.StatusBadRequest,
	ErrorCodeBadRequest:      http.StatusBadRequest,
	ErrorCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrorCodeUnavailable:     http.StatusServiceUnavailable,
	ErrorCodeTimeout:         http.StatusGatewayTimeout,
}

// domainCodes is checked in order. EmptyPool also matches NotFound and
// InvalidFormat also matches Validation, so the narrow kinds come first.
var domainCodes = []struct {
	match func(error) bool
	code  string
}{
	{domain.IsEmptyPool, ErrorCodeNoQuotes},
	{domain.IsNotFound, ErrorCodeNotFound},
	{domain.IsInvalidFormat, ErrorCodeInvalidFormat},
	{domain.IsValidation, ErrorCodeValidation},
	{domain.IsUnavailable, ErrorCodeUnavailable},
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail describes a single failure.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// StatusFor returns the HTTP status for an error code. Unknown codes are 500.
func StatusFor(code string) int {
	if status, ok := codeStatus[code]; ok {
		return status
	}

	return http.StatusInternalServerError
}

// FromError classifies err into a status and envelope. Errors outside the
// domain taxonomy become a generic 500 so internals never reach the client.
func FromError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	for _, dc := range domainCodes {
		if !dc.match(err) {
			continue
		}

		resp := &ErrorResponse{Error: ErrorDetail{Code: dc.code, Message: err.Error()}}

		var ve *domain.ValidationError
		if dc.code == ErrorCodeValidation && errors.As(err, &ve) && ve.Field != "" {
			resp.Error.Details = map[string]string{ve.Field: ve.Message}
		}

		return StatusFor(dc.code), resp
	}

	return http.StatusInternalServerError, &ErrorResponse{Error: ErrorDetail{Code: ErrorCodeInternal, Message: internalMessage}}
}

// TraceID returns the OpenTelemetry trace ID of the request, or "".
func TraceID(c *gin.Context) string {
	sc := trace.SpanContextFromContext(c.Request.Context())
	if !sc.HasTraceID() {
		return ""
	}

	return sc.TraceID().String()
}

// HandleError writes the envelope for err. A 500 is logged with its cause.
func HandleError(c *gin.Context, err error) {
	status, resp := FromError(err)
	resp.TraceID = TraceID(c)

	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "internal error", "error", err, "trace_id", resp.TraceID)
	}

	c.JSON(status, resp)
}

// RespondWithErrorCode writes an envelope for a failure raised by the HTTP
// layer itself rather than the domain.
func RespondWithErrorCode(c *gin.Context, code, message string) {
	c.JSON(StatusFor(code), envelope(c, code, message, nil))
}

// RespondWithValidationErrors writes a 400 with one message per field.
func RespondWithValidationErrors(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, envelope(c, ErrorCodeValidation, "request validation failed", fields))
}

// AbortWithErrorCode is RespondWithErrorCode for middleware.
func AbortWithErrorCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(StatusFor(code), envelope(c, code, message, nil))
}

func envelope(c *gin.Context, code, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{
		Error:   ErrorDetail{Code: code, Message: message, Details: details},
		TraceID: TraceID(c),
	}
}
