package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-sync/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorResponse_JSON(t *testing.T) {
	resp := &ErrorResponse{
		Error:   ErrorDetail{Code: ErrorCodeValidation, Message: "bad", Details: map[string]string{"text": "must not be blank"}},
		TraceID: "abc123",
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"error":{"code":"VALIDATION_ERROR","message":"bad","details":{"text":"must not be blank"}},"traceId":"abc123"}`,
		string(data))

	data, err = json.Marshal(&ErrorResponse{Error: ErrorDetail{Code: ErrorCodeNoQuotes, Message: "none"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":"NO_QUOTES","message":"none"}}`, string(data))
}

func TestStatusFor(t *testing.T) {
	for code, want := range map[string]int{
		ErrorCodeNotFound:        http.StatusNotFound,
		ErrorCodeNoQuotes:        http.StatusNotFound,
		ErrorCodeValidation:      http.StatusBadRequest,
		ErrorCodeInvalidFormat:   http.StatusBadRequest,
		ErrorCodeBadRequest:      http.StatusBadRequest,
		ErrorCodePayloadTooLarge: http.StatusRequestEntityTooLarge,
		ErrorCodeUnavailable:     http.StatusServiceUnavailable,
		ErrorCodeTimeout:         http.StatusGatewayTimeout,
		ErrorCodeInternal:        http.StatusInternalServerError,
		"SOMETHING_ELSE":         http.StatusInternalServerError,
	} {
		assert.Equal(t, want, StatusFor(code), code)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails map[string]string
		wantMessage string
	}{
		{
			name:       "empty pool maps to NO_QUOTES",
			err:        domain.NewEmptyPoolError("Life"),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeNoQuotes,
		},
		{
			name:       "wrapped empty pool",
			err:        fmt.Errorf("show: %w", domain.NewEmptyPoolError(domain.CategoryAll)),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeNoQuotes,
		},
		{
			name:       "not found",
			err:        domain.NewNotFoundError("quote", "x"),
			wantStatus: http.StatusNotFound,
			wantCode:   ErrorCodeNotFound,
		},
		{
			name:       "format error before validation",
			err:        domain.NewFormatError("import", "top level must be an array", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   ErrorCodeInvalidFormat,
		},
		{
			name:        "validation carries the field",
			err:         domain.NewValidationError("category", "must not be blank"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ErrorCodeValidation,
			wantDetails: map[string]string{"category": "must not be blank"},
		},
		{
			name:       "unavailable",
			err:        domain.NewUnavailableError("jsonplaceholder", "connection refused"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   ErrorCodeUnavailable,
		},
		{
			name:        "unknown error is hidden",
			err:         errors.New("disk on fire"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    ErrorCodeInternal,
			wantMessage: "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := FromError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantDetails, resp.Error.Details)

			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
			}
		})
	}
}

func TestFromError_Nil(t *testing.T) {
	status, resp := FromError(nil)

	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, resp)
}

func TestTraceID_NoSpan(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Empty(t, TraceID(c))
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/quotes/random", nil)

	HandleError(c, domain.NewEmptyPoolError("Life"))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrorCodeNoQuotes, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "Life")
}

func TestRespondWithErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/quotes/import", nil)

	RespondWithErrorCode(c, ErrorCodePayloadTooLarge, "document too large")

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), ErrorCodePayloadTooLarge)
}

func TestRespondWithValidationErrors(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/quotes", nil)

	RespondWithValidationErrors(c, map[string]string{"text": "must not be blank"})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "must not be blank", resp.Error.Details["text"])
}

func TestAbortWithErrorCode(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	AbortWithErrorCode(c, ErrorCodeUnavailable, "remote down")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
