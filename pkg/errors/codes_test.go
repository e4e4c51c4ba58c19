package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeRegistry_Completeness(t *testing.T) {
	allCodes := []ErrorCode{
		CodeValidation,
		CodeNotFound,
		CodeUnsupportedFormat,
		CodeSourceUnavailable,
		CodeBatchTooLarge,
		CodeTimeout,
		CodeCancelled,
		CodeInternal,
	}

	for _, code := range allCodes {
		t.Run(string(code), func(t *testing.T) {
			info, ok := ErrorCodeRegistry[code]
			assert.True(t, ok, "ErrorCode %s should be in registry", code)
			assert.Equal(t, code, info.Code, "Registry entry should have matching code")
			assert.NotZero(t, info.HTTPStatus, "HTTPStatus should be set")
			assert.NotEmpty(t, info.Description, "Description should not be empty")
			assert.NotEmpty(t, info.SuggestedAction, "SuggestedAction should not be empty")
		})
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"validation", fmt.Errorf("config: %w", ErrValidation), CodeValidation},
		{"not found", fmt.Errorf("file: %w", ErrNotFound), CodeNotFound},
		{"unsupported", fmt.Errorf("%w: .csv", ErrUnsupportedFormat), CodeUnsupportedFormat},
		{"source unavailable", fmt.Errorf("%w: pool is nil", ErrSourceUnavailable), CodeSourceUnavailable},
		{"batch too large", fmt.Errorf("%w: 20 > 10", ErrBatchTooLarge), CodeBatchTooLarge},
		{"deadline", fmt.Errorf("batch: %w", context.DeadlineExceeded), CodeTimeout},
		{"cancelled", context.Canceled, CodeCancelled},
		{"table error", &TableError{Source: "file:x", Table: "us", Cause: ErrNotFound}, CodeNotFound},
		{"unknown", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusRequestEntityTooLarge, HTTPStatus(CodeBatchTooLarge))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeSourceUnavailable))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus("unknown_code"))
}

func TestIsRetryable_ErrorCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected bool
	}{
		{CodeSourceUnavailable, true},
		{CodeTimeout, true},
		{CodeValidation, false},
		{CodeNotFound, false},
		{CodeBatchTooLarge, false},
		{CodeCancelled, false},
		{CodeInternal, false},
		{"unknown_code", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.code),
				"IsRetryable(%s) should be %v", tt.code, tt.expected)
		})
	}
}

func TestGetSuggestedAction(t *testing.T) {
	for code := range ErrorCodeRegistry {
		action := GetSuggestedAction(code)
		assert.NotEmpty(t, action, "Code %s should have a suggested action", code)
		assert.True(t, len(action) > 15, "Action for %s should be meaningful (>15 chars): %s", code, action)
		assert.NotContains(t, action, "maybe", "Action for %s should be concrete, not vague", code)
	}

	action := GetSuggestedAction("unknown_code")
	assert.Contains(t, action, "logs", "Unknown codes should suggest checking logs")
}

func TestGetDescription(t *testing.T) {
	for code := range ErrorCodeRegistry {
		assert.NotEmpty(t, GetDescription(code), "Code %s should have a description", code)
	}
	assert.Equal(t, "Unknown error", GetDescription("unknown_code"))
}
