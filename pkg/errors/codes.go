package errors

import (
	"context"
	"errors"
	"net/http"
)

// ErrBatchTooLarge indicates a submitted batch exceeds the configured limit.
var ErrBatchTooLarge = errors.New("batch too large")

// ErrorCode is a stable, machine-readable error classification used in API
// responses and CLI hints.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation_error"
	CodeNotFound          ErrorCode = "not_found"
	CodeUnsupportedFormat ErrorCode = "unsupported_format"
	CodeSourceUnavailable ErrorCode = "source_unavailable"
	CodeBatchTooLarge     ErrorCode = "batch_too_large"
	CodeTimeout           ErrorCode = "timeout"
	CodeCancelled         ErrorCode = "cancelled"
	CodeInternal          ErrorCode = "internal_error"
)

// ErrorCodeInfo contains metadata about an error code.
type ErrorCodeInfo struct {
	Code            ErrorCode
	HTTPStatus      int
	Retryable       bool
	Description     string
	SuggestedAction string
}

// ErrorCodeRegistry maps error codes to their metadata.
var ErrorCodeRegistry = map[ErrorCode]ErrorCodeInfo{
	CodeValidation: {
		Code:            CodeValidation,
		HTTPStatus:      http.StatusBadRequest,
		Description:     "Invalid input or configuration",
		SuggestedAction: "Check the configuration with: gendercode config show",
	},
	CodeNotFound: {
		Code:            CodeNotFound,
		HTTPStatus:      http.StatusNotFound,
		Description:     "Dictionary file or table does not exist",
		SuggestedAction: "Import a dictionary first: gendercode dict import <file>",
	},
	CodeUnsupportedFormat: {
		Code:            CodeUnsupportedFormat,
		HTTPStatus:      http.StatusUnsupportedMediaType,
		Description:     "File or source kind cannot be read",
		SuggestedAction: "Use a .yaml, .yml, .toml or .json dictionary file",
	},
	CodeSourceUnavailable: {
		Code:            CodeSourceUnavailable,
		HTTPStatus:      http.StatusServiceUnavailable,
		Retryable:       true,
		Description:     "Dictionary backend could not be reached",
		SuggestedAction: "Check connectivity to the configured source: gendercode dict stats",
	},
	CodeBatchTooLarge: {
		Code:            CodeBatchTooLarge,
		HTTPStatus:      http.StatusRequestEntityTooLarge,
		Description:     "Batch exceeds the maximum accepted size",
		SuggestedAction: "Split the input into smaller batches and resubmit",
	},
	CodeTimeout: {
		Code:            CodeTimeout,
		HTTPStatus:      http.StatusGatewayTimeout,
		Retryable:       true,
		Description:     "Operation exceeded its deadline",
		SuggestedAction: "Retry with a smaller batch or raise the request timeout",
	},
	CodeCancelled: {
		Code:            CodeCancelled,
		HTTPStatus:      499,
		Description:     "Operation cancelled by the caller",
		SuggestedAction: "Rerun the command; partial results were discarded",
	},
	CodeInternal: {
		Code:            CodeInternal,
		HTTPStatus:      http.StatusInternalServerError,
		Description:     "Unclassified error",
		SuggestedAction: "Rerun with --debug and check the logs for details",
	},
}

// CodeOf classifies err. A nil error has no code.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, ErrBatchTooLarge):
		return CodeBatchTooLarge
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, ErrSourceUnavailable):
		return CodeSourceUnavailable
	default:
		return CodeInternal
	}
}

// HTTPStatus returns the response status for the given error code.
func HTTPStatus(code ErrorCode) int {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsRetryable returns true if the given error code represents a transient, retryable error.
func IsRetryable(code ErrorCode) bool {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Retryable
	}
	return false
}

// GetSuggestedAction returns the suggested action for the given error code.
func GetSuggestedAction(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.SuggestedAction
	}
	return "Check logs for more details: rerun with --debug"
}

// GetDescription returns the human-readable description for the given error code.
func GetDescription(code ErrorCode) string {
	if info, ok := ErrorCodeRegistry[code]; ok {
		return info.Description
	}
	return "Unknown error"
}
