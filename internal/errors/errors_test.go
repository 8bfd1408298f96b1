package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmanError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")
	amanErr := New(KindNotFound, "file not found: test.txt", originalErr)

	require.NotNil(t, amanErr)
	assert.Equal(t, originalErr, errors.Unwrap(amanErr))
	assert.True(t, errors.Is(amanErr, originalErr))
}

func TestAmanError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		message  string
		expected string
	}{
		{"config", KindConfigInvalid, "chunkOverlap must be < chunkSize", "[config_invalid] chunkOverlap must be < chunkSize"},
		{"not found", KindNotFound, "test.go not found", "[not_found] test.go not found"},
		{"external", KindExternalUnavailable, "request timed out", "[external_unavailable] request timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.kind, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestAmanError_Is_MatchesByKind(t *testing.T) {
	err1 := New(KindNotFound, "file A not found", nil)
	err2 := New(KindNotFound, "file B not found", nil)
	assert.True(t, errors.Is(err1, err2))
}

func TestAmanError_Is_DoesNotMatchDifferentKinds(t *testing.T) {
	err1 := New(KindNotFound, "file not found", nil)
	err2 := New(KindConfigInvalid, "config not found", nil)
	assert.False(t, errors.Is(err1, err2))
}

func TestAmanError_WithDetails_AddsContext(t *testing.T) {
	err := New(KindNotFound, "file not found", nil)
	err = err.WithDetail("path", "/foo/bar.go")
	err = err.WithDetail("size", "1024")

	assert.Equal(t, "/foo/bar.go", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestAmanError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(KindExternalUnavailable, "connection timed out", nil)
	err = err.WithSuggestion("Check your network connection")
	assert.Equal(t, "Check your network connection", err.Suggestion)
}

func TestAmanError_SeverityFromKind(t *testing.T) {
	tests := []struct {
		kind         Kind
		wantSeverity Severity
	}{
		{KindConfigInvalid, SeverityFatal},
		{KindParseFailed, SeverityWarning},
		{KindBudgetExceeded, SeverityWarning},
		{KindNotFound, SeverityError},
		{KindExternalUnavailable, SeverityError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestAmanError_RetryableFromKind(t *testing.T) {
	tests := []struct {
		kind          Kind
		wantRetryable bool
	}{
		{KindExternalUnavailable, true},
		{KindRateLimited, true},
		{KindNotFound, false},
		{KindConfigInvalid, false},
		{KindDimensionMismatch, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesAmanErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")
	amanErr := Wrap(KindExternalUnavailable, originalErr)

	require.NotNil(t, amanErr)
	assert.Equal(t, KindExternalUnavailable, amanErr.Kind)
	assert.Equal(t, "something went wrong", amanErr.Message)
	assert.Equal(t, originalErr, amanErr.Cause)
}

func TestWrap_NilErrorReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(KindExternalUnavailable, nil))
}

func TestConfigInvalid_CreatesFatalError(t *testing.T) {
	err := ConfigInvalid("invalid yaml syntax", nil)
	assert.Equal(t, KindConfigInvalid, err.Kind)
	assert.Equal(t, SeverityFatal, err.Severity)
}

func TestExternalUnavailable_CreatesRetryableError(t *testing.T) {
	err := ExternalUnavailable("connection refused", nil)
	assert.Equal(t, KindExternalUnavailable, err.Kind)
	assert.True(t, err.Retryable)
}

func TestRateLimited_CreatesRetryableError(t *testing.T) {
	err := RateLimited("429 too many requests", nil)
	assert.True(t, err.Retryable)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"retryable AmanError", New(KindExternalUnavailable, "timeout", nil), true},
		{"non-retryable AmanError", New(KindNotFound, "not found", nil), false},
		{"wrapped retryable error", Wrap(KindRateLimited, errors.New("wrapped")), true},
		{"standard error", errors.New("standard error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"fatal error", New(KindConfigInvalid, "bad config", nil), true},
		{"non-fatal error", New(KindNotFound, "not found", nil), false},
		{"standard error", errors.New("standard error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestGetKind_ExtractsKind(t *testing.T) {
	assert.Equal(t, KindNotFound, GetKind(New(KindNotFound, "x", nil)))
	assert.Equal(t, Kind(""), GetKind(errors.New("plain")))
}
