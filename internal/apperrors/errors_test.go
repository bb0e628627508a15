package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{
			name:     "nil_error",
			err:      nil,
			expected: "",
		},
		{
			name:     "configuration",
			err:      &ConfigurationError{Field: "SMILE_API_KEY"},
			expected: KindConfiguration,
		},
		{
			name:     "wrapped_validation",
			err:      fmt.Errorf("failed to build link request: %w", &ValidationError{Field: "id_type", Reason: "must not be empty"}),
			expected: KindValidation,
		},
		{
			name:     "provider",
			err:      &ProviderError{StatusCode: 422, Body: []byte(`{"error":"invalid id_type"}`)},
			expected: KindProvider,
		},
		{
			name:     "transport",
			err:      &TransportError{Err: errors.New("connection refused")},
			expected: KindTransport,
		},
		{
			name:     "timeout",
			err:      fmt.Errorf("create link: %w", &TransportError{Timeout: true, Err: context.DeadlineExceeded}),
			expected: KindTimeout,
		},
		{
			name:     "unknown",
			err:      errors.New("boom"),
			expected: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if kind := Kind(tt.err); kind != tt.expected {
				t.Errorf("expected kind '%s', but got '%s'", tt.expected, kind)
			}
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &TransportError{Timeout: true, Err: context.DeadlineExceeded}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected transport error to unwrap to context.DeadlineExceeded")
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{StatusCode: 500}
	if err.Error() != "provider responded with status 500" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	err = &ProviderError{StatusCode: 422, Body: []byte(`{"error":"invalid id_type"}`)}
	if err.Error() != `provider responded with status 422: {"error":"invalid id_type"}` {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
