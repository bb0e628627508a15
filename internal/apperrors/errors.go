package apperrors

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindValidation    ErrorKind = "validation"
	KindProvider      ErrorKind = "provider"
	KindTransport     ErrorKind = "transport"
	KindTimeout       ErrorKind = "timeout"
	KindInternal      ErrorKind = "internal"
)

// ConfigurationError означает отсутствие обязательных настроек. Фатальна при старте.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}

// ValidationError описывает некорректный ввод вызывающей стороны.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError возвращается, когда провайдер ответил не-2xx или прислал некорректный ответ.
// Body хранит тело ответа провайдера без изменений.
type ProviderError struct {
	StatusCode int
	Body       []byte
}

func (e *ProviderError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("provider responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider responded with status %d: %s", e.StatusCode, string(e.Body))
}

// TransportError означает, что до провайдера не удалось достучаться.
type TransportError struct {
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("provider request timed out: %v", e.Err)
	}
	return fmt.Sprintf("provider request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Kind классифицирует ошибку для логов и метрик.
func Kind(err error) ErrorKind {
	var (
		cfgErr       *ConfigurationError
		validErr     *ValidationError
		providerErr  *ProviderError
		transportErr *TransportError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &validErr):
		return KindValidation
	case errors.As(err, &providerErr):
		return KindProvider
	case errors.As(err, &transportErr):
		if transportErr.Timeout {
			return KindTimeout
		}
		return KindTransport
	default:
		return KindInternal
	}
}
