package redirect

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// CorrelationParam - параметр адреса возврата, в котором клиент передает идентификатор онбординга.
const CorrelationParam = "onboarding"

const generatedIDPrefix = "user_"

// Sanitizer убирает query string из адреса возврата: провайдер сам добавляет свои
// параметры, и второй "?" ломает редирект. Идентификатор уходит провайдеру как user_id.
type Sanitizer struct {
	defaultURL string
	newID      func() string
}

func NewSanitizer(defaultURL string) *Sanitizer {
	return &Sanitizer{
		defaultURL: defaultURL,
		newID:      NewCorrelationID,
	}
}

func NewCorrelationID() string {
	return generatedIDPrefix + uuid.New().String()
}

// Sanitize никогда не возвращает ошибку: при любом сбое разбора идентификатор генерируется заново.
func (s *Sanitizer) Sanitize(rawURL string) (cleanURL string, correlationID string) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		target = s.defaultURL
	}

	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return stripOpaque(target), s.newID()
	}

	correlationID = parsed.Query().Get(CorrelationParam)
	if correlationID == "" {
		correlationID = s.newID()
	}

	parsed.RawQuery = ""
	parsed.ForceQuery = false
	parsed.Fragment = ""
	parsed.RawFragment = ""

	return strings.TrimSuffix(parsed.String(), "/"), correlationID
}

func stripOpaque(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSuffix(raw, "/")
}
