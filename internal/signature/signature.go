package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"kyc_link_gateway/internal/apperrors"
)

// RequestType дописывается в конец подписываемого сообщения.
const RequestType = "sid_request"

// TimestampLayout повторяет ISO-8601 с миллисекундами, которого ждет провайдер.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

type Engine struct {
	partnerID string
	apiKey    []byte
}

func NewEngine(partnerID, apiKey string) (*Engine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &apperrors.ConfigurationError{Field: "SMILE_API_KEY"}
	}
	if strings.TrimSpace(partnerID) == "" {
		return nil, &apperrors.ConfigurationError{Field: "SMILE_PARTNER_ID"}
	}

	return &Engine{
		partnerID: partnerID,
		apiKey:    []byte(apiKey),
	}, nil
}

func (e *Engine) PartnerID() string {
	return e.partnerID
}

// Sign возвращает base64(HMAC-SHA256(apiKey, timestamp + partnerID + "sid_request")).
func (e *Engine) Sign(timestamp string) string {
	mac := hmac.New(sha256.New, e.apiKey)
	mac.Write([]byte(timestamp))
	mac.Write([]byte(e.partnerID))
	mac.Write([]byte(RequestType))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify сравнивает подпись с ожидаемой за постоянное время.
func (e *Engine) Verify(timestamp, signature string) bool {
	if timestamp == "" || signature == "" {
		return false
	}

	expected := e.Sign(timestamp)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
