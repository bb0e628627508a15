package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"kyc_link_gateway/internal/messaging"
	"kyc_link_gateway/internal/metrics"

	"go.uber.org/zap"
)

type Verifier interface {
	Verify(timestamp, signature string) bool
}

type Publisher interface {
	PublishWebhookEvent(ctx context.Context, msg *messaging.WebhookEventMessage) error
}

// Acknowledgement всегда успешный: провайдер повторяет доставку на любой не-2xx ответ.
type Acknowledgement struct {
	Status int
	Body   string
}

var ack = Acknowledgement{Status: http.StatusOK, Body: "OK"}

type envelope struct {
	Timestamp     string `json:"timestamp"`
	Signature     string `json:"signature"`
	UserID        string `json:"user_id"`
	PartnerParams struct {
		UserID string `json:"user_id"`
	} `json:"PartnerParams"`
}

func (e envelope) correlationID() string {
	if e.PartnerParams.UserID != "" {
		return e.PartnerParams.UserID
	}
	return e.UserID
}

type Ingestor struct {
	verifier        Verifier
	publisher       Publisher
	verifySignature bool
	metrics         *metrics.Metrics
	logger          *zap.Logger
	now             func() time.Time
}

func NewIngestor(verifier Verifier, publisher Publisher, verifySignature bool, m *metrics.Metrics, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		verifier:        verifier,
		publisher:       publisher,
		verifySignature: verifySignature,
		metrics:         m,
		logger:          logger,
		now:             time.Now,
	}
}

// Ingest проверяет подпись вебхука и передает проверенные события дальше.
// Непроверенные и некорректные тела только логируются.
func (i *Ingestor) Ingest(ctx context.Context, body []byte) Acknowledgement {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		i.logger.Info("webhook received empty body")
		i.metrics.Webhook("empty")
		return ack
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		i.logger.Warn("webhook body is not a json object", zap.Error(err), zap.Int("size", len(body)))
		i.metrics.Webhook("malformed")
		return ack
	}

	correlationID := env.correlationID()
	logger := i.logger.With(zap.String("correlation_id", correlationID))

	verified := i.verifier.Verify(env.Timestamp, env.Signature)
	if !verified && i.verifySignature {
		logger.Warn("webhook signature verification failed",
			zap.Bool("has_timestamp", env.Timestamp != ""),
			zap.Bool("has_signature", env.Signature != ""))
		i.metrics.Webhook("rejected")
		return ack
	}

	msg := &messaging.WebhookEventMessage{
		CorrelationID: correlationID,
		Verified:      verified,
		ReceivedAt:    i.now().UTC(),
		Payload:       json.RawMessage(body),
	}
	if err := i.publisher.PublishWebhookEvent(ctx, msg); err != nil {
		logger.Error("failed to forward webhook event", zap.Error(err))
		i.metrics.Webhook("publish_failed")
		return ack
	}

	logger.Info("webhook event forwarded", zap.Bool("verified", verified))
	i.metrics.Webhook("forwarded")
	return ack
}
