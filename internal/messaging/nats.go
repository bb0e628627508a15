package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectLinkIssued      = "kyc.link.issued"
	SubjectWebhookReceived = "kyc.webhook.received"
)

// NATSClient передает события внешнему сервису, который сохраняет результаты верификации.
type NATSClient interface {
	PublishLinkIssued(ctx context.Context, msg *LinkIssuedMessage) error
	PublishWebhookEvent(ctx context.Context, msg *WebhookEventMessage) error
	SubscribeToWebhookEvents(ctx context.Context, handler func(*WebhookEventMessage)) error
	Close()
}

type natsConnection interface {
	Publish(subj string, data []byte) error
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

type natsClient struct {
	conn   natsConnection
	logger *zap.Logger
}

func NewNATSClient(url string, logger *zap.Logger) (NATSClient, error) {
	conn, err := nats.Connect(url, nats.Name("kyc-link-gateway"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("connected to NATS", zap.String("url", url))
	return &natsClient{
		conn:   conn,
		logger: logger,
	}, nil
}

type LinkIssuedMessage struct {
	CorrelationID string    `json:"correlation_id"`
	RefID         string    `json:"ref_id,omitempty"`
	LinkURL       string    `json:"link_url,omitempty"`
	ReturnURL     string    `json:"return_url,omitempty"`
	SingleUse     bool      `json:"single_use"`
	IssuedAt      time.Time `json:"issued_at"`
}

type WebhookEventMessage struct {
	CorrelationID string          `json:"correlation_id,omitempty"`
	Verified      bool            `json:"verified"`
	ReceivedAt    time.Time       `json:"received_at"`
	Payload       json.RawMessage `json:"payload"`
}

func (c *natsClient) PublishLinkIssued(ctx context.Context, msg *LinkIssuedMessage) error {
	return c.publish(SubjectLinkIssued, msg, zap.String("correlation_id", msg.CorrelationID))
}

func (c *natsClient) PublishWebhookEvent(ctx context.Context, msg *WebhookEventMessage) error {
	return c.publish(SubjectWebhookReceived, msg,
		zap.String("correlation_id", msg.CorrelationID),
		zap.Bool("verified", msg.Verified))
}

func (c *natsClient) publish(subject string, msg any, fields ...zap.Field) error {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err), zap.String("subject", subject))
		return fmt.Errorf("failed to marshal %s message: %w", subject, err)
	}

	if err := c.conn.Publish(subject, data); err != nil {
		c.logger.Error("failed to publish message", append(fields, zap.Error(err), zap.String("subject", subject))...)
		return fmt.Errorf("failed to publish %s message: %w", subject, err)
	}

	c.logger.Info("message published", append(fields, zap.String("subject", subject))...)
	return nil
}

func (c *natsClient) SubscribeToWebhookEvents(ctx context.Context, handler func(*WebhookEventMessage)) error {
	_, err := c.conn.Subscribe(SubjectWebhookReceived, func(msg *nats.Msg) {
		var event WebhookEventMessage
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Error("failed to unmarshal webhook event message", zap.Error(err))
			return
		}

		handler(&event)
		c.logger.Debug("webhook event message processed", zap.String("correlation_id", event.CorrelationID))
	})

	if err != nil {
		c.logger.Error("failed to subscribe to webhook events", zap.Error(err))
		return fmt.Errorf("failed to subscribe to webhook events: %w", err)
	}

	c.logger.Info("subscribed to webhook event messages")
	return nil
}

func (c *natsClient) Close() {
	if c.conn != nil {
		c.conn.Close()
		c.logger.Info("NATS connection closed")
	}
}
