package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kyc_link_gateway/internal/apperrors"
	"kyc_link_gateway/internal/messaging"
	"kyc_link_gateway/internal/metrics"
	"kyc_link_gateway/internal/provider"
	"kyc_link_gateway/internal/repository"
	"kyc_link_gateway/types"

	"go.uber.org/zap"
)

type VerificationService interface {
	CreateRegistrationLink(ctx context.Context, redirectURL string) (*provider.LinkCreationResult, error)
	CreateMultiUseLink(ctx context.Context) (*provider.LinkCreationResult, error)
}

type Sanitizer interface {
	Sanitize(rawURL string) (cleanURL string, correlationID string)
}

type verificationService struct {
	sanitizer Sanitizer
	builder   *provider.Builder
	client    provider.Client
	issuances repository.IssuanceRepository
	nats      messaging.NATSClient
	idConfig  provider.IDConfig
	retention time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type Options struct {
	Sanitizer Sanitizer
	Builder   *provider.Builder
	Client    provider.Client
	Issuances repository.IssuanceRepository
	NATS      messaging.NATSClient
	IDConfig  provider.IDConfig
	Retention time.Duration
	Metrics   *metrics.Metrics
}

func NewVerificationService(opts Options, logger *zap.Logger) VerificationService {
	return &verificationService{
		sanitizer: opts.Sanitizer,
		builder:   opts.Builder,
		client:    opts.Client,
		issuances: opts.Issuances,
		nats:      opts.NATS,
		idConfig:  opts.IDConfig,
		retention: opts.Retention,
		metrics:   opts.Metrics,
		logger:    logger,
	}
}

// CreateRegistrationLink выдает одноразовую ссылку. Идентификатор корреляции уходит провайдеру
// в user_id, а адрес возврата - без query string.
func (s *verificationService) CreateRegistrationLink(ctx context.Context, redirectURL string) (*provider.LinkCreationResult, error) {
	cleanURL, correlationID := s.sanitizer.Sanitize(redirectURL)

	logger := s.logger.With(zap.String("correlation_id", correlationID), zap.String("redirect_url", cleanURL))

	request, envelope, err := s.builder.Build(correlationID, cleanURL, true, s.idConfig)
	if err != nil {
		s.metrics.LinkFailed(string(apperrors.Kind(err)))
		logger.Error("failed to build link request", zap.Error(err))
		return nil, fmt.Errorf("failed to build link request: %w", err)
	}

	// Запись нужна до ответа провайдера: редирект может прийти раньше, чем мы вернем ссылку клиенту
	record := &types.IssuanceRecord{
		CorrelationID: correlationID,
		IssuedAt:      request.IssuedAt,
		ReturnURL:     cleanURL,
		SingleUse:     true,
		ExpiresAt:     request.IssuedAt.Add(s.retention),
	}
	switch err := s.issuances.Save(ctx, record); {
	case errors.Is(err, repository.ErrIssuanceExists):
		logger.Warn("correlation id already has an active issuance, keeping the first issuance time")
	case err != nil:
		logger.Warn("failed to remember issuance, callback expiry will not be evaluated", zap.Error(err))
	}

	result, err := s.createLink(ctx, request, envelope, logger)
	if err != nil {
		return nil, err
	}

	s.publishIssued(ctx, request, result, logger)
	return result, nil
}

func (s *verificationService) CreateMultiUseLink(ctx context.Context) (*provider.LinkCreationResult, error) {
	request, envelope, err := s.builder.Build("", "", false, s.idConfig)
	if err != nil {
		s.metrics.LinkFailed(string(apperrors.Kind(err)))
		s.logger.Error("failed to build multi-use link request", zap.Error(err))
		return nil, fmt.Errorf("failed to build link request: %w", err)
	}

	result, err := s.createLink(ctx, request, envelope, s.logger)
	if err != nil {
		return nil, err
	}

	s.publishIssued(ctx, request, result, s.logger)
	return result, nil
}

func (s *verificationService) createLink(ctx context.Context, request *provider.VerificationLinkRequest, envelope provider.SignedEnvelope, logger *zap.Logger) (*provider.LinkCreationResult, error) {
	start := time.Now()
	result, err := s.client.CreateLink(ctx, s.builder.Payload(request, envelope))
	s.metrics.ObserveProviderCall(time.Since(start))

	if err != nil {
		kind := apperrors.Kind(err)
		s.metrics.LinkFailed(string(kind))
		logger.Error("failed to create verification link", zap.Error(err), zap.String("kind", string(kind)))
		return nil, fmt.Errorf("failed to create verification link: %w", err)
	}

	s.metrics.LinkIssued(request.SingleUse)
	logger.Info("verification link issued",
		zap.String("ref_id", result.RefID),
		zap.Bool("single_use", request.SingleUse))
	return result, nil
}

// Ошибка публикации не возвращается клиенту: ссылка у провайдера уже создана, и повтор запроса выдал бы вторую.
func (s *verificationService) publishIssued(ctx context.Context, request *provider.VerificationLinkRequest, result *provider.LinkCreationResult, logger *zap.Logger) {
	err := s.nats.PublishLinkIssued(ctx, &messaging.LinkIssuedMessage{
		CorrelationID: request.CorrelationID,
		RefID:         result.RefID,
		LinkURL:       result.LinkURL,
		ReturnURL:     request.ReturnURL,
		SingleUse:     request.SingleUse,
		IssuedAt:      request.IssuedAt,
	})
	if err != nil {
		logger.Warn("failed to publish link issued event", zap.Error(err))
	}
}
