package callback

import (
	"context"
	"time"

	"kyc_link_gateway/internal/metrics"
	"kyc_link_gateway/types"

	"go.uber.org/zap"
)

type Outcome string

const (
	OutcomeSuccessful Outcome = "successful"
	OutcomeCancelled  Outcome = "cancelled"
	OutcomeExpired    Outcome = "expired"
	OutcomeUnknown    Outcome = "unknown"
)

// Params - то, что провайдер возвращает в query string при редиректе браузера.
type Params struct {
	Status           string
	UserID           string
	ClaimedTimestamp string
}

type Event struct {
	Outcome       Outcome
	RawStatus     string
	CorrelationID string
	IssuedAt      *time.Time
	ObservedAt    time.Time
}

type IssuanceLookup interface {
	GetByCorrelationID(ctx context.Context, correlationID string) (*types.IssuanceRecord, error)
}

type Reconciler struct {
	issuances       IssuanceLookup
	threshold       time.Duration
	requireIssuance bool
	metrics         *metrics.Metrics
	logger          *zap.Logger
	now             func() time.Time
}

func NewReconciler(issuances IssuanceLookup, threshold time.Duration, requireIssuance bool, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		issuances:       issuances,
		threshold:       threshold,
		requireIssuance: requireIssuance,
		metrics:         m,
		logger:          logger,
		now:             time.Now,
	}
}

// Reconcile определяет итог редиректа. Время выдачи берется только из хранилища:
// timestamp из query string подделывается клиентом и не используется для проверки срока.
func (r *Reconciler) Reconcile(ctx context.Context, params Params) Event {
	event := Event{
		RawStatus:     params.Status,
		CorrelationID: params.UserID,
		ObservedAt:    r.now(),
	}

	logger := r.logger.With(
		zap.String("correlation_id", params.UserID),
		zap.String("status", params.Status))

	if params.ClaimedTimestamp != "" {
		logger.Debug("ignoring client-supplied issuance timestamp", zap.String("timestamp", params.ClaimedTimestamp))
	}

	event.IssuedAt = r.lookupIssuedAt(ctx, params.UserID, logger)
	event.Outcome = r.decide(event, logger)

	r.metrics.CallbackOutcome(string(event.Outcome))
	logger.Info("callback reconciled", zap.String("outcome", string(event.Outcome)))
	return event
}

func (r *Reconciler) decide(event Event, logger *zap.Logger) Outcome {
	switch {
	case event.IssuedAt != nil:
		if event.ObservedAt.Sub(*event.IssuedAt) > r.threshold {
			return OutcomeExpired
		}
	case r.requireIssuance:
		logger.Warn("issuance time not recoverable, expiry cannot be evaluated")
		return OutcomeUnknown
	default:
		logger.Warn("issuance time not recoverable, skipping expiry check")
	}

	switch event.RawStatus {
	case "cancelled":
		return OutcomeCancelled
	case "successful", "success":
		return OutcomeSuccessful
	default:
		return OutcomeUnknown
	}
}

func (r *Reconciler) lookupIssuedAt(ctx context.Context, correlationID string, logger *zap.Logger) *time.Time {
	if correlationID == "" || r.issuances == nil {
		return nil
	}

	record, err := r.issuances.GetByCorrelationID(ctx, correlationID)
	if err != nil {
		logger.Warn("failed to look up issuance", zap.Error(err))
		return nil
	}
	if record == nil {
		return nil
	}

	issuedAt := record.IssuedAt
	return &issuedAt
}
