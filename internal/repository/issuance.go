package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kyc_link_gateway/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// IssuanceRepository хранит время выдачи ссылки по идентификатору корреляции.
// Записи живут не дольше порога истечения; GetByCorrelationID возвращает nil, nil, если записи нет.
// Save не перезаписывает действующую запись: повторная выдача с тем же идентификатором
// возвращает ErrIssuanceExists, и время первой выдачи сохраняется.
type IssuanceRepository interface {
	Save(ctx context.Context, record *types.IssuanceRecord) error
	GetByCorrelationID(ctx context.Context, correlationID string) (*types.IssuanceRecord, error)
	Close() error
}

var ErrIssuanceExists = errors.New("issuance already recorded for correlation id")

type PurgingIssuanceRepository interface {
	IssuanceRepository
	PurgeExpired(ctx context.Context) (int64, error)
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresIssuanceRepository struct {
	db     dbPool
	logger *zap.Logger
	now    func() time.Time
}

func NewPostgresIssuanceRepository(db dbPool, logger *zap.Logger) PurgingIssuanceRepository {
	return &postgresIssuanceRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (r *postgresIssuanceRepository) Save(ctx context.Context, record *types.IssuanceRecord) error {
	query := `
		INSERT INTO link_issuances (correlation_id, issued_at, return_url, single_use, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (correlation_id) DO UPDATE
		SET issued_at = EXCLUDED.issued_at,
			return_url = EXCLUDED.return_url,
			single_use = EXCLUDED.single_use,
			expires_at = EXCLUDED.expires_at
		WHERE link_issuances.expires_at <= EXCLUDED.issued_at
	`

	tag, err := r.db.Exec(ctx, query, record.CorrelationID, record.IssuedAt, record.ReturnURL, record.SingleUse, record.ExpiresAt)
	if err != nil {
		r.logger.Error("failed to save issuance", zap.Error(err), zap.String("correlation_id", record.CorrelationID))
		return fmt.Errorf("failed to save issuance: %w", err)
	}

	// Строка не вставлена и не обновлена: под этим идентификатором уже есть действующая выдача
	if tag.RowsAffected() == 0 {
		return ErrIssuanceExists
	}

	r.logger.Debug("issuance saved", zap.String("correlation_id", record.CorrelationID))
	return nil
}

func (r *postgresIssuanceRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*types.IssuanceRecord, error) {
	query := `
		SELECT correlation_id, issued_at, return_url, single_use, expires_at
		FROM link_issuances
		WHERE correlation_id = $1 AND expires_at > $2
	`

	var record types.IssuanceRecord
	err := r.db.QueryRow(ctx, query, correlationID, r.now()).
		Scan(&record.CorrelationID, &record.IssuedAt, &record.ReturnURL, &record.SingleUse, &record.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get issuance", zap.Error(err), zap.String("correlation_id", correlationID))
		return nil, fmt.Errorf("failed to get issuance: %w", err)
	}

	return &record, nil
}

// PurgeExpired удаляет записи с истекшим сроком и возвращает их количество
func (r *postgresIssuanceRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM link_issuances WHERE expires_at <= $1`, r.now())
	if err != nil {
		r.logger.Error("failed to purge expired issuances", zap.Error(err))
		return 0, fmt.Errorf("failed to purge expired issuances: %w", err)
	}

	return tag.RowsAffected(), nil
}

// Пулом соединений владеет main.
func (r *postgresIssuanceRepository) Close() error {
	return nil
}
