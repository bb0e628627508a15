package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"kyc_link_gateway/types"

	"github.com/allegro/bigcache/v3"
	"go.uber.org/zap"
)

type memoryIssuanceRepository struct {
	mu     sync.Mutex
	cache  *bigcache.BigCache
	logger *zap.Logger
	now    func() time.Time
}

// NewMemoryIssuanceRepository создает хранилище в памяти процесса; bigcache сам вытесняет записи старше ttl.
func NewMemoryIssuanceRepository(ttl time.Duration, logger *zap.Logger) (IssuanceRepository, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = ttl / 5
	cfg.Shards = 64
	cfg.MaxEntrySize = 512
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create issuance cache: %w", err)
	}

	return &memoryIssuanceRepository{
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (r *memoryIssuanceRepository) Save(ctx context.Context, record *types.IssuanceRecord) error {
	// Проверка и запись должны быть атомарны
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.GetByCorrelationID(ctx, record.CorrelationID)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrIssuanceExists
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal issuance: %w", err)
	}

	if err := r.cache.Set(record.CorrelationID, data); err != nil {
		r.logger.Error("failed to cache issuance", zap.Error(err), zap.String("correlation_id", record.CorrelationID))
		return fmt.Errorf("failed to cache issuance: %w", err)
	}

	r.logger.Debug("issuance cached", zap.String("correlation_id", record.CorrelationID))
	return nil
}

func (r *memoryIssuanceRepository) GetByCorrelationID(_ context.Context, correlationID string) (*types.IssuanceRecord, error) {
	data, err := r.cache.Get(correlationID)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, nil
		}
		r.logger.Error("failed to read issuance from cache", zap.Error(err), zap.String("correlation_id", correlationID))
		return nil, fmt.Errorf("failed to read issuance: %w", err)
	}

	var record types.IssuanceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issuance: %w", err)
	}

	// bigcache чистит записи только раз в CleanWindow
	if record.Expired(r.now()) {
		_ = r.cache.Delete(correlationID)
		return nil, nil
	}

	return &record, nil
}

func (r *memoryIssuanceRepository) Close() error {
	return r.cache.Close()
}
