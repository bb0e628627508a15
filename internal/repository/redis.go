package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kyc_link_gateway/types"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const issuanceKeyPrefix = "kyc:issuance:"

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

type redisIssuanceRepository struct {
	client redisClient
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func NewRedisIssuanceRepository(client redisClient, logger *zap.Logger) IssuanceRepository {
	return &redisIssuanceRepository{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

func (r *redisIssuanceRepository) Save(ctx context.Context, record *types.IssuanceRecord) error {
	ttl := record.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("issuance %s already expired", record.CorrelationID)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal issuance: %w", err)
	}

	stored, err := r.client.SetNX(ctx, issuanceKeyPrefix+record.CorrelationID, data, ttl).Result()
	if err != nil {
		r.logger.Error("failed to store issuance in redis", zap.Error(err), zap.String("correlation_id", record.CorrelationID))
		return fmt.Errorf("failed to store issuance: %w", err)
	}
	if !stored {
		return ErrIssuanceExists
	}

	return nil
}

func (r *redisIssuanceRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*types.IssuanceRecord, error) {
	data, err := r.client.Get(ctx, issuanceKeyPrefix+correlationID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("failed to read issuance from redis", zap.Error(err), zap.String("correlation_id", correlationID))
		return nil, fmt.Errorf("failed to read issuance: %w", err)
	}

	var record types.IssuanceRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issuance: %w", err)
	}

	return &record, nil
}

func (r *redisIssuanceRepository) Close() error {
	return r.client.Close()
}
