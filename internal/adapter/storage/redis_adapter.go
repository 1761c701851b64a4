package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rl1809/pantry/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	outcomeKeyPrefix     = "outcome:"
	idempotencyKeyTTL    = 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// storedResult is the msgpack form of an OpResult; errors keep only their text.
type storedResult struct {
	Kind     string  `msgpack:"kind"`
	RecordID string  `msgpack:"record_id"`
	Status   string  `msgpack:"status"`
	Quantity float64 `msgpack:"quantity,omitempty"`
	Unit     string  `msgpack:"unit,omitempty"`
	Error    string  `msgpack:"error,omitempty"`
}

func (r *RedisAdapter) SaveOutcome(ctx context.Context, key string, result domain.BatchResult) error {
	stored := make([]storedResult, 0, len(result.Results))
	for _, res := range result.Results {
		s := storedResult{
			Kind:     string(res.Op.Kind),
			RecordID: res.Op.RecordID,
			Status:   string(res.Status),
		}
		if res.Op.Patch.Quantity != nil {
			s.Quantity = *res.Op.Patch.Quantity
		}
		if res.Op.Patch.Unit != nil {
			s.Unit = string(*res.Op.Patch.Unit)
		}
		if res.Err != nil {
			s.Error = res.Err.Error()
		}
		stored = append(stored, s)
	}

	b, err := msgpack.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	return r.client.Set(ctx, outcomeKeyPrefix+key, b, idempotencyKeyTTL).Err()
}

func (r *RedisAdapter) LoadOutcome(ctx context.Context, key string) (domain.BatchResult, bool, error) {
	b, err := r.client.Get(ctx, outcomeKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.BatchResult{}, false, nil
	}
	if err != nil {
		return domain.BatchResult{}, false, err
	}

	var stored []storedResult
	if err := msgpack.Unmarshal(b, &stored); err != nil {
		return domain.BatchResult{}, false, fmt.Errorf("decode outcome: %w", err)
	}

	results := make([]domain.OpResult, 0, len(stored))
	for _, s := range stored {
		res := domain.OpResult{
			Op:     domain.Operation{Kind: domain.OpKind(s.Kind), RecordID: s.RecordID},
			Status: domain.OpStatus(s.Status),
		}
		if s.Kind == string(domain.OpUpdate) {
			qty, unit := s.Quantity, domain.Unit(s.Unit)
			res.Op.Patch = domain.RecordPatch{Quantity: &qty, Unit: &unit}
		}
		if s.Error != "" {
			res.Err = errors.New(s.Error)
		}
		results = append(results, res)
	}
	return domain.BatchResult{Results: results}, true, nil
}
