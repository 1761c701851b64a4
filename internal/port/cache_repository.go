package port

import (
	"context"

	"github.com/rl1809/pantry/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency reserves a key for a mutation, returns false if already reserved
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a key whose mutation never reached the store
	ReleaseIdempotency(ctx context.Context, key string) error

	// SaveOutcome records the result of the mutation that reserved key
	SaveOutcome(ctx context.Context, key string, result domain.BatchResult) error

	// LoadOutcome returns the recorded result for key, ok=false if none was saved
	LoadOutcome(ctx context.Context, key string) (domain.BatchResult, bool, error)
}
