package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/pantry/internal/core/domain"
	"github.com/rl1809/pantry/internal/platform/logger"
	"github.com/rl1809/pantry/internal/port"
)

const idempotencyKeyPrefix = "mutation:"

type View struct {
	Items  []domain.MergedItem `json:"items"`
	Counts StatusCounts        `json:"counts"`
}

// MutationResult carries the per-record outcome of a mutation together with
// the freshly merged inventory fetched after it ran.
type MutationResult struct {
	Batch domain.BatchResult
	Items []domain.MergedItem
}

type InventoryService struct {
	stores     port.StoreProvider
	cache      port.CacheRepository
	reconciler *Reconciler
	log        *logger.Logger
	now        func() time.Time
}

type Option func(*InventoryService)

func WithCache(cache port.CacheRepository) Option {
	return func(s *InventoryService) { s.cache = cache }
}

func WithClock(now func() time.Time) Option {
	return func(s *InventoryService) { s.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(s *InventoryService) { s.log = log }
}

func NewInventoryService(stores port.StoreProvider, reconciler *Reconciler, opts ...Option) *InventoryService {
	s := &InventoryService{
		stores:     stores,
		reconciler: reconciler,
		log:        logger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InventoryService) today() domain.Date {
	return domain.DateOf(s.now())
}

func (s *InventoryService) List(ctx context.Context, session domain.Session, q Query) (View, error) {
	if err := q.Validate(); err != nil {
		return View{}, err
	}
	store, err := s.stores.StoreFor(session)
	if err != nil {
		return View{}, err
	}

	records, err := store.List(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list inventory: %w", err)
	}
	merged, err := Merge(records)
	if err != nil {
		return View{}, err
	}

	today := s.today()
	return View{
		Items:  Filter(merged, q, today),
		Counts: CountStatuses(records, today),
	}, nil
}

func (s *InventoryService) Add(ctx context.Context, session domain.Session, rec domain.NewRecord) (domain.InventoryRecord, error) {
	rec, err := rec.Normalize()
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	store, err := s.stores.StoreFor(session)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	created, err := store.Create(ctx, rec)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("create item: %w", err)
	}
	s.log.Info("item added", "record_id", created.ID, "name", created.Name)
	return created, nil
}

func (s *InventoryService) Edit(ctx context.Context, session domain.Session, requestID string, mergedIDs []string, edit EditRequest) (MutationResult, error) {
	return s.mutate(ctx, session, requestID, mergedIDs, func(item domain.MergedItem) ([]domain.Operation, error) {
		return PlanEdit(item, edit)
	})
}

func (s *InventoryService) Consume(ctx context.Context, session domain.Session, requestID string, mergedIDs []string, quantity float64) (MutationResult, error) {
	return s.mutate(ctx, session, requestID, mergedIDs, func(item domain.MergedItem) ([]domain.Operation, error) {
		return PlanConsume(item, quantity)
	})
}

func (s *InventoryService) Delete(ctx context.Context, session domain.Session, requestID string, mergedIDs []string) (MutationResult, error) {
	return s.mutate(ctx, session, requestID, mergedIDs, func(item domain.MergedItem) ([]domain.Operation, error) {
		return PlanDelete(item), nil
	})
}

type planFunc func(item domain.MergedItem) ([]domain.Operation, error)

func (s *InventoryService) mutate(ctx context.Context, session domain.Session, requestID string, mergedIDs []string, plan planFunc) (MutationResult, error) {
	if len(mergedIDs) == 0 {
		return MutationResult{}, &domain.ValidationError{Field: "merged_ids", Reason: "must not be empty"}
	}
	store, err := s.stores.StoreFor(session)
	if err != nil {
		return MutationResult{}, err
	}

	key := ""
	if requestID != "" && s.cache != nil {
		key = idempotencyKeyPrefix + session.UserID + ":" + requestID
		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return MutationResult{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			prev, _, err := s.cache.LoadOutcome(ctx, key)
			if err != nil {
				s.log.Warn("load recorded outcome", "request_id", requestID, "error", err)
			}
			return MutationResult{Batch: prev}, domain.ErrDuplicateRequest
		}
	}

	var ops []domain.Operation
	item, err := s.locate(ctx, store, mergedIDs)
	if err == nil {
		ops, err = plan(item)
	}
	if err != nil {
		// Nothing was sent to the store, so the request may be retried as is.
		if key != "" {
			if relErr := s.cache.ReleaseIdempotency(ctx, key); relErr != nil {
				s.log.Warn("release idempotency key", "request_id", requestID, "error", relErr)
			}
		}
		return MutationResult{}, err
	}

	batch := s.reconciler.Apply(ctx, store, ops)
	if key != "" {
		if err := s.cache.SaveOutcome(ctx, key, batch); err != nil {
			s.log.Warn("save mutation outcome", "request_id", requestID, "error", err)
		}
	}

	result := MutationResult{Batch: batch}
	records, err := store.List(ctx)
	if err != nil {
		return result, errors.Join(batch.Err(), fmt.Errorf("refresh inventory: %w", err))
	}
	if result.Items, err = Merge(records); err != nil {
		return result, errors.Join(batch.Err(), err)
	}

	s.log.Info("mutation applied", "request_id", requestID, "operations", len(ops), "failed", len(batch.Failed()))
	return result, batch.Err()
}

// locate re-merges the current snapshot and returns the item whose records
// are exactly mergedIDs. Anything else means the caller's view is stale.
func (s *InventoryService) locate(ctx context.Context, store port.InventoryStore, mergedIDs []string) (domain.MergedItem, error) {
	records, err := store.List(ctx)
	if err != nil {
		return domain.MergedItem{}, fmt.Errorf("list inventory: %w", err)
	}
	merged, err := Merge(records)
	if err != nil {
		return domain.MergedItem{}, err
	}
	for _, item := range merged {
		if item.SameIDs(mergedIDs) {
			return item, nil
		}
	}
	return domain.MergedItem{}, domain.ErrStaleEntity
}
