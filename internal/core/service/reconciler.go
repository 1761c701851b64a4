package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/pantry/internal/core/domain"
	"github.com/rl1809/pantry/internal/platform/logger"
	"github.com/rl1809/pantry/internal/port"
)

// EditRequest replaces the editable fields of every record behind a merged item.
type EditRequest struct {
	Name            string
	Category        domain.Category
	Quantity        float64
	Unit            domain.Unit
	ExpiryDate      domain.Date
	StorageLocation *string
}

func (e EditRequest) normalize() (EditRequest, error) {
	rec, err := domain.NewRecord{
		Name:            e.Name,
		Category:        e.Category,
		Quantity:        e.Quantity,
		Unit:            e.Unit,
		StorageLocation: "-",
		ExpiryDate:      e.ExpiryDate,
	}.Normalize()
	if err != nil {
		return e, err
	}
	e.Name, e.Category, e.Unit = rec.Name, rec.Category, rec.Unit
	if e.StorageLocation != nil && strings.TrimSpace(*e.StorageLocation) == "" {
		return e, &domain.ValidationError{Field: "storage_location", Reason: "must not be empty"}
	}
	return e, nil
}

// PlanEdit splits the new quantity evenly across the merged records,
// regardless of how the old total was distributed.
func PlanEdit(item domain.MergedItem, edit EditRequest) ([]domain.Operation, error) {
	if len(item.MergedIDs) == 0 {
		return nil, &domain.ValidationError{Field: "merged_ids", Reason: "must not be empty"}
	}
	edit, err := edit.normalize()
	if err != nil {
		return nil, err
	}

	share := edit.Quantity / float64(len(item.MergedIDs))
	ops := make([]domain.Operation, 0, len(item.MergedIDs))
	for _, id := range item.MergedIDs {
		patch := domain.RecordPatch{
			Name:            ptr(edit.Name),
			Category:        ptr(edit.Category),
			Quantity:        ptr(share),
			Unit:            ptr(edit.Unit),
			ExpiryDate:      ptr(edit.ExpiryDate),
			StorageLocation: edit.StorageLocation,
		}
		ops = append(ops, domain.Operation{Kind: domain.OpUpdate, RecordID: id, Patch: patch})
	}
	return ops, nil
}

// remainderPlaces drops float residue from a consume remainder.
const remainderPlaces = 6

// PlanConsume removes consumed (in the item's display unit) from the item.
// Consuming at least the displayed quantity deletes every record. Anything
// left collapses onto the first record; the others are deleted.
func PlanConsume(item domain.MergedItem, consumed float64) ([]domain.Operation, error) {
	if len(item.MergedIDs) == 0 {
		return nil, &domain.ValidationError{Field: "merged_ids", Reason: "must not be empty"}
	}
	if math.IsNaN(consumed) || math.IsInf(consumed, 0) {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be finite"}
	}
	if consumed <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	if consumed >= item.Quantity {
		return PlanDelete(item), nil
	}
	remaining := decimal.NewFromFloat(item.ExactQuantity() - consumed).Round(remainderPlaces).InexactFloat64()
	if remaining <= 0 {
		return PlanDelete(item), nil
	}

	ops := make([]domain.Operation, 0, len(item.MergedIDs))
	ops = append(ops, domain.Operation{
		Kind:     domain.OpUpdate,
		RecordID: item.MergedIDs[0],
		Patch: domain.RecordPatch{
			Name:       ptr(item.Name),
			Category:   ptr(item.Category),
			Quantity:   ptr(remaining),
			Unit:       ptr(item.Unit),
			ExpiryDate: ptr(item.ExpiryDate),
		},
	})
	for _, id := range item.MergedIDs[1:] {
		ops = append(ops, domain.Operation{Kind: domain.OpDelete, RecordID: id})
	}
	return ops, nil
}

func PlanDelete(item domain.MergedItem) []domain.Operation {
	ops := make([]domain.Operation, 0, len(item.MergedIDs))
	for _, id := range item.MergedIDs {
		ops = append(ops, domain.Operation{Kind: domain.OpDelete, RecordID: id})
	}
	return ops
}

// Reconciler sends planned operations to a store. It never retries and never
// compensates: a failed operation is reported and the rest still run.
type Reconciler struct {
	concurrency int
	log         *logger.Logger
}

func NewReconciler(concurrency int, log *logger.Logger) *Reconciler {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Reconciler{concurrency: concurrency, log: log}
}

// Apply runs all updates, then all deletes, each phase fanned out.
// Operations of any other kind are reported as failed.
func (r *Reconciler) Apply(ctx context.Context, store port.InventoryStore, ops []domain.Operation) domain.BatchResult {
	results := make([]domain.OpResult, len(ops))

	for i, op := range ops {
		if op.Kind != domain.OpUpdate && op.Kind != domain.OpDelete {
			results[i] = r.apply(ctx, store, op)
		}
	}

	for _, kind := range []domain.OpKind{domain.OpUpdate, domain.OpDelete} {
		var g errgroup.Group
		g.SetLimit(r.concurrency)
		for i, op := range ops {
			if op.Kind != kind {
				continue
			}
			g.Go(func() error {
				results[i] = r.apply(ctx, store, op)
				return nil
			})
		}
		_ = g.Wait()
	}

	return domain.BatchResult{Results: results}
}

func (r *Reconciler) apply(ctx context.Context, store port.InventoryStore, op domain.Operation) domain.OpResult {
	var err error
	switch op.Kind {
	case domain.OpUpdate:
		_, err = store.Update(ctx, op.RecordID, op.Patch)
	case domain.OpDelete:
		err = store.Delete(ctx, op.RecordID)
		if errors.Is(err, domain.ErrNotFound) {
			r.log.Debug("record already deleted", "record_id", op.RecordID)
			return domain.OpResult{Op: op, Status: domain.OpStatusAlreadyGone}
		}
	default:
		err = &domain.ValidationError{Field: "kind", Reason: "unknown operation " + string(op.Kind)}
	}

	if err != nil {
		r.log.Warn("operation failed", "kind", op.Kind, "record_id", op.RecordID, "error", err)
		return domain.OpResult{Op: op, Status: domain.OpStatusFailed, Err: err}
	}
	return domain.OpResult{Op: op, Status: domain.OpStatusApplied}
}

func ptr[T any](v T) *T {
	return &v
}
