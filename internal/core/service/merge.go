package service

import (
	"fmt"
	"strings"

	"github.com/rl1809/pantry/internal/core/domain"
)

// mergeKey groups records that describe the same food: same name, same
// expiry date and units that can be summed.
func mergeKey(r domain.InventoryRecord) string {
	return strings.ToLower(strings.TrimSpace(r.Name)) + "|" + r.ExpiryDate.String() + "|" + r.Unit.GroupKey()
}

// Merge folds raw records into display items. Output follows the order in
// which each group was first seen, and every input id lands in exactly one item.
func Merge(records []domain.InventoryRecord) ([]domain.MergedItem, error) {
	index := make(map[string]int, len(records))
	seen := make(map[string]struct{}, len(records))
	merged := make([]domain.MergedItem, 0, len(records))

	for _, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %q: %w", r.ID, err)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("duplicate record id %q", r.ID)}
		}
		seen[r.ID] = struct{}{}

		key := mergeKey(r)
		if i, ok := index[key]; ok {
			merged[i].Absorb(r)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, domain.NewMergedItem(r))
	}

	return merged, nil
}
