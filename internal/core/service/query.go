package service

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/rl1809/pantry/internal/core/domain"
)

// expiringWindowDays is how far ahead an item counts as expiring soon.
const expiringWindowDays = 3

type ExpiryFilter string

const (
	ExpiryAll      ExpiryFilter = "all"
	ExpiryExpiring ExpiryFilter = "expiring"
	ExpiryExpired  ExpiryFilter = "expired"
)

type SortKey string

const (
	SortByExpiry   SortKey = "expiry"
	SortByName     SortKey = "name"
	SortByCategory SortKey = "category"
)

type Query struct {
	Search   string
	Category domain.Category
	Expiry   ExpiryFilter
	Sort     SortKey
}

func (q Query) Validate() error {
	switch q.Expiry {
	case "", ExpiryAll, ExpiryExpiring, ExpiryExpired:
	default:
		return &domain.ValidationError{Field: "expiry", Reason: "unknown filter " + string(q.Expiry)}
	}
	switch q.Sort {
	case "", SortByExpiry, SortByName, SortByCategory:
	default:
		return &domain.ValidationError{Field: "sort", Reason: "unknown sort key " + string(q.Sort)}
	}
	return nil
}

type StatusCounts struct {
	Expired      int `json:"expired"`
	ExpiringSoon int `json:"expiring_soon"`
	Fresh        int `json:"fresh"`
	Total        int `json:"total"`
}

// CountStatuses classifies raw records, not merged items, by days to expiry.
func CountStatuses(records []domain.InventoryRecord, today domain.Date) StatusCounts {
	var c StatusCounts
	for _, r := range records {
		days := r.ExpiryDate.DaysUntil(today)
		switch {
		case days < 0:
			c.Expired++
		case days <= expiringWindowDays:
			c.ExpiringSoon++
		default:
			c.Fresh++
		}
	}
	c.Total = len(records)
	return c
}

// Filter returns the items matching q, sorted. The input is not modified.
func Filter(items []domain.MergedItem, q Query, today domain.Date) []domain.MergedItem {
	search := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]domain.MergedItem, 0, len(items))
	for _, it := range items {
		if search != "" && !strings.Contains(strings.ToLower(it.Name), search) {
			continue
		}
		if q.Category != "" && !it.Category.Equal(q.Category) {
			continue
		}
		days := it.ExpiryDate.DaysUntil(today)
		switch q.Expiry {
		case ExpiryExpired:
			if days >= 0 {
				continue
			}
		case ExpiryExpiring:
			if days < 0 || days > expiringWindowDays {
				continue
			}
		}
		out = append(out, it)
	}

	col := collate.New(language.English, collate.IgnoreCase)
	byExpiry := func(a, b domain.MergedItem) int {
		return a.ExpiryDate.DaysUntil(b.ExpiryDate)
	}
	slices.SortStableFunc(out, func(a, b domain.MergedItem) int {
		switch q.Sort {
		case SortByName:
			return col.CompareString(a.Name, b.Name)
		case SortByCategory:
			if c := col.CompareString(string(a.Category), string(b.Category)); c != 0 {
				return c
			}
			return byExpiry(a, b)
		default:
			return byExpiry(a, b)
		}
	})
	return out
}
