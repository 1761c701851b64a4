package domain

import "slices"

// MergedItem is the display aggregate of one or more inventory records that
// share name, expiry date and unit group. Quantity and Unit hold the rounded
// display total; the unrounded sum stays internal.
type MergedItem struct {
	InventoryRecord
	MergedIDs   []string `json:"merged_ids"`
	MergedCount int      `json:"merged_count"`

	baseQuantity float64
	baseUnit     Unit
	hasBase      bool
}

// NewMergedItem seeds an aggregate from its first record.
func NewMergedItem(r InventoryRecord) MergedItem {
	spec := r.Unit.Describe()
	return MergedItem{
		InventoryRecord: r,
		MergedIDs:       []string{r.ID},
		MergedCount:     1,
		baseQuantity:    ToBase(r.Quantity, r.Unit),
		baseUnit:        spec.Base,
		hasBase:         true,
	}
}

// Absorb adds r to the aggregate and refreshes the display quantity.
func (m *MergedItem) Absorb(r InventoryRecord) {
	m.baseQuantity += ToBase(r.Quantity, r.Unit)
	m.MergedIDs = append(m.MergedIDs, r.ID)
	m.MergedCount = len(m.MergedIDs)
	q := FromBase(m.baseQuantity, m.baseUnit)
	m.Quantity = q.Amount
	m.Unit = q.Unit
}

// BaseQuantity returns the unrounded total in the base unit of the group.
// Items built by hand fall back to converting the display quantity.
func (m MergedItem) BaseQuantity() (float64, Unit) {
	if m.hasBase {
		return m.baseQuantity, m.baseUnit
	}
	return ToBase(m.Quantity, m.Unit), m.Unit.Describe().Base
}

// ExactQuantity is the unrounded total expressed in the display unit.
func (m MergedItem) ExactQuantity() float64 {
	base, _ := m.BaseQuantity()
	return base / m.Unit.Describe().Factor
}

// SameIDs reports whether ids names exactly the records of m, in any order.
// Stores do not promise a stable order between two fetches.
func (m MergedItem) SameIDs(ids []string) bool {
	if len(ids) != len(m.MergedIDs) {
		return false
	}
	a, b := slices.Clone(m.MergedIDs), slices.Clone(ids)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
