package domain

import (
	"math"
	"strings"
	"time"
)

type InventoryRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id,omitempty"`
	Name            string    `json:"name"`
	Category        Category  `json:"category"`
	Quantity        float64   `json:"quantity"`
	Unit            Unit      `json:"unit"`
	StorageLocation string    `json:"storage_location"`
	ExpiryDate      Date      `json:"expiry_date"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks the fields merging depends on. Zero quantities are allowed.
func (r InventoryRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if err := checkQuantity(r.Quantity, true); err != nil {
		return err
	}
	if r.ExpiryDate.IsZero() {
		return &ValidationError{Field: "expiry_date", Reason: "must be set"}
	}
	return nil
}

// Apply returns a copy of r with the patch's fields applied.
func (r InventoryRecord) Apply(p RecordPatch) InventoryRecord {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.Quantity != nil {
		r.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		r.Unit = *p.Unit
	}
	if p.StorageLocation != nil {
		r.StorageLocation = *p.StorageLocation
	}
	if p.ExpiryDate != nil {
		r.ExpiryDate = *p.ExpiryDate
	}
	return r
}

// NewRecord is a user-confirmed item about to be added to the inventory.
type NewRecord struct {
	Name            string   `json:"name"`
	Category        Category `json:"category"`
	Quantity        float64  `json:"quantity"`
	Unit            Unit     `json:"unit"`
	StorageLocation string   `json:"storage_location"`
	ExpiryDate      Date     `json:"expiry_date"`
}

// Normalize validates n and returns it with canonical category and unit spelling.
func (n NewRecord) Normalize() (NewRecord, error) {
	n.Name = strings.TrimSpace(n.Name)
	if n.Name == "" {
		return n, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	category, err := ParseCategory(string(n.Category))
	if err != nil {
		return n, err
	}
	n.Category = category
	if err := checkQuantity(n.Quantity, false); err != nil {
		return n, err
	}
	if strings.TrimSpace(string(n.Unit)) == "" {
		return n, &ValidationError{Field: "unit", Reason: "must not be empty"}
	}
	n.Unit = ParseUnit(string(n.Unit))
	if strings.TrimSpace(n.StorageLocation) == "" {
		return n, &ValidationError{Field: "storage_location", Reason: "must not be empty"}
	}
	if n.ExpiryDate.IsZero() {
		return n, &ValidationError{Field: "expiry_date", Reason: "must be set"}
	}
	return n, nil
}

// RecordPatch is a partial update; nil fields are left unchanged.
type RecordPatch struct {
	Name            *string   `json:"name,omitempty"`
	Category        *Category `json:"category,omitempty"`
	Quantity        *float64  `json:"quantity,omitempty"`
	Unit            *Unit     `json:"unit,omitempty"`
	StorageLocation *string   `json:"storage_location,omitempty"`
	ExpiryDate      *Date     `json:"expiry_date,omitempty"`
}

func (p RecordPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if p.Quantity != nil {
		if err := checkQuantity(*p.Quantity, false); err != nil {
			return err
		}
	}
	if p.Unit != nil && strings.TrimSpace(string(*p.Unit)) == "" {
		return &ValidationError{Field: "unit", Reason: "must not be empty"}
	}
	if p.ExpiryDate != nil && p.ExpiryDate.IsZero() {
		return &ValidationError{Field: "expiry_date", Reason: "must be set"}
	}
	return nil
}

func checkQuantity(q float64, allowZero bool) error {
	switch {
	case math.IsNaN(q) || math.IsInf(q, 0):
		return &ValidationError{Field: "quantity", Reason: "must be finite"}
	case q < 0, q == 0 && !allowZero:
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	return nil
}
