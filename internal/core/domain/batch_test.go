package domain

import (
	"errors"
	"testing"
)

func TestBatchResultErr(t *testing.T) {
	ok := BatchResult{Results: []OpResult{
		{Op: Operation{Kind: OpDelete, RecordID: "a"}, Status: OpStatusApplied},
		{Op: Operation{Kind: OpDelete, RecordID: "b"}, Status: OpStatusAlreadyGone},
	}}
	if err := ok.Err(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	partial := BatchResult{Results: []OpResult{
		{Op: Operation{Kind: OpUpdate, RecordID: "a"}, Status: OpStatusFailed, Err: ErrNotFound},
		{Op: Operation{Kind: OpDelete, RecordID: "b"}, Status: OpStatusApplied},
	}}
	err := partial.Err()
	if !errors.Is(err, ErrPartialBatch) {
		t.Errorf("expected ErrPartialBatch, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected wrapped ErrNotFound, got %v", err)
	}

	var pbf *PartialBatchFailure
	if !errors.As(err, &pbf) {
		t.Fatal("expected *PartialBatchFailure")
	}
	if pbf.Attempted != 2 || len(pbf.Failed) != 1 || pbf.Failed[0].Op.RecordID != "a" {
		t.Errorf("unexpected failure detail: %+v", pbf)
	}
}

func TestNewRecordNormalize(t *testing.T) {
	rec, err := NewRecord{
		Name:            " Milk ",
		Category:        "dairy",
		Quantity:        1,
		Unit:            "liters",
		StorageLocation: "fridge",
		ExpiryDate:      NewDate(2026, 1, 1),
	}.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Name != "Milk" || rec.Category != CategoryDairy || rec.Unit != UnitLiters {
		t.Errorf("unexpected normalized record %+v", rec)
	}

	_, err = NewRecord{Name: "Milk", Category: "Dairy", Quantity: 0, Unit: "Liters", StorageLocation: "fridge", ExpiryDate: NewDate(2026, 1, 1)}.Normalize()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "quantity" {
		t.Errorf("expected quantity validation error, got %v", err)
	}
}
