package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrPartialBatch     = errors.New("partial batch failure")
	ErrStaleEntity      = errors.New("merged entity changed, refresh and retry")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrDuplicateRequest = errors.New("duplicate request")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PartialBatchFailure reports the operations of one mutation that failed.
// Operations not listed here were applied; nothing was rolled back.
type PartialBatchFailure struct {
	Attempted int
	Failed    []OpResult
}

func (e *PartialBatchFailure) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, r := range e.Failed {
		msgs = append(msgs, fmt.Sprintf("%s %s: %v", r.Op.Kind, r.Op.RecordID, r.Err))
	}
	return fmt.Sprintf("%d of %d operations failed: %s", len(e.Failed), e.Attempted, strings.Join(msgs, "; "))
}

func (e *PartialBatchFailure) Unwrap() []error {
	errs := []error{ErrPartialBatch}
	for _, r := range e.Failed {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
