package domain

type OpKind string

const (
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

type Operation struct {
	Kind     OpKind
	RecordID string
	Patch    RecordPatch
}

type OpStatus string

const (
	OpStatusApplied     OpStatus = "applied"
	OpStatusAlreadyGone OpStatus = "already_gone"
	OpStatusFailed      OpStatus = "failed"
)

type OpResult struct {
	Op     Operation
	Status OpStatus
	Err    error
}

// BatchResult holds one outcome per attempted operation, in plan order.
type BatchResult struct {
	Results []OpResult
}

func (b BatchResult) Failed() []OpResult {
	var failed []OpResult
	for _, r := range b.Results {
		if r.Status == OpStatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err is nil when every operation reached its intended end state.
func (b BatchResult) Err() error {
	failed := b.Failed()
	if len(failed) == 0 {
		return nil
	}
	return &PartialBatchFailure{Attempted: len(b.Results), Failed: failed}
}
