package port

import (
	"context"

	"github.com/rl1809/pantry/internal/core/domain"
)

type InventoryStore interface {
	// List returns the full current snapshot for the store's session
	List(ctx context.Context) ([]domain.InventoryRecord, error)

	// Update applies a partial patch; domain.ErrNotFound if the record is gone
	Update(ctx context.Context, id string, patch domain.RecordPatch) (domain.InventoryRecord, error)

	// Delete removes a record; domain.ErrNotFound if it was already deleted
	Delete(ctx context.Context, id string) error

	// Create adds a user-confirmed record
	Create(ctx context.Context, rec domain.NewRecord) (domain.InventoryRecord, error)
}

type StoreProvider interface {
	// StoreFor binds a store to the caller's session
	StoreFor(session domain.Session) (InventoryStore, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
