package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/pantry/internal/core/domain"
	"github.com/rl1809/pantry/internal/port"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite3"
)

var schemas = map[Dialect][]string{
	DialectMySQL: {`
		CREATE TABLE IF NOT EXISTS inventory_items (
			id               VARCHAR(36)  NOT NULL PRIMARY KEY,
			user_id          VARCHAR(64)  NOT NULL,
			name             VARCHAR(255) NOT NULL,
			category         VARCHAR(64)  NOT NULL,
			quantity         DOUBLE       NOT NULL,
			unit             VARCHAR(32)  NOT NULL,
			storage_location VARCHAR(64)  NOT NULL,
			expiry_date      DATE         NOT NULL,
			created_at       DATETIME(6)  NOT NULL,
			INDEX idx_inventory_user_expiry (user_id, expiry_date)
		)`,
	},
	DialectSQLite: {`
		CREATE TABLE IF NOT EXISTS inventory_items (
			id               TEXT     NOT NULL PRIMARY KEY,
			user_id          TEXT     NOT NULL,
			name             TEXT     NOT NULL,
			category         TEXT     NOT NULL,
			quantity         REAL     NOT NULL,
			unit             TEXT     NOT NULL,
			storage_location TEXT     NOT NULL,
			expiry_date      DATE     NOT NULL,
			created_at       DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_user_expiry ON inventory_items (user_id, expiry_date)`,
	},
}

const selectColumns = `id, user_id, name, category, quantity, unit, storage_location, expiry_date, created_at`

// SQLStore keeps inventory records in MySQL or SQLite. Both drivers share
// the same "?" placeholder syntax, so only the schema differs.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	stmts, ok := schemas[s.dialect]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", s.dialect)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) StoreFor(session domain.Session) (port.InventoryStore, error) {
	if session.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return &userStore{db: s.db, userID: session.UserID}, nil
}

type userStore struct {
	db     *sql.DB
	userID string
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.InventoryRecord, error) {
	var r domain.InventoryRecord
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.Category, &r.Quantity, &r.Unit,
		&r.StorageLocation, &r.ExpiryDate, &r.CreatedAt)
	return r, err
}

func (u *userStore) List(ctx context.Context) ([]domain.InventoryRecord, error) {
	rows, err := u.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM inventory_items WHERE user_id = ?
		ORDER BY expiry_date, created_at, id`, u.userID)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	defer rows.Close()

	var records []domain.InventoryRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (u *userStore) Update(ctx context.Context, id string, patch domain.RecordPatch) (domain.InventoryRecord, error) {
	if err := patch.Validate(); err != nil {
		return domain.InventoryRecord{}, err
	}

	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanRecord(tx.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM inventory_items WHERE id = ? AND user_id = ?`, id, u.userID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InventoryRecord{}, fmt.Errorf("inventory item %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("query inventory item: %w", err)
	}

	next := current.Apply(patch)
	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_items
		SET name = ?, category = ?, quantity = ?, unit = ?, storage_location = ?, expiry_date = ?
		WHERE id = ? AND user_id = ?`,
		next.Name, next.Category, next.Quantity, next.Unit, next.StorageLocation, next.ExpiryDate,
		id, u.userID,
	)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("update inventory item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

func (u *userStore) Delete(ctx context.Context, id string) error {
	result, err := u.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ? AND user_id = ?`, id, u.userID)
	if err != nil {
		return fmt.Errorf("delete inventory item: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("inventory item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (u *userStore) Create(ctx context.Context, rec domain.NewRecord) (domain.InventoryRecord, error) {
	rec, err := rec.Normalize()
	if err != nil {
		return domain.InventoryRecord{}, err
	}

	r := domain.InventoryRecord{
		ID:              uuid.New().String(),
		UserID:          u.userID,
		Name:            rec.Name,
		Category:        rec.Category,
		Quantity:        rec.Quantity,
		Unit:            rec.Unit,
		StorageLocation: rec.StorageLocation,
		ExpiryDate:      rec.ExpiryDate,
		CreatedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
	_, err = u.db.ExecContext(ctx, `
		INSERT INTO inventory_items (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Name, r.Category, r.Quantity, r.Unit, r.StorageLocation, r.ExpiryDate, r.CreatedAt,
	)
	if err != nil {
		return domain.InventoryRecord{}, fmt.Errorf("insert inventory item: %w", err)
	}
	return r, nil
}
