package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medinv/m/domain"
)

const inventoryColumns = `id, name, lot, quantity, expiry_date, status, warehouse, code, origin, created_by, created_at, updated_at`

// InventoryRepository reads and writes inventory rows. It works on a *sqlx.DB
// or inside a *sqlx.Tx.
type InventoryRepository struct {
	DB  sqlx.ExtContext
	Now func() time.Time
}

func NewInventoryRepository(db sqlx.ExtContext) InventoryRepository {
	return InventoryRepository{DB: db, Now: time.Now}
}

func (r InventoryRepository) now() string {
	if r.Now == nil {
		return domain.Timestamp(time.Now())
	}
	return domain.Timestamp(r.Now())
}

// List returns every lot ordered by name.
func (r InventoryRepository) List(ctx context.Context) ([]domain.InventoryItem, error) {
	items := []domain.InventoryItem{}
	err := sqlx.SelectContext(ctx, r.DB, &items, `SELECT `+inventoryColumns+` FROM inventory ORDER BY name ASC, lot ASC, id ASC`)
	return items, err
}

func (r InventoryRepository) Get(ctx context.Context, id string) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := sqlx.GetContext(ctx, r.DB, &item, r.DB.Rebind(`SELECT `+inventoryColumns+` FROM inventory WHERE id = ?`), id)
	return item, notFound(err)
}

func (r InventoryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, r.DB, &n, `SELECT COUNT(*) FROM inventory`)
	return n, err
}

// Create inserts item, assigning an id and timestamps when they are empty.
func (r InventoryRepository) Create(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	r.fill(&item)
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`INSERT INTO inventory (`+inventoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`), inventoryArgs(item)...)
	if IsDuplicate(err) {
		return item, ErrDuplicate
	}
	return item, err
}

// CreateBatch inserts all items with one multi-row statement.
func (r InventoryRepository) CreateBatch(ctx context.Context, items []domain.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}
	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*12)
	for i := range items {
		r.fill(&items[i])
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, inventoryArgs(items[i])...)
	}
	query := `INSERT INTO inventory (` + inventoryColumns + `) VALUES ` + strings.Join(placeholders, ", ")
	if _, err := r.DB.ExecContext(ctx, r.DB.Rebind(query), args...); err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert batch of %d: %w", len(items), err)
	}
	return nil
}

// Update replaces the editable fields of an existing lot and bumps updated_at.
func (r InventoryRepository) Update(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	item.UpdatedAt = r.now()
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE inventory
		SET name = ?, lot = ?, quantity = ?, expiry_date = ?, status = ?, warehouse = ?, code = ?, origin = ?, updated_at = ?
		WHERE id = ?`),
		item.Name, item.Lot, item.Quantity, item.ExpiryDate, string(item.Status), item.Warehouse, item.Code, item.Origin, item.UpdatedAt, item.ID)
	if err != nil {
		return item, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return item, ErrNotFound
	}
	return r.Get(ctx, item.ID)
}

func (r InventoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM inventory WHERE id = ?`), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r InventoryRepository) fill(item *domain.InventoryItem) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	ts := r.now()
	if item.CreatedAt == "" {
		item.CreatedAt = ts
	}
	if item.UpdatedAt == "" {
		item.UpdatedAt = item.CreatedAt
	}
}

func inventoryArgs(item domain.InventoryItem) []any {
	return []any{
		item.ID, item.Name, item.Lot, item.Quantity, item.ExpiryDate, string(item.Status),
		item.Warehouse, item.Code, item.Origin, item.CreatedBy, item.CreatedAt, item.UpdatedAt,
	}
}
