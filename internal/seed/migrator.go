package seed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/database"
	"medinv/m/internal/metrics"
	"medinv/m/internal/repository"
)

// BatchSize bounds the rows per INSERT statement.
const BatchSize = 50

// Result is the body returned by the migration endpoint.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// Migrator performs the one-time bulk load of the seed inventory.
type Migrator struct {
	DB      *sqlx.DB
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Load    func() ([]domain.InventoryItem, error)

	mu sync.Mutex
}

func NewMigrator(db *sqlx.DB, logger *zap.Logger, m *metrics.Collector) *Migrator {
	return &Migrator{DB: db, Logger: logger, Metrics: m, Load: LoadInventory}
}

// Run loads the seed lots when the inventory table is empty. The rows are
// attributed to actor when it is an administrator, otherwise to the oldest
// administrator account. Either every row and the migrate activity are
// written, or nothing is. Concurrent runs are serialized and only the first
// one loads.
func (m *Migrator) Run(ctx context.Context, actor *auth.Principal) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.DB.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// Holds off other processes until commit. SQLite serializes writers itself.
	if database.IsPostgres(m.DB) {
		if _, err := tx.ExecContext(ctx, "LOCK TABLE inventory IN EXCLUSIVE MODE"); err != nil {
			return Result{}, fmt.Errorf("lock inventory: %w", err)
		}
	}

	inv := repository.NewInventoryRepository(tx)
	count, err := inv.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("count inventory: %w", err)
	}
	if count > 0 {
		return Result{Success: false, Message: fmt.Sprintf("Ya existen %d registros en la tabla inventory.", count)}, nil
	}

	adminID, err := resolveAdmin(ctx, tx, actor)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{Success: false, Message: "No se encontró un usuario administrador"}, nil
	}
	if err != nil {
		return Result{}, err
	}

	items, err := m.Load()
	if err != nil {
		return Result{}, fmt.Errorf("load seed data: %w", err)
	}
	for i := range items {
		items[i].CreatedBy = adminID
		if items[i].Origin == "" {
			items[i].Origin = DefaultOrigin
		}
	}

	for start := 0; start < len(items); start += BatchSize {
		end := min(start+BatchSize, len(items))
		if err := inv.CreateBatch(ctx, items[start:end]); err != nil {
			return Result{}, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		m.Logger.Debug("migrated batch", zap.Int("from", start), zap.Int("to", end))
	}

	details := fmt.Sprintf("Migración inicial de %d items de inventario", len(items))
	n := int64(len(items))
	if _, err := repository.NewActivityRepository(tx).Create(ctx, domain.Activity{
		UserID:   adminID,
		Type:     domain.ActivitySystem,
		Action:   domain.ActionMigrate,
		Quantity: &n,
		Details:  &details,
	}); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}

	m.Metrics.ActivityRecorded(string(domain.ActivitySystem))
	m.Logger.Info("inventory migrated", zap.Int("count", len(items)), zap.String("admin_id", adminID))
	return Result{Success: true, Message: "Migración completada con éxito", Count: len(items)}, nil
}

func resolveAdmin(ctx context.Context, db sqlx.ExtContext, actor *auth.Principal) (string, error) {
	if actor != nil && actor.Role == domain.RoleAdmin && actor.ID != "" {
		return actor.ID, nil
	}
	u, err := repository.NewUserRepository(db).FirstByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}
