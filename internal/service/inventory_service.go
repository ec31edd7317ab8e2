package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/inventory"
	"medinv/m/internal/metrics"
	"medinv/m/internal/repository"
)

// ItemInput is the create and edit form.
type ItemInput struct {
	Name       string `json:"name"`
	Lot        string `json:"lot"`
	Quantity   *int64 `json:"quantity"`
	ExpiryDate string `json:"expiry_date"`
	Status     string `json:"status"`
	Warehouse  string `json:"warehouse"`
	Code       string `json:"code"`
	Origin     string `json:"origin"`
}

// InventoryService owns inventory mutations and their audit entries.
type InventoryService struct {
	DB                *sqlx.DB
	Logger            *zap.Logger
	Metrics           *metrics.Collector
	LowStockThreshold int64
	Now               func() time.Time
}

func NewInventoryService(db *sqlx.DB, logger *zap.Logger, m *metrics.Collector, lowStock int64) *InventoryService {
	return &InventoryService{DB: db, Logger: logger, Metrics: m, LowStockThreshold: lowStock, Now: time.Now}
}

func (s *InventoryService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *InventoryService) List(ctx context.Context, f inventory.Filter, order inventory.Sort) ([]domain.InventoryItem, error) {
	items, err := repository.NewInventoryRepository(s.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	if f.Empty() && order.Column == "" {
		return items, nil
	}
	return inventory.Apply(items, f, order, s.now()), nil
}

func (s *InventoryService) Suggest(ctx context.Context, q string) ([]domain.InventoryItem, error) {
	items, err := repository.NewInventoryRepository(s.DB).List(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.Suggest(items, q), nil
}

func (s *InventoryService) Get(ctx context.Context, id string) (domain.InventoryItem, error) {
	return repository.NewInventoryRepository(s.DB).Get(ctx, id)
}

// Create validates in, stores the lot and records an "add" activity.
func (s *InventoryService) Create(ctx context.Context, actor auth.Principal, in ItemInput) (domain.InventoryItem, error) {
	item, err := s.validate(in, true)
	if err != nil {
		return item, err
	}
	item.CreatedBy = actor.ID

	err = withTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		created, err := repository.NewInventoryRepository(tx).Create(ctx, item)
		if err != nil {
			return err
		}
		item = created
		_, err = repository.NewActivityRepository(tx).Create(ctx, inventoryActivity(actor, domain.ActionAdd, item,
			fmt.Sprintf("Nuevo medicamento: %s (Lote: %s)", item.Name, item.Lot), nil))
		return err
	})
	if err != nil {
		return item, err
	}
	s.recorded("create")
	return item, nil
}

// Update replaces the editable fields of id and records an "update" activity
// carrying the field-level diff.
func (s *InventoryService) Update(ctx context.Context, actor auth.Principal, id string, in ItemInput) (domain.InventoryItem, error) {
	next, err := s.validate(in, false)
	if err != nil {
		return next, err
	}

	err = withTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		repo := repository.NewInventoryRepository(tx)
		prev, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		next.ID = prev.ID
		next.CreatedBy = prev.CreatedBy
		next.CreatedAt = prev.CreatedAt
		changes := Diff(prev, next)

		updated, err := repo.Update(ctx, next)
		if err != nil {
			return err
		}
		next = updated
		_, err = repository.NewActivityRepository(tx).Create(ctx, inventoryActivity(actor, domain.ActionUpdate, next, ChangeSummary(changes), changes))
		return err
	})
	if err != nil {
		return next, err
	}
	s.recorded("update")
	return next, nil
}

// Delete removes exactly one lot and records a "remove" activity. Nothing is
// written when id does not exist.
func (s *InventoryService) Delete(ctx context.Context, actor auth.Principal, id string) error {
	err := withTx(ctx, s.DB, func(tx *sqlx.Tx) error {
		repo := repository.NewInventoryRepository(tx)
		item, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, id); err != nil {
			return err
		}
		a := inventoryActivity(actor, domain.ActionRemove, item, "Eliminación de "+item.Name, nil)
		a.Quantity = nil
		_, err = repository.NewActivityRepository(tx).Create(ctx, a)
		return err
	})
	if err != nil {
		return err
	}
	s.recorded("delete")
	return nil
}

func (s *InventoryService) recorded(op string) {
	s.Metrics.InventoryMutation(op)
	s.Metrics.ActivityRecorded(string(domain.ActivityInventory))
	if s.Logger != nil {
		s.Logger.Debug("inventory mutated", zap.String("op", op))
	}
}

func (s *InventoryService) validate(in ItemInput, creating bool) (domain.InventoryItem, error) {
	item := domain.InventoryItem{
		Name:       strings.TrimSpace(in.Name),
		Lot:        strings.TrimSpace(in.Lot),
		ExpiryDate: strings.TrimSpace(in.ExpiryDate),
		Warehouse:  strings.TrimSpace(in.Warehouse),
		Code:       strings.TrimSpace(in.Code),
		Origin:     strings.TrimSpace(in.Origin),
	}
	if utf8.RuneCountInString(item.Name) < 3 {
		return item, invalid("name", "must be at least 3 characters")
	}
	if utf8.RuneCountInString(item.Lot) < 3 {
		return item, invalid("lot", "must be at least 3 characters")
	}
	if in.Quantity == nil {
		return item, invalid("quantity", "is required")
	}
	item.Quantity = *in.Quantity
	minQty := int64(0)
	if creating {
		minQty = 1
	}
	if item.Quantity < minQty {
		return item, invalid("quantity", "must be at least %d", minQty)
	}
	expiry, err := domain.ParseExpiry(item.ExpiryDate)
	if err != nil {
		return item, invalid("expiry_date", "must be a YYYY-MM-DD date")
	}
	if creating && !expiry.After(s.now()) {
		return item, invalid("expiry_date", "must be in the future")
	}
	if !domain.IsWarehouse(item.Warehouse) {
		return item, invalid("warehouse", "must be one of %s", strings.Join(domain.Warehouses, ", "))
	}
	if strings.TrimSpace(in.Status) == "" {
		item.Status = domain.DeriveStatus(item.Quantity, s.LowStockThreshold)
	} else {
		status, ok := domain.ParseStatus(in.Status)
		if !ok {
			return item, invalid("status", "unknown status %q", in.Status)
		}
		item.Status = status
	}
	return item, nil
}

// diffFields lists the editable columns in the order they are reported.
var diffFields = []string{"name", "lot", "quantity", "expiry_date", "status", "warehouse", "code", "origin"}

// Diff returns the editable fields whose value differs between prev and next.
func Diff(prev, next domain.InventoryItem) map[string]domain.FieldChange {
	changes := map[string]domain.FieldChange{}
	values := func(item domain.InventoryItem) map[string]any {
		return map[string]any{
			"name":        item.Name,
			"lot":         item.Lot,
			"quantity":    item.Quantity,
			"expiry_date": item.ExpiryDate,
			"status":      string(item.Status),
			"warehouse":   item.Warehouse,
			"code":        item.Code,
			"origin":      item.Origin,
		}
	}
	before, after := values(prev), values(next)
	for _, field := range diffFields {
		if before[field] != after[field] {
			changes[field] = domain.FieldChange{From: before[field], To: after[field]}
		}
	}
	return changes
}

// ChangeSummary renders the detail line stored with an update.
func ChangeSummary(changes map[string]domain.FieldChange) string {
	var names []string
	for _, field := range diffFields {
		if _, ok := changes[field]; ok {
			names = append(names, field)
		}
	}
	if len(names) == 0 {
		return "No se detectaron cambios"
	}
	return "Campos modificados: " + strings.Join(names, ", ")
}

func inventoryActivity(actor auth.Principal, action string, item domain.InventoryItem, details string, changes map[string]domain.FieldChange) domain.Activity {
	name, warehouse, qty := item.Name, item.Warehouse, item.Quantity
	return domain.Activity{
		UserID:     actor.ID,
		Type:       domain.ActivityInventory,
		Action:     action,
		Medication: &name,
		Quantity:   &qty,
		Warehouse:  &warehouse,
		Details:    &details,
		Changes:    changes,
	}
}
