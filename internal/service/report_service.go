package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"medinv/m/domain"
	"medinv/m/internal/inventory"
	"medinv/m/internal/repository"
)

// ReportService computes the dashboard and report views.
type ReportService struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func NewReportService(db *sqlx.DB) *ReportService {
	return &ReportService{DB: db, Now: time.Now}
}

func (s *ReportService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *ReportService) items(ctx context.Context) ([]domain.InventoryItem, error) {
	return repository.NewInventoryRepository(s.DB).List(ctx)
}

func (s *ReportService) Summary(ctx context.Context) (inventory.Summary, error) {
	items, err := s.items(ctx)
	if err != nil {
		return inventory.Summary{}, err
	}
	return inventory.Summarize(items, s.now()), nil
}

func (s *ReportService) Expiring(ctx context.Context, days int) ([]inventory.ExpiringItem, error) {
	items, err := s.items(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.Expiring(items, days, s.now()), nil
}

func (s *ReportService) Warehouses(ctx context.Context) ([]inventory.WarehouseTotals, error) {
	items, err := s.items(ctx)
	if err != nil {
		return nil, err
	}
	return inventory.ByWarehouse(items), nil
}

// Consumption sums withdraw and dispense quantities per month for the last months.
func (s *ReportService) Consumption(ctx context.Context, months int) ([]inventory.MonthlyConsumption, error) {
	now := s.now()
	acts, err := repository.NewActivityRepository(s.DB).List(ctx, repository.ActivityFilter{
		Actions: []string{domain.ActionWithdraw, domain.ActionDispense},
		Since:   domain.Timestamp(inventory.ConsumptionStart(months, now)),
	})
	if err != nil {
		return nil, err
	}
	return inventory.Consumption(acts, months, now), nil
}
