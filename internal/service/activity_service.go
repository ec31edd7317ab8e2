package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/metrics"
	"medinv/m/internal/repository"
)

// DefaultActivityLimit applies when a listing does not ask for a size.
const DefaultActivityLimit = 100

// UserDirectory resolves users that do not live in the users table.
type UserDirectory interface {
	Lookup(id string) (domain.User, bool)
}

type ActivityQuery struct {
	Type   domain.ActivityType
	Search string
	Limit  int
}

// ActivityInput is the manual "add activity" form.
type ActivityInput struct {
	Action     string `json:"action"`
	Medication string `json:"medication"`
	Quantity   *int64 `json:"quantity"`
	Warehouse  string `json:"warehouse"`
	Details    string `json:"details"`
}

type ActivityService struct {
	DB        *sqlx.DB
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	Directory UserDirectory
}

func NewActivityService(db *sqlx.DB, logger *zap.Logger, m *metrics.Collector) *ActivityService {
	return &ActivityService{DB: db, Logger: logger, Metrics: m}
}

// List returns entries newest first. Search matches user name, medication,
// warehouse and details case-insensitively.
func (s *ActivityService) List(ctx context.Context, q ActivityQuery) ([]domain.Activity, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))
	filter := repository.ActivityFilter{Type: q.Type}
	if search == "" {
		filter.Limit = limit
	}
	list, err := repository.NewActivityRepository(s.DB).List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(list))
	for _, a := range list {
		a = s.resolveUser(a)
		if search != "" && !activityMatches(a, search) {
			continue
		}
		out = append(out, a)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// Record stores a manually entered inventory movement.
func (s *ActivityService) Record(ctx context.Context, actor auth.Principal, in ActivityInput) (domain.Activity, error) {
	switch in.Action {
	case domain.ActionWithdraw, domain.ActionAdd, domain.ActionUpdate:
	default:
		return domain.Activity{}, invalid("action", "must be withdraw, add or update")
	}
	medication := strings.TrimSpace(in.Medication)
	if medication == "" {
		return domain.Activity{}, invalid("medication", "is required")
	}
	if in.Quantity == nil || *in.Quantity < 1 {
		return domain.Activity{}, invalid("quantity", "must be at least 1")
	}
	warehouse := strings.TrimSpace(in.Warehouse)
	if warehouse != "" && !domain.IsWarehouse(warehouse) {
		return domain.Activity{}, invalid("warehouse", "must be one of %s", strings.Join(domain.Warehouses, ", "))
	}
	a := domain.Activity{
		UserID:     actor.ID,
		Type:       domain.ActivityInventory,
		Action:     in.Action,
		Medication: &medication,
		Quantity:   in.Quantity,
	}
	if warehouse != "" {
		a.Warehouse = &warehouse
	}
	if d := strings.TrimSpace(in.Details); d != "" {
		a.Details = &d
	}
	return s.append(ctx, actor, a)
}

// RecordSession stores a login or logout.
func (s *ActivityService) RecordSession(ctx context.Context, actor auth.Principal, typ domain.ActivityType) (domain.Activity, error) {
	action := domain.ActionLogin
	if typ == domain.ActivityLogout {
		action = domain.ActionLogout
	}
	return s.append(ctx, actor, domain.Activity{UserID: actor.ID, Type: typ, Action: action})
}

// RecordDispense stores the audit entry of a dispensed feed record.
func (s *ActivityService) RecordDispense(ctx context.Context, actor auth.Principal, r domain.DispenseRecord) (domain.Activity, error) {
	medication := r.Medication
	qty := r.Vials
	details := "Surtimiento " + r.Folio + " (Lote: " + r.Lot + ")"
	return s.append(ctx, actor, domain.Activity{
		UserID:     actor.ID,
		Type:       domain.ActivityInventory,
		Action:     domain.ActionDispense,
		Medication: &medication,
		Quantity:   &qty,
		Details:    &details,
	})
}

func (s *ActivityService) append(ctx context.Context, actor auth.Principal, a domain.Activity) (domain.Activity, error) {
	created, err := repository.NewActivityRepository(s.DB).Create(ctx, a)
	if err != nil {
		return created, err
	}
	s.Metrics.ActivityRecorded(string(created.Type))
	created.UserName = actor.Name
	created.UserRole = string(actor.Role)
	return created, nil
}

func (s *ActivityService) resolveUser(a domain.Activity) domain.Activity {
	if a.UserName != "" || s.Directory == nil {
		return a
	}
	if u, ok := s.Directory.Lookup(a.UserID); ok {
		a.UserName = u.Name
		a.UserRole = string(u.Role)
	}
	return a
}

func activityMatches(a domain.Activity, q string) bool {
	fields := []string{a.UserName}
	for _, p := range []*string{a.Medication, a.Warehouse, a.Details} {
		if p != nil {
			fields = append(fields, *p)
		}
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
