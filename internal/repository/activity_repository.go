package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medinv/m/domain"
)

// ActivityRepository appends to and reads the audit log.
type ActivityRepository struct {
	DB  sqlx.ExtContext
	Now func() time.Time
}

func NewActivityRepository(db sqlx.ExtContext) ActivityRepository {
	return ActivityRepository{DB: db, Now: time.Now}
}

// ActivityFilter narrows List. Zero values mean no constraint.
type ActivityFilter struct {
	Limit   int
	Type    domain.ActivityType
	Actions []string
	Since   string
	Until   string
}

type activityRow struct {
	domain.Activity
	ChangesJSON sql.NullString `db:"changes"`
}

// Create appends one entry. Entries are never updated afterwards.
func (r ActivityRepository) Create(ctx context.Context, a domain.Activity) (domain.Activity, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt == "" {
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		a.CreatedAt = domain.Timestamp(now())
	}
	var changes sql.NullString
	if len(a.Changes) > 0 {
		raw, err := json.Marshal(a.Changes)
		if err != nil {
			return a, fmt.Errorf("encode changes: %w", err)
		}
		changes = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`INSERT INTO activities
		(id, user_id, type, action, medication, quantity, warehouse, details, changes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.UserID, string(a.Type), a.Action, a.Medication, a.Quantity, a.Warehouse, a.Details, changes, a.CreatedAt)
	return a, err
}

// List returns entries newest first, joined with the acting user's name and role.
func (r ActivityRepository) List(ctx context.Context, f ActivityFilter) ([]domain.Activity, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "a.type = ?")
		args = append(args, string(f.Type))
	}
	if len(f.Actions) > 0 {
		where = append(where, "a.action IN (?)")
		args = append(args, f.Actions)
	}
	if f.Since != "" {
		where = append(where, "a.created_at >= ?")
		args = append(args, f.Since)
	}
	if f.Until != "" {
		where = append(where, "a.created_at < ?")
		args = append(args, f.Until)
	}

	query := `SELECT a.id, a.user_id, a.type, a.action, a.medication, a.quantity, a.warehouse, a.details, a.changes, a.created_at,
		COALESCE(u.name, '') AS user_name, COALESCE(u.role, '') AS user_role
		FROM activities a
		LEFT JOIN users u ON u.id = a.user_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.created_at DESC, a.id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	if len(f.Actions) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return nil, err
		}
	}

	var rows []activityRow
	if err := sqlx.SelectContext(ctx, r.DB, &rows, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(rows))
	for _, row := range rows {
		a := row.Activity
		if row.ChangesJSON.Valid && row.ChangesJSON.String != "" {
			if err := json.Unmarshal([]byte(row.ChangesJSON.String), &a.Changes); err != nil {
				return nil, fmt.Errorf("decode changes of %s: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, nil
}
