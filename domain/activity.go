package domain

type ActivityType string

const (
	ActivityInventory ActivityType = "inventory"
	ActivitySystem    ActivityType = "system"
	ActivityLogin     ActivityType = "login"
	ActivityLogout    ActivityType = "logout"
)

func (t ActivityType) Valid() bool {
	switch t {
	case ActivityInventory, ActivitySystem, ActivityLogin, ActivityLogout:
		return true
	}
	return false
}

// Actions recorded against activities.
const (
	ActionAdd      = "add"
	ActionUpdate   = "update"
	ActionRemove   = "remove"
	ActionWithdraw = "withdraw"
	ActionDispense = "dispense"
	ActionMigrate  = "migrate"
	ActionLogin    = "login"
	ActionLogout   = "logout"
)

// FieldChange holds the before and after value of one edited field.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Activity is one audit-log entry. Entries are append-only.
type Activity struct {
	ID         string                 `db:"id" json:"id"`
	UserID     string                 `db:"user_id" json:"user_id"`
	Type       ActivityType           `db:"type" json:"type"`
	Action     string                 `db:"action" json:"action"`
	Medication *string                `db:"medication" json:"medication,omitempty"`
	Quantity   *int64                 `db:"quantity" json:"quantity,omitempty"`
	Warehouse  *string                `db:"warehouse" json:"warehouse,omitempty"`
	Details    *string                `db:"details" json:"details,omitempty"`
	Changes    map[string]FieldChange `db:"-" json:"changes,omitempty"`
	CreatedAt  string                 `db:"created_at" json:"created_at"`

	UserName string `db:"user_name" json:"user_name,omitempty"`
	UserRole string `db:"user_role" json:"user_role,omitempty"`
}
