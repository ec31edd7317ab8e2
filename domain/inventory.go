package domain

// InventoryItem is one tracked medication lot.
type InventoryItem struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Lot        string `db:"lot" json:"lot"`
	Quantity   int64  `db:"quantity" json:"quantity"`
	ExpiryDate string `db:"expiry_date" json:"expiry_date"`
	Status     Status `db:"status" json:"status"`
	Warehouse  string `db:"warehouse" json:"warehouse"`
	Code       string `db:"code" json:"code,omitempty"`
	Origin     string `db:"origin" json:"origin,omitempty"`
	CreatedBy  string `db:"created_by" json:"created_by,omitempty"`
	CreatedAt  string `db:"created_at" json:"created_at"`
	UpdatedAt  string `db:"updated_at" json:"updated_at"`
}

// Status is the stock state shown next to a lot. Two vocabularies coexist:
// availability (available/out_of_stock/expiring_soon/expired) and stock level
// (normal/low_stock).
type Status string

const (
	StatusAvailable    Status = "available"
	StatusOutOfStock   Status = "out_of_stock"
	StatusExpiringSoon Status = "expiring_soon"
	StatusExpired      Status = "expired"
	StatusNormal       Status = "normal"
	StatusLowStock     Status = "low_stock"
)

var statusLabels = map[string]Status{
	"disponible": StatusAvailable,
	"agotado":    StatusOutOfStock,
	"por vencer": StatusExpiringSoon,
	"vencido":    StatusExpired,
	"normal":     StatusNormal,
	"bajo stock": StatusLowStock,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusOutOfStock, StatusExpiringSoon, StatusExpired, StatusNormal, StatusLowStock:
		return true
	}
	return false
}

// ParseStatus accepts a canonical status or one of the legacy display labels
// ("Bajo Stock", "Disponible", ...).
func ParseStatus(raw string) (Status, bool) {
	s := Status(normalizeKey(raw))
	if s.Valid() {
		return s, true
	}
	if mapped, ok := statusLabels[normalizeKey(raw)]; ok {
		return mapped, true
	}
	return "", false
}

// DeriveStatus picks a stock-level status for a lot that was submitted without one.
func DeriveStatus(quantity, lowStockThreshold int64) Status {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity < lowStockThreshold:
		return StatusLowStock
	default:
		return StatusNormal
	}
}
