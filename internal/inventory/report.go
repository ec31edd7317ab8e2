package inventory

import (
	"sort"
	"time"

	"medinv/m/domain"
)

// ExpiringSoonDays is the dashboard's "por vencer" horizon.
const ExpiringSoonDays = 90

// Summary holds the dashboard counters.
type Summary struct {
	TotalUnits   int64 `json:"total_units"`
	TotalLots    int   `json:"total_lots"`
	LowStock     int   `json:"low_stock"`
	Normal       int   `json:"normal"`
	Available    int   `json:"available"`
	OutOfStock   int   `json:"out_of_stock"`
	ExpiringSoon int   `json:"expiring_soon"`
	Expired      int   `json:"expired"`
}

// Summarize counts units and lots by status and by computed expiry.
func Summarize(items []domain.InventoryItem, now time.Time) Summary {
	var s Summary
	for _, item := range items {
		s.TotalUnits += item.Quantity
		s.TotalLots++
		switch item.Status {
		case domain.StatusLowStock:
			s.LowStock++
		case domain.StatusNormal:
			s.Normal++
		case domain.StatusAvailable:
			s.Available++
		case domain.StatusOutOfStock:
			s.OutOfStock++
		}
		days, err := domain.DaysUntil(item.ExpiryDate, now)
		if err != nil {
			continue
		}
		switch {
		case days <= 0:
			s.Expired++
		case days <= ExpiringSoonDays:
			s.ExpiringSoon++
		}
	}
	return s
}

// ExpiringItem is a lot annotated with its distance to expiry.
type ExpiringItem struct {
	domain.InventoryItem
	Days int               `json:"days"`
	Band domain.ExpiryBand `json:"band"`
}

// Expiring lists lots expiring within days (expired ones included), soonest first.
func Expiring(items []domain.InventoryItem, within int, now time.Time) []ExpiringItem {
	out := []ExpiringItem{}
	for _, item := range items {
		days, err := domain.DaysUntil(item.ExpiryDate, now)
		if err != nil || days > within {
			continue
		}
		out = append(out, ExpiringItem{InventoryItem: item, Days: days, Band: domain.BandFor(days)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Days < out[j].Days })
	return out
}

// WarehouseTotals is one row of the warehouse distribution chart.
type WarehouseTotals struct {
	Warehouse string `json:"warehouse"`
	Lots      int    `json:"lots"`
	Units     int64  `json:"units"`
}

// ByWarehouse totals lots and units for every canonical warehouse, in display
// order. Lots in unknown warehouses are folded with MapWarehouse.
func ByWarehouse(items []domain.InventoryItem) []WarehouseTotals {
	index := make(map[string]int, len(domain.Warehouses))
	out := make([]WarehouseTotals, len(domain.Warehouses))
	for i, w := range domain.Warehouses {
		index[w] = i
		out[i] = WarehouseTotals{Warehouse: w}
	}
	for _, item := range items {
		w := item.Warehouse
		if !domain.IsWarehouse(w) {
			w = domain.MapWarehouse(w)
		}
		row := &out[index[w]]
		row.Lots++
		row.Units += item.Quantity
	}
	return out
}

// MonthlyConsumption is the quantity drawn from one warehouse in one month.
type MonthlyConsumption struct {
	Month      string           `json:"month"`
	Warehouses map[string]int64 `json:"warehouses"`
	Total      int64            `json:"total"`
}

// Consumption buckets withdraw and dispense activities by calendar month (UTC)
// for the last n months ending with now's month. Months without activity are
// still present.
func Consumption(activities []domain.Activity, months int, now time.Time) []MonthlyConsumption {
	if months <= 0 {
		months = 1
	}
	start := ConsumptionStart(months, now)
	out := make([]MonthlyConsumption, months)
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		key := start.AddDate(0, i, 0).Format("2006-01")
		index[key] = i
		out[i] = MonthlyConsumption{Month: key, Warehouses: map[string]int64{}}
	}
	for _, a := range activities {
		if a.Action != domain.ActionWithdraw && a.Action != domain.ActionDispense {
			continue
		}
		if a.Quantity == nil {
			continue
		}
		ts, err := domain.ParseTimestamp(a.CreatedAt)
		if err != nil {
			continue
		}
		i, ok := index[ts.Format("2006-01")]
		if !ok {
			continue
		}
		w := domain.WarehouseSupplies
		if a.Warehouse != nil && *a.Warehouse != "" {
			w = domain.MapWarehouse(*a.Warehouse)
		}
		out[i].Warehouses[w] += *a.Quantity
		out[i].Total += *a.Quantity
	}
	return out
}

// ConsumptionStart is the first instant covered by Consumption for the same arguments.
func ConsumptionStart(months int, now time.Time) time.Time {
	if months <= 0 {
		months = 1
	}
	return time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
}
