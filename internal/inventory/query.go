// Package inventory filters, sorts and summarises lists of medication lots.
// Everything here works on in-memory slices and takes "now" from the caller.
package inventory

import (
	"sort"
	"strings"
	"time"

	"medinv/m/domain"
)

// SuggestLimit caps the number of search suggestions.
const SuggestLimit = 10

// Filter selects lots. Zero fields do not constrain.
type Filter struct {
	Search    string
	Status    domain.Status
	Warehouse string
	// ExpiringWithin keeps lots whose days until expiry are at most this value.
	ExpiringWithin *int
}

// Empty reports whether f keeps every lot.
func (f Filter) Empty() bool {
	return strings.TrimSpace(f.Search) == "" && f.Status == "" && f.Warehouse == "" && f.ExpiringWithin == nil
}

// Sort names a column and direction.
type Sort struct {
	Column string
	Desc   bool
}

// Match reports whether item passes f at time now.
func (f Filter) Match(item domain.InventoryItem, now time.Time) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" && !matchesText(item, q) {
		return false
	}
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	if f.Warehouse != "" && item.Warehouse != f.Warehouse {
		return false
	}
	if f.ExpiringWithin != nil {
		days, err := domain.DaysUntil(item.ExpiryDate, now)
		if err != nil || days > *f.ExpiringWithin {
			return false
		}
	}
	return true
}

func matchesText(item domain.InventoryItem, q string) bool {
	return strings.Contains(strings.ToLower(item.Name), q) ||
		strings.Contains(strings.ToLower(item.Lot), q) ||
		strings.Contains(strings.ToLower(item.Code), q)
}

// Apply filters items and then sorts the result. The input slice is not modified.
func Apply(items []domain.InventoryItem, f Filter, s Sort, now time.Time) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		if f.Match(item, now) {
			out = append(out, item)
		}
	}
	SortItems(out, s)
	return out
}

// SortItems sorts in place and is stable. An unknown column leaves the order unchanged.
func SortItems(items []domain.InventoryItem, s Sort) {
	less := lessFor(s.Column)
	if less == nil {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		if s.Desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func lessFor(column string) func(a, b domain.InventoryItem) bool {
	switch column {
	case "name":
		return func(a, b domain.InventoryItem) bool { return foldLess(a.Name, b.Name) }
	case "lot":
		return func(a, b domain.InventoryItem) bool { return foldLess(a.Lot, b.Lot) }
	case "quantity":
		return func(a, b domain.InventoryItem) bool { return a.Quantity < b.Quantity }
	case "expiry_date":
		// YYYY-MM-DD compares correctly as text.
		return func(a, b domain.InventoryItem) bool { return a.ExpiryDate < b.ExpiryDate }
	case "status":
		return func(a, b domain.InventoryItem) bool { return a.Status < b.Status }
	case "warehouse":
		return func(a, b domain.InventoryItem) bool { return foldLess(a.Warehouse, b.Warehouse) }
	case "code":
		return func(a, b domain.InventoryItem) bool { return foldLess(a.Code, b.Code) }
	}
	return nil
}

func foldLess(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

// Suggest returns up to SuggestLimit lots whose name, lot or code contains q,
// in name order. An empty query yields nothing.
func Suggest(items []domain.InventoryItem, q string) []domain.InventoryItem {
	q = strings.ToLower(strings.TrimSpace(q))
	out := []domain.InventoryItem{}
	if q == "" {
		return out
	}
	for _, item := range items {
		if matchesText(item, q) {
			out = append(out, item)
		}
	}
	SortItems(out, Sort{Column: "name"})
	if len(out) > SuggestLimit {
		out = out[:SuggestLimit]
	}
	return out
}
