package domain

import "strings"

// Canonical warehouse buckets.
const (
	WarehouseAntimicrobials = "Antimicrobianos"
	WarehouseOncology       = "Oncológicos"
	WarehouseNPT            = "NPT"
	WarehouseSolutions      = "Soluciones"
	WarehouseSupplies       = "Insumos"
)

// Warehouses lists the canonical buckets in display order.
var Warehouses = []string{
	WarehouseAntimicrobials,
	WarehouseOncology,
	WarehouseNPT,
	WarehouseSolutions,
	WarehouseSupplies,
}

// IsWarehouse reports whether name is one of the canonical buckets.
func IsWarehouse(name string) bool {
	for _, w := range Warehouses {
		if w == name {
			return true
		}
	}
	return false
}

// MapWarehouse folds a legacy storage location ("Almacén NPT",
// "Subalmacén Virtual indirectos ONC", ...) into a canonical bucket.
func MapWarehouse(legacy string) string {
	switch {
	case strings.Contains(legacy, "Antimicrobianos") || strings.Contains(legacy, "ANT"):
		return WarehouseAntimicrobials
	case strings.Contains(legacy, "Oncológicos") || strings.Contains(legacy, "ONC"):
		return WarehouseOncology
	case strings.Contains(legacy, "NPT"):
		return WarehouseNPT
	case strings.Contains(legacy, "Soluciones"):
		return WarehouseSolutions
	default:
		return WarehouseSupplies
	}
}

func normalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
