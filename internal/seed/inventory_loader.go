package seed

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"medinv/m/domain"
)

//go:embed assets/inventory.csv
var inventoryCSV []byte

// DefaultOrigin is stamped on seed lots that carry no origin of their own.
const DefaultOrigin = "Migración"

// LoadInventory parses the embedded seed dataset.
func LoadInventory() ([]domain.InventoryItem, error) {
	return ParseInventory(bytes.NewReader(inventoryCSV))
}

// ParseInventory reads rows of name,lot,quantity,expiry_date,status,warehouse,code,origin.
// Legacy warehouse names are folded into the canonical buckets and display
// labels are mapped onto statuses.
func ParseInventory(r io.Reader) ([]domain.InventoryItem, error) {
	reader := csv.NewReader(r)
	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read inventory header: %w", err)
	}

	var items []domain.InventoryItem
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) < 6 {
			return nil, fmt.Errorf("line %d: expected at least 6 columns, got %d", line, len(record))
		}
		name := strings.TrimSpace(record[0])
		if name == "" {
			continue
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(record[2]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: quantity: %w", line, err)
		}
		expiry := strings.TrimSpace(record[3])
		if _, err := domain.ParseExpiry(expiry); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		status, ok := domain.ParseStatus(record[4])
		if !ok {
			return nil, fmt.Errorf("line %d: unknown status %q", line, record[4])
		}
		item := domain.InventoryItem{
			Name:       name,
			Lot:        strings.TrimSpace(record[1]),
			Quantity:   qty,
			ExpiryDate: expiry,
			Status:     status,
			Warehouse:  domain.MapWarehouse(strings.TrimSpace(record[5])),
			Origin:     DefaultOrigin,
		}
		if len(record) > 6 {
			item.Code = strings.TrimSpace(record[6])
		}
		if len(record) > 7 && strings.TrimSpace(record[7]) != "" {
			item.Origin = strings.TrimSpace(record[7])
		}
		items = append(items, item)
	}
	return items, nil
}
