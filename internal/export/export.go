// Package export renders inventory and activity tables as CSV or XLSX downloads.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"medinv/m/domain"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Table is a fixed-column row list. Every row has len(Header) cells.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

var inventoryHeader = []string{"ID", "Nombre", "Lote", "Cantidad", "Fecha Caducidad", "Estado", "Almacén", "Código", "Origen"}

// InventoryTable lays out lots in the download column order.
func InventoryTable(items []domain.InventoryItem) Table {
	t := Table{Name: "Inventario", Header: inventoryHeader, Rows: make([][]any, 0, len(items))}
	for _, item := range items {
		t.Rows = append(t.Rows, []any{
			item.ID,
			item.Name,
			item.Lot,
			item.Quantity,
			item.ExpiryDate,
			string(item.Status),
			item.Warehouse,
			item.Code,
			item.Origin,
		})
	}
	return t
}

var activityHeader = []string{"ID", "Fecha", "Usuario", "Rol", "Tipo", "Acción", "Medicamento", "Cantidad", "Almacén", "Detalles"}

func ActivityTable(acts []domain.Activity) Table {
	t := Table{Name: "Actividades", Header: activityHeader, Rows: make([][]any, 0, len(acts))}
	for _, a := range acts {
		var qty any = ""
		if a.Quantity != nil {
			qty = *a.Quantity
		}
		t.Rows = append(t.Rows, []any{
			a.ID,
			a.CreatedAt,
			a.UserName,
			a.UserRole,
			string(a.Type),
			a.Action,
			deref(a.Medication),
			qty,
			deref(a.Warehouse),
			deref(a.Details),
		})
	}
	return t
}

// CSV encodes t with RFC 4180 quoting.
func CSV(t Table) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	record := make([]string, len(t.Header))
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Header))
		}
		for c, v := range row {
			record[c] = cellString(v)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// XLSX renders t on a single sheet with a bold header row.
func XLSX(t Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := t.Name
	if sheet == "" {
		sheet = "Sheet1"
	}
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}
	f.SetActiveSheet(index)

	for c, v := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return nil, err
		}
	}
	for r, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(t.Header))
		}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	last, _ := excelize.ColumnNumberToName(len(t.Header))
	_ = f.SetColWidth(sheet, "A", last, 18)
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	if err == nil {
		_ = f.SetCellStyle(sheet, "A1", last+"1", style)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode dispatches on format and returns the body, content type and file extension.
func Encode(t Table, format string) ([]byte, string, error) {
	switch format {
	case "", FormatCSV:
		data, err := CSV(t)
		return data, "text/csv; charset=utf-8", err
	case FormatXLSX, "excel":
		data, err := XLSX(t)
		return data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", err
	}
	return nil, "", fmt.Errorf("unsupported format %q", format)
}

// Extension maps a requested format to its file extension.
func Extension(format string) string {
	if format == FormatXLSX || format == "excel" {
		return FormatXLSX
	}
	return FormatCSV
}

func cellString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
