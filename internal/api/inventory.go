package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/export"
	"medinv/m/internal/inventory"
	"medinv/m/internal/service"
)

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	filter, order, err := inventoryQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.inventory.List(r.Context(), filter, order)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to list inventory")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) suggestInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to search inventory")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) exportInventory(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	filter, order, err := inventoryQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.inventory.List(r.Context(), filter, order)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to export inventory")
		return
	}
	h.respondFile(w, r, export.InventoryTable(items), format, "inventario")
}

func (h *Handler) getInventory(w http.ResponseWriter, r *http.Request) {
	item, err := h.inventory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load inventory item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) createInventory(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := auth.FromContext(r.Context())
	item, err := h.inventory.Create(r.Context(), principal, in)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to create inventory item")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *Handler) updateInventory(w http.ResponseWriter, r *http.Request) {
	var in service.ItemInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := auth.FromContext(r.Context())
	item, err := h.inventory.Update(r.Context(), principal, chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to update inventory item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) deleteInventory(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	if err := h.inventory.Delete(r.Context(), principal, chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err, "unable to delete inventory item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// inventoryQuery reads q, status, warehouse, expiring_within, sort and order.
func inventoryQuery(r *http.Request) (inventory.Filter, inventory.Sort, error) {
	q := r.URL.Query()
	f := inventory.Filter{Search: q.Get("q")}
	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return f, inventory.Sort{}, fmt.Errorf("unknown status %q", raw)
		}
		f.Status = status
	}
	// Stored rows carry canonical names, so the match is exact.
	f.Warehouse = q.Get("warehouse")
	if raw := q.Get("expiring_within"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return f, inventory.Sort{}, fmt.Errorf("expiring_within must be a number of days")
		}
		f.ExpiringWithin = &days
	}
	order := inventory.Sort{
		Column: q.Get("sort"),
		Desc:   strings.EqualFold(q.Get("order"), "desc"),
	}
	return f, order, nil
}

func exportFormat(r *http.Request) (string, bool) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "":
		return export.FormatCSV, true
	case export.FormatCSV, export.FormatXLSX:
		return format, true
	case "excel":
		return export.FormatXLSX, true
	}
	return "", false
}

func (h *Handler) respondFile(w http.ResponseWriter, r *http.Request, t export.Table, format, basename string) {
	body, contentType, err := export.Encode(t, format)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to export "+basename)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", basename+"."+export.Extension(format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
