package api

import (
	"net/http"
	"strconv"

	"medinv/m/internal/inventory"
)

const defaultConsumptionMonths = 6

func (h *Handler) reportSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Summary(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to build summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) reportExpiring(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(r, "days", inventory.ExpiringSoonDays)
	if !ok {
		respondError(w, http.StatusBadRequest, "days must be a number")
		return
	}
	list, err := h.reports.Expiring(r.Context(), days)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to list expiring items")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) reportWarehouses(w http.ResponseWriter, r *http.Request) {
	totals, err := h.reports.Warehouses(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to build warehouse report")
		return
	}
	respondJSON(w, http.StatusOK, totals)
}

func (h *Handler) reportConsumption(w http.ResponseWriter, r *http.Request) {
	months, ok := intParam(r, "months", defaultConsumptionMonths)
	if !ok || months < 1 || months > 24 {
		respondError(w, http.StatusBadRequest, "months must be between 1 and 24")
		return
	}
	series, err := h.reports.Consumption(r.Context(), months)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to build consumption report")
		return
	}
	respondJSON(w, http.StatusOK, series)
}

func intParam(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}
