package api

import (
	"net/http"
	"strconv"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/export"
	"medinv/m/internal/service"
)

func activityQuery(r *http.Request) (service.ActivityQuery, bool) {
	q := r.URL.Query()
	out := service.ActivityQuery{Search: q.Get("q")}
	if raw := q.Get("type"); raw != "" && raw != "all" {
		out.Type = domain.ActivityType(raw)
		if !out.Type.Valid() {
			return out, false
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return out, false
		}
		out.Limit = n
	}
	return out, true
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	query, ok := activityQuery(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid type or limit")
		return
	}
	list, err := h.activities.List(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to list activities")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var in service.ActivityInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := auth.FromContext(r.Context())
	a, err := h.activities.Record(r.Context(), principal, in)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to record activity")
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handler) exportActivities(w http.ResponseWriter, r *http.Request) {
	format, ok := exportFormat(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	query, ok := activityQuery(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid type or limit")
		return
	}
	list, err := h.activities.List(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to export activities")
		return
	}
	h.respondFile(w, r, export.ActivityTable(list), format, "actividades")
}
