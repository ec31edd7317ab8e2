package api

import (
	"net/http"

	"go.uber.org/zap"

	"medinv/m/internal/auth"
	"medinv/m/internal/service"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in service.UserInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.users.Create(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to create user")
		return
	}
	principal, _ := auth.FromContext(r.Context())
	h.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)), zap.String("by", principal.ID))
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) migrate(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	res, err := h.migrator.Run(r.Context(), &principal)
	if err != nil {
		h.logger.Error("migration failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Error durante la migración"})
		return
	}
	respondJSON(w, http.StatusOK, res)
}
