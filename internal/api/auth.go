package api

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"medinv/m/domain"
	"medinv/m/internal/auth"
	"medinv/m/internal/repository"
	"medinv/m/internal/service"
)

const (
	roleAdmin      = domain.RoleAdmin
	rolePharmacist = domain.RolePharmacist
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.authn.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.LoginAttempt(false)
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Error("authenticate", zap.Error(err))
		}
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.metrics.LoginAttempt(true)

	token, err := h.tokens.Issue(user)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not create token")
		return
	}

	principal := principalFor(user)
	if _, err := h.activities.RecordSession(r.Context(), principal, domain.ActivityLogin); err != nil {
		h.logger.Warn("record login activity", zap.Error(err), zap.String("user_id", user.ID))
	}
	respondJSON(w, http.StatusOK, loginResponse{Token: token, User: user.WithAvatar()})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	if _, err := h.activities.RecordSession(r.Context(), principal, domain.ActivityLogout); err != nil {
		h.respondServiceError(w, r, err, "unable to log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	if dir, ok := h.authn.(service.UserDirectory); ok {
		if u, found := dir.Lookup(principal.ID); found {
			respondJSON(w, http.StatusOK, u.WithAvatar())
			return
		}
	}
	user, err := h.users.Get(r.Context(), principal.ID)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "unknown user")
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	changer, ok := h.authn.(auth.PasswordChanger)
	if !ok {
		respondError(w, http.StatusNotImplemented, auth.ErrPasswordUnsupported.Error())
		return
	}
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := auth.FromContext(r.Context())
	err := changer.ChangePassword(r.Context(), principal.ID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, auth.ErrWeakPassword):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "field": "new_password"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "current password is incorrect", "field": "current_password"})
	default:
		h.respondServiceError(w, r, err, "unable to change password")
	}
}

// authMiddleware accepts the token from the Authorization header, or from the
// token query parameter for websocket clients that cannot set headers.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := h.tokens.Parse(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		p := auth.Principal{ID: claims.UserID, Username: claims.Username, Name: claims.Name, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func requireRole(allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.FromContext(r.Context())
			if !ok || !p.HasRole(allowed...) {
				respondError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalFor(u domain.User) auth.Principal {
	return auth.Principal{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}
