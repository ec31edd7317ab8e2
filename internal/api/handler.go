package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"medinv/m/internal/auth"
	"medinv/m/internal/database"
	"medinv/m/internal/dispense"
	"medinv/m/internal/logging"
	"medinv/m/internal/metrics"
	"medinv/m/internal/repository"
	"medinv/m/internal/seed"
	"medinv/m/internal/service"
)

// Options carries everything the HTTP layer needs.
type Options struct {
	DB                *sqlx.DB
	Logger            *zap.Logger
	Metrics           *metrics.Collector
	Authenticator     auth.Authenticator
	Tokens            *auth.Tokens
	Feed              *dispense.Feed
	LowStockThreshold int64
	CORSOrigins       []string
	RateLimit         int
	RequestTimeout    time.Duration
	Now               func() time.Time
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db      *sqlx.DB
	logger  *zap.Logger
	metrics *metrics.Collector
	authn   auth.Authenticator
	tokens  *auth.Tokens
	feed    *dispense.Feed

	inventory  *service.InventoryService
	activities *service.ActivityService
	reports    *service.ReportService
	users      *service.UserService
	migrator   *seed.Migrator

	corsOrigins    []string
	rateLimit      int
	requestTimeout time.Duration
}

// New constructs a Handler and its services.
func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		db:             opts.DB,
		logger:         logger,
		metrics:        opts.Metrics,
		authn:          opts.Authenticator,
		tokens:         opts.Tokens,
		feed:           opts.Feed,
		inventory:      service.NewInventoryService(opts.DB, logger, opts.Metrics, opts.LowStockThreshold),
		activities:     service.NewActivityService(opts.DB, logger, opts.Metrics),
		reports:        service.NewReportService(opts.DB),
		users:          service.NewUserService(opts.DB),
		migrator:       seed.NewMigrator(opts.DB, logger, opts.Metrics),
		corsOrigins:    opts.CORSOrigins,
		rateLimit:      opts.RateLimit,
		requestTimeout: opts.RequestTimeout,
	}
	if dir, ok := opts.Authenticator.(service.UserDirectory); ok {
		h.activities.Directory = dir
	}
	if opts.Now != nil {
		h.inventory.Now = opts.Now
		h.reports.Now = opts.Now
	}
	return h
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	origins := h.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	if h.rateLimit > 0 {
		r.Use(httprate.LimitByIP(h.rateLimit, time.Minute))
	}

	r.Get("/health", h.health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/logout", h.logout)
			protected.Get("/me", h.me)
			protected.Post("/password", h.changePassword)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)
		if h.requestTimeout > 0 {
			pr.Use(middleware.Timeout(h.requestTimeout))
		}

		pr.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.listInventory)
			r.Post("/", h.createInventory)
			r.Get("/suggest", h.suggestInventory)
			r.Get("/export", h.exportInventory)
			r.Get("/{id}", h.getInventory)
			r.Put("/{id}", h.updateInventory)
			r.With(requireRole(roleAdmin, rolePharmacist)).Delete("/{id}", h.deleteInventory)
		})

		pr.Route("/activities", func(r chi.Router) {
			r.Get("/", h.listActivities)
			r.Post("/", h.createActivity)
			r.With(requireRole(roleAdmin)).Get("/export", h.exportActivities)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.reportSummary)
			r.Get("/expiring", h.reportExpiring)
			r.Get("/warehouses", h.reportWarehouses)
			r.Get("/consumption", h.reportConsumption)
		})

		pr.Route("/users", func(r chi.Router) {
			r.Use(requireRole(roleAdmin))
			r.Get("/", h.listUsers)
			r.Post("/", h.createUser)
		})

		pr.With(requireRole(roleAdmin)).Post("/api/migrate", h.migrate)
	})

	r.Route("/dispensing", func(r chi.Router) {
		r.Use(h.authMiddleware)
		// The websocket stream must not sit behind the request timeout.
		r.Get("/stream", h.dispensingStream)
		r.Group(func(r chi.Router) {
			if h.requestTimeout > 0 {
				r.Use(middleware.Timeout(h.requestTimeout))
			}
			r.Get("/", h.dispensingSnapshot)
			r.Post("/pause", h.pauseDispensing)
			r.Post("/resume", h.resumeDispensing)
			r.Post("/{folio}/dispensed", h.markDispensed)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := database.Ping(r.Context(), h.db); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps known sentinels to statuses. Anything else is logged
// and answered with the generic message for the operation.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, generic string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrDuplicate):
		respondError(w, http.StatusConflict, "already exists")
	default:
		h.logger.Error(generic, zap.Error(err), zap.String("request_id", middleware.GetReqID(r.Context())))
		respondError(w, http.StatusInternalServerError, generic)
	}
}
