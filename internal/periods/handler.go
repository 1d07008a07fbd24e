package periods

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-his/meridian/internal/platform/httpx"
	"github.com/meridian-his/meridian/internal/shared"
)

// Handler exposes the period lock over JSON.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the periods HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches period lock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/lock", h.getLock)
	r.Post("/lock/advance", h.advanceLock)
}

type advanceLockRequest struct {
	LockDate string `json:"lock_date" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) getLock(w http.ResponseWriter, r *http.Request) {
	lock, err := h.service.GetLock(r.Context(), shared.TenantFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, ErrLockNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get lock", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, lock)
}

func (h *Handler) advanceLock(w http.ResponseWriter, r *http.Request) {
	var req advanceLockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lockDate, _ := time.Parse("2006-01-02", req.LockDate)
	lock, err := h.service.AdvanceLock(r.Context(), AdvanceLockInput{
		TenantID: shared.TenantFromContext(r.Context()),
		LockDate: lockDate,
		ActorID:  shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		if errors.Is(err, ErrLockRegression) {
			httpx.Problem(w, http.StatusConflict, "Lock Regression", err.Error())
			return
		}
		h.logger.Error("advance lock", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, lock)
}
