package assets

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-his/meridian/internal/platform/httpx"
	"github.com/meridian-his/meridian/internal/shared"
)

// Handler exposes fixed assets and batch runs over JSON.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the assets HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.register)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.deactivate)
	r.Get("/{id}/schedule", h.schedule)
	r.Post("/runs", h.run)
}

type registerAssetRequest struct {
	Name             string `json:"name" validate:"required"`
	PurchaseDate     string `json:"purchase_date" validate:"required,datetime=2006-01-02"`
	CostCents        int64  `json:"cost_cents" validate:"gte=0"`
	SalvageCents     int64  `json:"salvage_cents" validate:"gte=0"`
	UsefulLifeMonths int    `json:"useful_life_months" validate:"gt=0"`
	Method           string `json:"method" validate:"required,oneof=STRAIGHT_LINE DECLINING_BALANCE"`
}

type runRequest struct {
	Month  string `json:"month" validate:"required,datetime=2006-01"`
	DryRun bool   `json:"dry_run"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerAssetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	purchaseDate, _ := time.Parse("2006-01-02", req.PurchaseDate)
	asset, err := h.service.RegisterAsset(r.Context(), RegisterAssetInput{
		TenantID:         shared.TenantFromContext(r.Context()),
		Name:             req.Name,
		PurchaseDate:     purchaseDate,
		CostCents:        req.CostCents,
		SalvageCents:     req.SalvageCents,
		UsefulLifeMonths: req.UsefulLifeMonths,
		Method:           Method(req.Method),
		ActorID:          shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, asset)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	assetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	asset, err := h.service.GetAsset(r.Context(), shared.TenantFromContext(r.Context()), assetID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, asset)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	assetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	ctx := r.Context()
	if err := h.service.DeactivateAsset(ctx, shared.TenantFromContext(ctx), assetID, shared.ActorFromContext(ctx)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	assetID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be numeric")
		return
	}
	entries, err := h.service.ListSchedule(r.Context(), shared.TenantFromContext(r.Context()), assetID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	month, _ := time.Parse("2006-01", req.Month)
	report, err := h.service.RunMonthly(r.Context(), shared.TenantFromContext(r.Context()), month, req.DryRun)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAssetNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrSalvageExceedsCost), errors.Is(err, ErrInvalidUsefulLife), errors.Is(err, ErrUnknownMethod):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("assets handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
