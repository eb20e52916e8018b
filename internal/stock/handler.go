package stock

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sbp-ops/sbp-ops/internal/platform/httpx"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// Handler wires stock HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes. The fixed paths are registered before
// the {stokID} routes so "low" and "movements" never parse as ids.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stok", h.handleList)
	r.Post("/stok", h.handleCreate)
	r.Get("/stok/low", h.handleLowStock)
	r.Get("/stok/summary", h.handleSummary)
	r.Get("/stok/dashboard", h.handleDashboard)
	r.Get("/stok/movements/recent", h.handleRecentMovements)
	r.Post("/stok/movements", h.handleCreateMovement)
	r.Get("/stok/{stokID:[0-9]+}", h.handleGet)
	r.Put("/stok/{stokID:[0-9]+}", h.handleUpdate)
	r.Delete("/stok/{stokID:[0-9]+}", h.handleDelete)
	r.Post("/stock-movements/batch-in", h.handleBatchStockIn)
}

func stokIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "stokID"), 10, 64)
	if err != nil {
		return 0, shared.Validationf("id stok tidak valid")
	}
	return id, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if rows == nil {
		rows = []Stock{}
	}
	httpx.Data(w, http.StatusOK, rows)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if rows == nil {
		rows = []Stock{}
	}
	httpx.Data(w, http.StatusOK, rows)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.DashboardSummary(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, sum)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Dashboard(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, data)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := stokIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	row, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, row)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	id, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "id": id, "message": "Stok dibuat"})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := stokIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	if err := h.service.Update(r.Context(), id, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Stok diperbarui"})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := stokIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRecentMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	rows, err := h.service.RecentMovements(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if rows == nil {
		rows = []Movement{}
	}
	httpx.Data(w, http.StatusOK, rows)
}

func (h *Handler) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	result, err := h.service.PostMovement(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, result)
}

func (h *Handler) handleBatchStockIn(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	result, err := h.service.BatchStockIn(r.Context(), req)
	if err != nil {
		h.logger.Warn("batch intake rejected", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, result)
}
