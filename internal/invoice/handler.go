package invoice

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sbp-ops/sbp-ops/internal/platform/httpx"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// Handler exposes invoice endpoints over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers invoice routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoice", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/stats", h.handleStats)
		r.Route("/{invoiceID}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Delete("/", h.handleDelete)
			r.Get("/pembayaran", h.handleListPembayaran)
			r.Post("/pembayaran", h.handlePay)
		})
	})
}

func invoiceIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "invoiceID"))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := ListQuery{
		Q:         r.URL.Query().Get("q"),
		Frekuensi: r.URL.Query().Get("frekuensi"),
		Status:    r.URL.Query().Get("status"),
	}
	q.Limit, _ = strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	q.Offset, _ = strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)

	rows, err := h.service.List(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, rows)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	created, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusCreated, created)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceIDParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invoice_id tidak valid"))
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, inv)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceIDParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invoice_id tidak valid"))
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, map[string]any{"message": "Invoice berhasil dihapus"})
}

func (h *Handler) handleListPembayaran(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceIDParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invoice_id tidak valid"))
		return
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)

	rows, err := h.service.ListPembayaran(r.Context(), id, limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, rows)
}

func (h *Handler) handlePay(w http.ResponseWriter, r *http.Request) {
	id, err := invoiceIDParam(r)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invoice_id tidak valid"))
		return
	}
	var req PayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	result, err := h.service.Pay(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("pembayaran diterima",
		slog.String("invoice_id", id.String()),
		slog.Int64("nominal", result.Pembayaran.Nominal))
	httpx.Data(w, http.StatusCreated, result)
}
