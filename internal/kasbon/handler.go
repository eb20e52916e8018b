package kasbon

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sbp-ops/sbp-ops/internal/platform/httpx"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// Handler wires kasbon HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the kasbon handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers kasbon routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/kasbon", h.handleList)
	r.Post("/kasbon", h.handleCreate)
	r.Get("/kasbon/{kasbonID}", h.handleGet)
	r.Put("/kasbon/{kasbonID}", h.handleUpdate)
	r.Delete("/kasbon/{kasbonID}", h.handleDelete)
	r.Get("/kasbon/{kasbonID}/mutasi", h.handleListMutasi)
	r.Post("/kasbon/{kasbonID}/mutasi", h.handleCreateMutasi)
}

func kasbonIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "kasbonID"))
	if err != nil {
		return uuid.Nil, shared.Validationf("kasbon_id tidak valid")
	}
	return id, nil
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := ListQuery{Q: r.URL.Query().Get("q"), Status: r.URL.Query().Get("status")}
	if raw := strings.TrimSpace(r.URL.Query().Get("pegawai_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.RespondError(w, shared.Validationf("pegawai_id tidak valid"))
			return
		}
		q.PegawaiID = &id
	}
	q.Limit, _ = strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	q.Offset, _ = strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)

	rows, err := h.service.List(r.Context(), q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if rows == nil {
		rows = []Kasbon{}
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

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := kasbonIDParam(r)
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

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := kasbonIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	updated, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := kasbonIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "deleted": id})
}

func (h *Handler) handleListMutasi(w http.ResponseWriter, r *http.Request) {
	id, err := kasbonIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.ListMutasi(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if rows == nil {
		rows = []Mutasi{}
	}
	httpx.Data(w, http.StatusOK, rows)
}

func (h *Handler) handleCreateMutasi(w http.ResponseWriter, r *http.Request) {
	id, err := kasbonIDParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req MutasiRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	mutasi, err := h.service.ApplyMutation(r.Context(), id, req)
	if err != nil {
		h.logger.Warn("mutasi rejected",
			slog.String("kasbon_id", id.String()),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusCreated, mutasi)
}
