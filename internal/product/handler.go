package product

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sbp-ops/sbp-ops/internal/platform/httpx"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// Handler exposes product and satuan endpoints over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers product routes on the router. The id segment is
// digits-only so /product/search and /product/by-kode stay reachable.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/product", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/search", h.handleSearch)
		r.Get("/by-kode/{kode}", h.handleGetByKode)
		r.Route("/{productID:[0-9]+}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Delete("/", h.handleDelete)
		})
	})
	r.Route("/satuan", func(r chi.Router) {
		r.Get("/", h.handleListSatuan)
		r.Post("/", h.handleCreateSatuan)
		r.Route("/{satuanID:[0-9]+}", func(r chi.Router) {
			r.Get("/", h.handleGetSatuan)
			r.Put("/", h.handleUpdateSatuan)
			r.Delete("/", h.handleDeleteSatuan)
		})
	})
}

func idParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := ListQuery{
		Brand:    r.URL.Query().Get("brand"),
		Kategori: r.URL.Query().Get("kategori"),
	}
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

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	rows, err := h.service.Search(r.Context(), SearchQuery{
		Q:     r.URL.Query().Get("q"),
		Limit: limit,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, rows)
}

func (h *Handler) handleGetByKode(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetByKode(r.Context(), chi.URLParam(r, "kode"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, p)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, shared.Validationf("id tidak valid"))
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, shared.Validationf("id tidak valid"))
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
	id, err := idParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, shared.Validationf("id tidak valid"))
		return
	}
	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, deleted)
}

func (h *Handler) handleListSatuan(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListSatuan(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, rows)
}

func (h *Handler) handleGetSatuan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "satuanID")
	if err != nil {
		httpx.RespondError(w, shared.Validationf("id tidak valid"))
		return
	}
	row, err := h.service.GetSatuan(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, row)
}

func (h *Handler) handleCreateSatuan(w http.ResponseWriter, r *http.Request) {
	var req SatuanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	if err := h.service.CreateSatuan(r.Context(), req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusCreated, map[string]any{"message": "Satuan dibuat"})
}

func (h *Handler) handleUpdateSatuan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "satuanID")
	if err != nil {
		httpx.RespondError(w, shared.Validationf("id tidak valid"))
		return
	}
	var req SatuanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.Validationf("body tidak valid"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, shared.Validationf("%v", err))
		return
	}
	if err := h.service.UpdateSatuan(r.Context(), id, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, map[string]any{"message": "Satuan diperbarui"})
}

func (h *Handler) handleDeleteSatuan(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "satuanID")
	if err != nil {
		httpx.RespondError(w, shared.Validationf("id tidak valid"))
		return
	}
	if err := h.service.DeleteSatuan(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
