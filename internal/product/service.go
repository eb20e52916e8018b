package product

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	List(ctx context.Context, q ListQuery) ([]Product, error)
	Get(ctx context.Context, id int64) (*Product, error)
	GetByKode(ctx context.Context, kodeUpper string) (*Product, error)
	Search(ctx context.Context, pattern string, limit int64) ([]Product, error)
	Create(ctx context.Context, p Product) (*Product, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*Product, error)
	Delete(ctx context.Context, id int64) (*Product, error)

	ListSatuan(ctx context.Context) ([]Satuan, error)
	GetSatuan(ctx context.Context, id int64) (*Satuan, error)
	CountSatuanKode(ctx context.Context, kode string, excludeID int64) (int64, error)
	CreateSatuan(ctx context.Context, kode, nama string) error
	UpdateSatuan(ctx context.Context, id int64, kode, nama string) (bool, error)
	DeleteSatuan(ctx context.Context, id int64) (bool, error)
}

// Service coordinates product master data operations.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	pub    events.Publisher
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, pub events.Publisher) *Service {
	return &Service{logger: logger, repo: repo, pub: pub}
}

func (s *Service) publish(action string, payload any) {
	if s.pub != nil {
		s.pub.Publish(events.Event{Tipe: "product", Event: action, Payload: payload})
	}
}

// List returns products for the given filter.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Product, error) {
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, shared.Infraf("list product: %v", err)
	}
	return rows, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Product id %d tidak ditemukan", id)
		}
		return nil, shared.Infraf("baca product: %v", err)
	}
	return p, nil
}

// GetByKode looks a product up by its code, case-insensitive.
func (s *Service) GetByKode(ctx context.Context, kode string) (*Product, error) {
	p, err := s.repo.GetByKode(ctx, strings.ToUpper(kode))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Product dengan kode %s tidak ditemukan", kode)
		}
		return nil, shared.Infraf("baca product: %v", err)
	}
	return p, nil
}

// Search runs the autocomplete prefix lookup. An empty query returns
// everything up to the limit.
func (s *Service) Search(ctx context.Context, q SearchQuery) ([]Product, error) {
	pattern := "%"
	if trimmed := strings.ToUpper(strings.TrimSpace(q.Q)); trimmed != "" {
		pattern = trimmed + "%"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := s.repo.Search(ctx, pattern, limit)
	if err != nil {
		return nil, shared.Infraf("search product: %v", err)
	}
	return rows, nil
}

// Create registers a product after checking the enum columns.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if req.HargaIDR <= 0 {
		return nil, shared.Validationf("harga_idr harus > 0 (rupiah)")
	}
	if !isValidKategori(req.Kategori) {
		return nil, shared.Validationf("kategori tidak valid: %s (harus Alat / Material / Consumable)", req.Kategori)
	}
	if !isValidSatuan(req.Satuan) {
		return nil, shared.Validationf("satuan tidak valid: %s", req.Satuan)
	}

	created, err := s.repo.Create(ctx, Product{
		Kode:     req.Kode,
		Nama:     req.Nama,
		Brand:    req.Brand,
		Kategori: req.Kategori,
		Satuan:   req.Satuan,
		HargaIDR: req.HargaIDR,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.Conflictf("Kode produk sudah terdaftar")
		}
		return nil, shared.Infraf("insert product: %v", err)
	}
	s.publish(events.ActionCreated, created)
	return created, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Product, error) {
	if req.HargaIDR != nil && *req.HargaIDR <= 0 {
		return nil, shared.Validationf("harga_idr harus > 0 (rupiah)")
	}
	if req.Kategori != nil && !isValidKategori(*req.Kategori) {
		return nil, shared.Validationf("kategori tidak valid: %s (harus Alat / Material / Consumable)", *req.Kategori)
	}
	if req.Satuan != nil && !isValidSatuan(*req.Satuan) {
		return nil, shared.Validationf("satuan tidak valid: %s", *req.Satuan)
	}

	updated, err := s.repo.Update(ctx, id, req)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Product id %d tidak ditemukan", id)
		}
		return nil, shared.Infraf("update product: %v", err)
	}
	s.publish(events.ActionUpdated, updated)
	return updated, nil
}

// Delete removes a product and returns the deleted row.
func (s *Service) Delete(ctx context.Context, id int64) (*Product, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Product id %d tidak ditemukan", id)
		}
		return nil, shared.Infraf("delete product: %v", err)
	}
	s.publish(events.ActionDeleted, map[string]any{"id": deleted.ID, "kode": deleted.Kode})
	return deleted, nil
}

// ListSatuan returns every measurement unit.
func (s *Service) ListSatuan(ctx context.Context) ([]Satuan, error) {
	rows, err := s.repo.ListSatuan(ctx)
	if err != nil {
		return nil, shared.Infraf("list satuan: %v", err)
	}
	return rows, nil
}

// GetSatuan returns one measurement unit.
func (s *Service) GetSatuan(ctx context.Context, id int64) (*Satuan, error) {
	row, err := s.repo.GetSatuan(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Satuan tidak ditemukan")
		}
		return nil, shared.Infraf("baca satuan: %v", err)
	}
	return row, nil
}

// CreateSatuan registers a unit with a unique code.
func (s *Service) CreateSatuan(ctx context.Context, req SatuanRequest) error {
	existing, err := s.repo.CountSatuanKode(ctx, req.Kode, 0)
	if err != nil {
		return shared.Infraf("cek kode satuan: %v", err)
	}
	if existing > 0 {
		return shared.Conflictf("Kode satuan sudah digunakan")
	}
	if err := s.repo.CreateSatuan(ctx, req.Kode, req.Nama); err != nil {
		return shared.Infraf("insert satuan: %v", err)
	}
	return nil
}

// UpdateSatuan replaces a unit. The code must stay unique across rows.
func (s *Service) UpdateSatuan(ctx context.Context, id int64, req SatuanRequest) error {
	existing, err := s.repo.CountSatuanKode(ctx, req.Kode, id)
	if err != nil {
		return shared.Infraf("cek kode satuan: %v", err)
	}
	if existing > 0 {
		return shared.Conflictf("Kode satuan sudah digunakan oleh record lain")
	}
	found, err := s.repo.UpdateSatuan(ctx, id, req.Kode, req.Nama)
	if err != nil {
		return shared.Infraf("update satuan: %v", err)
	}
	if !found {
		return shared.NotFoundf("Satuan tidak ditemukan")
	}
	return nil
}

// DeleteSatuan removes a unit.
func (s *Service) DeleteSatuan(ctx context.Context, id int64) error {
	found, err := s.repo.DeleteSatuan(ctx, id)
	if err != nil {
		return shared.Infraf("delete satuan: %v", err)
	}
	if !found {
		return shared.NotFoundf("Satuan tidak ditemukan")
	}
	return nil
}
