package stock

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

const summaryCacheKey = "stok:summary"

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Stock, error)
	List(ctx context.Context) ([]Stock, error)
	LowStock(ctx context.Context, threshold int64) ([]Stock, error)
	CountByKode(ctx context.Context, kode string) (int64, error)
	Create(ctx context.Context, s Stock) (int64, error)
	Update(ctx context.Context, id int64, req UpdateStockRequest) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	RecentMovements(ctx context.Context, limit int64) ([]Movement, error)
	Summarize(ctx context.Context) (*Summary, error)
}

// Service coordinates stock operations.
type Service struct {
	logger     *slog.Logger
	repo       RepositoryPort
	pub        events.Publisher
	cache      *redis.Client
	summaryTTL time.Duration
}

// NewService builds Service. cache may be nil; the dashboard summary is then
// computed on every call.
func NewService(logger *slog.Logger, repo RepositoryPort, pub events.Publisher, cache *redis.Client) *Service {
	return &Service{logger: logger, repo: repo, pub: pub, cache: cache, summaryTTL: 30 * time.Second}
}

func (s *Service) publish(action string, payload any) {
	if s.pub != nil {
		s.pub.Publish(events.Event{Tipe: "stok", Event: action, Payload: payload})
	}
}

func (s *Service) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, summaryCacheKey).Err(); err != nil {
		s.logger.Warn("summary cache invalidation failed", slog.Any("error", err))
	}
}

// PostMovement applies one manual MASUK or KELUAR movement under a row lock.
func (s *Service) PostMovement(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	jenis := strings.ToUpper(strings.TrimSpace(req.Jenis))
	if jenis != JenisMasuk && jenis != JenisKeluar {
		return nil, shared.Validationf("jenis harus 'MASUK' atau 'KELUAR'")
	}
	if req.Qty <= 0 {
		return nil, shared.Validationf("qty harus > 0")
	}

	var result *MovementResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		row, err := tx.GetStockForUpdate(ctx, req.StokID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NotFoundf("Stok tidak ditemukan")
			}
			return shared.Infraf("baca stok: %v", err)
		}

		masuk, keluar := row.StokMasuk, row.StokKeluar
		var sisa int64
		if jenis == JenisMasuk {
			masuk += req.Qty
			sisa = row.StokSisa + req.Qty
		} else {
			keluar += req.Qty
			sisa = row.StokSisa - req.Qty
		}
		if sisa < 0 {
			return shared.Conflictf("Stok tidak mencukupi untuk KELUAR")
		}

		if err := tx.InsertMovement(ctx, Movement{
			StokID:       row.ID,
			Jenis:        jenis,
			Qty:          req.Qty,
			SatuanID:     row.SatuanID,
			SumberTujuan: req.SumberTujuan,
			Keterangan:   req.Keterangan,
		}); err != nil {
			return shared.Infraf("insert movement: %v", err)
		}
		if err := tx.ApplyDelta(ctx, row.ID, masuk, keluar, sisa, nil); err != nil {
			return shared.Infraf("update stok: %v", err)
		}

		result = &MovementResult{
			StokID:       row.ID,
			Jenis:        jenis,
			Qty:          req.Qty,
			StokSisaBaru: sisa,
			SumberTujuan: req.SumberTujuan,
			Keterangan:   req.Keterangan,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx)
	s.publish("movement_created", result)
	return result, nil
}

// BatchStockIn applies one intake batch atomically. Items with qty <= 0 are
// skipped; any unresolved product, satuan mismatch or missing satuan aborts
// the whole batch. Duplicate (kode, lokasi, satuan) items accumulate because
// every line re-reads the row under the lock held by the same transaction.
func (s *Service) BatchStockIn(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.Items) == 0 {
		return nil, shared.Validationf("items tidak boleh kosong")
	}
	var jenisPemasukan string
	switch strings.ToLower(strings.TrimSpace(req.JenisPemasukan)) {
	case "pembelian_po":
		jenisPemasukan = PemasukanPembelianPO
	case "retur_barang":
		jenisPemasukan = PemasukanReturBarang
	default:
		return nil, shared.Validationf("jenis_pemasukan harus 'pembelian_po' atau 'retur_barang'")
	}

	tanggal := req.Tanggal
	if tanggal.IsZero() {
		tanggal = shared.Today()
	}

	result := &BatchResult{
		Lokasi:         req.Lokasi,
		Tanggal:        tanggal,
		JenisPemasukan: jenisPemasukan,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range req.Items {
			if item.Qty <= 0 {
				continue
			}

			p, err := tx.GetProduct(ctx, item.ProductID, item.ProductKode)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.Validationf("Produk dengan id=%d dan kode=%s tidak ditemukan", item.ProductID, item.ProductKode)
				}
				return shared.Infraf("baca product: %v", err)
			}
			if item.Satuan != "" && !strings.EqualFold(item.Satuan, p.Satuan) {
				return shared.Validationf("Satuan item untuk produk %s tidak sesuai master (input='%s', master='%s')", p.Kode, item.Satuan, p.Satuan)
			}

			satuanID, err := tx.GetSatuanID(ctx, p.Satuan)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.Validationf("Satuan dengan kode '%s' tidak ditemukan", p.Satuan)
				}
				return shared.Infraf("baca satuan: %v", err)
			}

			var stokID, sisaBaru int64
			row, err := tx.FindStockForUpdate(ctx, p.Kode, req.Lokasi, satuanID)
			switch {
			case err == nil:
				sisaBaru = row.StokSisa + item.Qty
				if err := tx.ApplyDelta(ctx, row.ID, row.StokMasuk+item.Qty, row.StokKeluar, sisaBaru, &tanggal); err != nil {
					return shared.Infraf("update stok: %v", err)
				}
				stokID = row.ID
			case errors.Is(err, shared.ErrNotFound):
				stokID, err = tx.InsertStock(ctx, Stock{
					Kode:         p.Kode,
					Nama:         p.Nama,
					Brand:        p.Brand,
					Kategori:     p.Kategori,
					HargaIDR:     p.HargaIDR,
					StokMasuk:    item.Qty,
					StokSisa:     item.Qty,
					SatuanID:     satuanID,
					Lokasi:       req.Lokasi,
					TanggalEntry: tanggal,
					TanggalMasuk: &tanggal,
				})
				if err != nil {
					return shared.Infraf("insert stok: %v", err)
				}
				sisaBaru = item.Qty
			default:
				return shared.Infraf("baca stok: %v", err)
			}

			if err := tx.InsertMovement(ctx, Movement{
				StokID:         stokID,
				Jenis:          JenisMasuk,
				Qty:            item.Qty,
				SatuanID:       satuanID,
				JenisPemasukan: &jenisPemasukan,
			}); err != nil {
				return shared.Infraf("insert movement: %v", err)
			}

			nilai := p.HargaIDR * item.Qty
			result.TotalNilai += nilai
			result.Items = append(result.Items, BatchResultItem{
				StokID:       stokID,
				ProductID:    p.ID,
				ProductKode:  p.Kode,
				Nama:         p.Nama,
				Brand:        p.Brand,
				Qty:          item.Qty,
				Satuan:       p.Satuan,
				StokSisaBaru: sisaBaru,
				HargaIDR:     p.HargaIDR,
				NilaiTotal:   nilai,
			})
		}
		if len(result.Items) == 0 {
			return shared.Validationf("semua item memiliki qty <= 0")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx)
	s.publish("batch_stock_in", result)
	return result, nil
}

// Get returns one stock row.
func (s *Service) Get(ctx context.Context, id int64) (*Stock, error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Stok tidak ditemukan")
		}
		return nil, shared.Infraf("baca stok: %v", err)
	}
	return row, nil
}

// List returns all stock rows.
func (s *Service) List(ctx context.Context) ([]Stock, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, shared.Infraf("list stok: %v", err)
	}
	return rows, nil
}

// LowStock returns rows under the low-stock threshold.
func (s *Service) LowStock(ctx context.Context) ([]Stock, error) {
	rows, err := s.repo.LowStock(ctx, LowStockThreshold)
	if err != nil {
		return nil, shared.Infraf("list low stok: %v", err)
	}
	return rows, nil
}

// RecentMovements returns the newest movement rows.
func (s *Service) RecentMovements(ctx context.Context, limit int64) ([]Movement, error) {
	rows, err := s.repo.RecentMovements(ctx, limit)
	if err != nil {
		return nil, shared.Infraf("list movements: %v", err)
	}
	return rows, nil
}

// Create registers one stock row directly. The kode must be free.
func (s *Service) Create(ctx context.Context, req CreateStockRequest) (int64, error) {
	taken, err := s.repo.CountByKode(ctx, req.Kode)
	if err != nil {
		return 0, shared.Infraf("cek kode: %v", err)
	}
	if taken > 0 {
		return 0, shared.Conflictf("Kode stok sudah digunakan")
	}

	masuk := int64(0)
	if req.StokMasuk != nil {
		masuk = *req.StokMasuk
	}
	keluar := int64(0)
	if req.StokKeluar != nil {
		keluar = *req.StokKeluar
	}
	// stok_sisa is always derived; the request never carries it.
	sisa := masuk - keluar
	if sisa < 0 {
		return 0, shared.Validationf("stok_keluar melebihi stok_masuk")
	}
	tanggal := req.TanggalEntry
	if tanggal.IsZero() {
		tanggal = shared.Today()
	}

	id, err := s.repo.Create(ctx, Stock{
		Kode:          req.Kode,
		Nama:          req.Nama,
		Brand:         req.Brand,
		Kategori:      req.Kategori,
		SubKategoriID: req.SubKategoriID,
		HargaIDR:      req.HargaIDR,
		StokMasuk:     masuk,
		StokKeluar:    keluar,
		StokSisa:      sisa,
		SatuanID:      req.SatuanID,
		Lokasi:        req.Lokasi,
		TanggalEntry:  tanggal,
		TanggalMasuk:  req.TanggalMasuk,
		TanggalKeluar: req.TanggalKeluar,
		Keterangan:    req.Keterangan,
	})
	if err != nil {
		return 0, shared.Infraf("insert stok: %v", err)
	}

	s.invalidateSummary(ctx)
	s.publish(events.ActionCreated, map[string]any{
		"id": id, "kode": req.Kode, "nama": req.Nama, "brand": req.Brand,
		"harga_idr": req.HargaIDR, "stok_sisa": sisa,
	})
	return id, nil
}

// Update replaces one stock row's mutable fields. The remaining balance is
// recomputed from stok_masuk and stok_keluar, never taken from the request.
func (s *Service) Update(ctx context.Context, id int64, req UpdateStockRequest) error {
	if req.StokMasuk-req.StokKeluar < 0 {
		return shared.Validationf("stok_keluar melebihi stok_masuk")
	}
	found, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return shared.Infraf("update stok: %v", err)
	}
	if !found {
		return shared.NotFoundf("Stok tidak ditemukan")
	}

	s.invalidateSummary(ctx)
	s.publish(events.ActionUpdated, map[string]any{
		"stok_id": id, "stok_sisa": req.StokMasuk - req.StokKeluar, "harga_idr": req.HargaIDR,
	})
	return nil
}

// Delete removes one stock row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return shared.Infraf("delete stok: %v", err)
	}
	if !found {
		return shared.NotFoundf("Stok tidak ditemukan")
	}

	s.invalidateSummary(ctx)
	s.publish(events.ActionDeleted, map[string]any{"stok_id": id})
	return nil
}

// DashboardSummary returns the aggregate stock totals, served from redis
// when a fresh copy is cached.
func (s *Service) DashboardSummary(ctx context.Context) (*Summary, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, summaryCacheKey).Bytes()
		if err == nil {
			var cached Summary
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("summary cache read failed", slog.Any("error", err))
		}
	}

	sum, err := s.repo.Summarize(ctx)
	if err != nil {
		return nil, shared.Infraf("hitung summary: %v", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(sum); err == nil {
			if err := s.cache.Set(ctx, summaryCacheKey, raw, s.summaryTTL).Err(); err != nil {
				s.logger.Warn("summary cache write failed", slog.Any("error", err))
			}
		}
	}
	return sum, nil
}

// Dashboard bundles the summary, the low-stock rows and the newest movements
// for the frontend landing page. The three reads run concurrently.
func (s *Service) Dashboard(ctx context.Context) (*DashboardData, error) {
	var data DashboardData
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sum, err := s.DashboardSummary(ctx)
		if err != nil {
			return err
		}
		data.Summary = *sum
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.LowStock(ctx, LowStockThreshold)
		if err != nil {
			return shared.Infraf("list low stok: %v", err)
		}
		data.LowStock = rows
		return nil
	})
	g.Go(func() error {
		rows, err := s.repo.RecentMovements(ctx, dashboardMovementLimit)
		if err != nil {
			return shared.Infraf("list movements: %v", err)
		}
		data.Movements = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if data.LowStock == nil {
		data.LowStock = []Stock{}
	}
	if data.Movements == nil {
		data.Movements = []Movement{}
	}
	return &data, nil
}
