package suratjalan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, q ListQuery) ([]ListRow, int64, error)
	GetHeader(ctx context.Context, id int64) (*SuratJalan, error)
	GetDetails(ctx context.Context, id int64) ([]Detail, error)
}

// AuditRecorder persists who did what to which note.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates delivery note operations.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	pub    events.Publisher
	audit  AuditRecorder
}

// NewService builds Service. The audit recorder may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, pub events.Publisher, audit AuditRecorder) *Service {
	return &Service{logger: logger, repo: repo, pub: pub, audit: audit}
}

func (s *Service) publish(ev events.Event) {
	if s.pub != nil {
		s.pub.Publish(ev)
	}
}

// recordAudit never fails the business operation.
func (s *Service) recordAudit(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "surat_jalan",
		EntityID: entityID,
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}

// Create writes the header, every line, the stock decrements and the KELUAR
// movements in one transaction. Any missing stock or shortage aborts the
// whole note; a half-written delivery note is never observable.
func (s *Service) Create(ctx context.Context, req CreateRequest) (int64, error) {
	if strings.TrimSpace(req.Tujuan) == "" {
		return 0, shared.Validationf("Tujuan wajib diisi")
	}
	if strings.TrimSpace(req.NomorSurat) == "" {
		return 0, shared.Validationf("Nomor Surat wajib diisi")
	}
	if len(req.Barang) == 0 {
		return 0, shared.Validationf("Minimal satu barang harus ditambahkan")
	}
	for _, item := range req.Barang {
		if item.Jumlah <= 0 {
			return 0, shared.Validationf("Jumlah untuk barang %s harus lebih dari 0", item.Kode)
		}
	}

	tanggal := req.Tanggal
	if tanggal.IsZero() {
		tanggal = shared.Today()
	}

	var (
		headerID       int64
		movementEvents []events.Event
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertHeader(ctx, SuratJalan{
			Tujuan:           req.Tujuan,
			NomorSurat:       req.NomorSurat,
			Tanggal:          tanggal,
			NomorKendaraan:   req.NomorKendaraan,
			NoPO:             req.NoPO,
			KeteranganProyek: req.KeteranganProyek,
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return shared.Conflictf("Nomor Surat sudah digunakan")
			}
			return shared.Infraf("insert surat jalan: %v", err)
		}
		headerID = id

		for i, item := range req.Barang {
			noUrut := int32(i + 1)
			if err := tx.InsertDetail(ctx, Detail{
				SuratJalanID: headerID,
				NoUrut:       noUrut,
				Quantity:     item.Jumlah,
				Unit:         item.Satuan,
				Weight:       item.Berat,
				KodeBarang:   item.Kode,
				NamaBarang:   item.Nama,
			}); err != nil {
				return shared.Infraf("insert detail: %v", err)
			}

			stok, err := tx.GetStockForUpdate(ctx, item.Kode)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return shared.NotFoundf("Stok dengan kode '%s' tidak ditemukan", item.Kode)
				}
				return shared.Infraf("baca stok: %v", err)
			}

			sisa := stok.StokSisa - item.Jumlah
			if sisa < 0 {
				return shared.Conflictf("Stok tidak cukup untuk barang '%s' (stok_sisa=%d, diminta=%d)", item.Kode, stok.StokSisa, item.Jumlah)
			}
			keluar := stok.StokKeluar + item.Jumlah

			if err := tx.ApplyStockOut(ctx, stok.ID, keluar, sisa, tanggal); err != nil {
				return shared.Infraf("update stok: %v", err)
			}

			keterangan := fmt.Sprintf("Surat Jalan %s", req.NomorSurat)
			if err := tx.InsertMovement(ctx, stok.ID, item.Jumlah, stok.SatuanID, req.Tujuan, keterangan); err != nil {
				return shared.Infraf("insert movement: %v", err)
			}

			movementEvents = append(movementEvents, events.Event{
				Tipe:  "stok",
				Event: "movement_created",
				Payload: map[string]any{
					"stok_id":        stok.ID,
					"jenis":          "KELUAR",
					"qty":            item.Jumlah,
					"stok_sisa_baru": sisa,
					"sumber_tujuan":  req.Tujuan,
					"keterangan":     keterangan,
					"kode_barang":    item.Kode,
					"nama_barang":    item.Nama,
					"surat_jalan_id": headerID,
				},
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.publish(events.Event{
		Tipe:  "surat_jalan",
		Event: events.ActionCreated,
		Payload: map[string]any{
			"id":            headerID,
			"nomor_surat":   req.NomorSurat,
			"tanggal":       tanggal,
			"tujuan":        req.Tujuan,
			"jumlah_barang": len(req.Barang),
		},
	})
	for _, ev := range movementEvents {
		s.publish(ev)
	}
	s.recordAudit(ctx, "create", strconv.FormatInt(headerID, 10), map[string]any{
		"nomor_surat":   req.NomorSurat,
		"tujuan":        req.Tujuan,
		"jumlah_barang": len(req.Barang),
	})
	return headerID, nil
}

// Delete restores every decremented stock row and removes the note, all in
// one transaction.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		found, err := tx.HeaderExists(ctx, id)
		if err != nil {
			return shared.Infraf("baca surat jalan: %v", err)
		}
		if !found {
			return shared.NotFoundf("Surat jalan tidak ditemukan")
		}

		lines, err := tx.DetailsForRestore(ctx, id)
		if err != nil {
			return shared.Infraf("baca detail: %v", err)
		}
		for _, line := range lines {
			if err := tx.RestoreStock(ctx, line.KodeBarang, line.Quantity); err != nil {
				return shared.Infraf("pulihkan stok: %v", err)
			}
		}
		if err := tx.DeleteDetails(ctx, id); err != nil {
			return shared.Infraf("hapus detail: %v", err)
		}
		if err := tx.DeleteHeader(ctx, id); err != nil {
			return shared.Infraf("hapus surat jalan: %v", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(events.Event{
		Tipe:    "surat_jalan",
		Event:   events.ActionDeleted,
		Payload: map[string]any{"id": id},
	})
	s.recordAudit(ctx, "delete", strconv.FormatInt(id, 10), nil)
	return nil
}

// List returns a page of delivery notes with pagination metadata.
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResponse, error) {
	rows, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, shared.Infraf("list surat jalan: %v", err)
	}
	if rows == nil {
		rows = []ListRow{}
	}
	return &ListResponse{
		Data:       rows,
		Pagination: shared.NewPagination(q.Page, q.Limit, total),
	}, nil
}

// Get returns one delivery note with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*WithDetails, error) {
	header, err := s.repo.GetHeader(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Surat jalan tidak ditemukan")
		}
		return nil, shared.Infraf("baca surat jalan: %v", err)
	}
	items, err := s.repo.GetDetails(ctx, id)
	if err != nil {
		return nil, shared.Infraf("baca detail: %v", err)
	}
	if items == nil {
		items = []Detail{}
	}
	return &WithDetails{Header: *header, Items: items}, nil
}
