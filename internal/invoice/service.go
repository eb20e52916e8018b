package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sbp-ops/sbp-ops/internal/events"
	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error)
	List(ctx context.Context, q ListQuery) ([]Invoice, error)
	Create(ctx context.Context, inv Invoice) (*Invoice, error)
	Delete(ctx context.Context, invoiceID uuid.UUID) (bool, error)
	ListPembayaran(ctx context.Context, invoiceID uuid.UUID, limit, offset int64) ([]Pembayaran, error)
	CountByNomorPrefix(ctx context.Context, prefix string) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	DueForReminder(ctx context.Context, day shared.Date) ([]Invoice, error)
}

// Service coordinates invoice operations.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	pub    events.Publisher
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, pub events.Publisher) *Service {
	return &Service{logger: logger, repo: repo, pub: pub}
}

func (s *Service) publish(tipe, action string, payload any) {
	if s.pub != nil {
		s.pub.Publish(events.Event{Tipe: tipe, Event: action, Payload: payload})
	}
}

// Pay records one payment. The invoice row stays locked from read to update
// so concurrent payments serialize; the nominal is clamped to the open
// remainder, so paying "too much" settles the invoice exactly instead of
// overshooting.
func (s *Service) Pay(ctx context.Context, invoiceID uuid.UUID, req PayRequest) (*PayResult, error) {
	if req.Nominal <= 0 {
		return nil, shared.Validationf("nominal harus > 0")
	}
	metode := "tunai"
	if req.MetodeBayar != nil {
		metode = strings.ToLower(strings.TrimSpace(*req.MetodeBayar))
	}
	if !inEnum(metode, validMetodeBayar) {
		return nil, shared.Validationf("metode_bayar tidak valid. Allowed: %s", strings.Join(validMetodeBayar, ", "))
	}

	tanggal := shared.Today()
	if req.TanggalBayar != nil {
		tanggal = *req.TanggalBayar
	}
	pembayaranID := req.PembayaranID
	if pembayaranID == uuid.Nil {
		pembayaranID = uuid.New()
	}

	var result PayResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetForUpdate(ctx, invoiceID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NotFoundf("Invoice tidak ditemukan")
			}
			return shared.Infraf("baca invoice: %v", err)
		}
		if inv.Status == StatusLunas {
			return shared.Conflictf("Invoice sudah lunas, tidak bisa bayar lagi")
		}
		if inv.Status == StatusBatal {
			return shared.Conflictf("Invoice sudah dibatalkan")
		}
		sisaSebelum := inv.Sisa()
		if sisaSebelum <= 0 {
			return shared.Conflictf("Invoice sudah lunas (sisa = 0)")
		}

		nominal := req.Nominal
		if nominal > sisaSebelum {
			nominal = sisaSebelum
		}
		dibayarBaru := inv.JumlahDibayar + nominal
		sisaSetelah := inv.Jumlah - dibayarBaru
		status := StatusSebagian
		if sisaSetelah <= 0 {
			status = StatusLunas
		}

		pembayaran, err := tx.InsertPembayaran(ctx, Pembayaran{
			PembayaranID:     pembayaranID,
			InvoiceID:        invoiceID,
			Nominal:          nominal,
			SisaSetelahBayar: sisaSetelah,
			MetodeBayar:      metode,
			Referensi:        optTrim(req.Referensi),
			BuktiURL:         optTrim(req.BuktiURL),
			DibayarOleh:      optTrim(req.DibayarOleh),
			TanggalBayar:     tanggal,
			Catatan:          optTrim(req.Catatan),
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				return shared.Conflictf("pembayaran_id sudah ada (duplicate)")
			}
			return shared.Infraf("insert pembayaran: %v", err)
		}

		updated, err := tx.UpdatePaid(ctx, invoiceID, dibayarBaru, status)
		if err != nil {
			return shared.Infraf("update invoice: %v", err)
		}

		result = PayResult{Pembayaran: pembayaran, Invoice: updated}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("invoice_pembayaran", events.ActionCreated, result.Pembayaran)
	s.publish("invoice", events.ActionUpdated, result.Invoice)
	return &result, nil
}

// ListPembayaran returns the payment history of one invoice.
func (s *Service) ListPembayaran(ctx context.Context, invoiceID uuid.UUID, limit, offset int64) ([]Pembayaran, error) {
	rows, err := s.repo.ListPembayaran(ctx, invoiceID, limit, offset)
	if err != nil {
		return nil, shared.Infraf("list pembayaran: %v", err)
	}
	return rows, nil
}

// Create registers a new invoice. When no nomor is given one is generated
// as INV-YYYY-NNN from the count of this year's invoices.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Invoice, error) {
	if !inEnum(req.Frekuensi, validFrekuensi) {
		return nil, shared.Validationf("frekuensi tidak valid. Allowed: %s", strings.Join(validFrekuensi, ", "))
	}
	status := StatusBelumBayar
	if req.Status != nil {
		status = strings.TrimSpace(*req.Status)
	}
	if !inEnum(status, validStatus) {
		return nil, shared.Validationf("status tidak valid. Allowed: %s", strings.Join(validStatus, ", "))
	}
	if req.ReminderMetode != nil && !inEnum(*req.ReminderMetode, validReminderMetode) {
		return nil, shared.Validationf("reminder_metode tidak valid. Allowed: %s", strings.Join(validReminderMetode, ", "))
	}

	nomor := ""
	if req.NomorInvoice != nil {
		nomor = strings.TrimSpace(*req.NomorInvoice)
	}
	if nomor == "" {
		generated, err := s.generateNomor(ctx)
		if err != nil {
			return nil, err
		}
		nomor = generated
	}

	id := req.InvoiceID
	if id == uuid.Nil {
		id = uuid.New()
	}
	tanggalDibuat := shared.Today()
	if req.TanggalDibuat != nil {
		tanggalDibuat = *req.TanggalDibuat
	}

	created, err := s.repo.Create(ctx, Invoice{
		InvoiceID:          id,
		NomorInvoice:       nomor,
		JenisTagihan:       req.JenisTagihan,
		NamaPemilik:        req.NamaPemilik,
		Deskripsi:          optTrim(req.Deskripsi),
		Frekuensi:          req.Frekuensi,
		Periode:            optTrim(req.Periode),
		Jumlah:             req.Jumlah,
		JumlahDibayar:      req.JumlahDibayar,
		TanggalDibuat:      tanggalDibuat,
		JatuhTempo:         req.JatuhTempo,
		Status:             status,
		KontakHP:           optTrim(req.KontakHP),
		KontakEmail:        optTrim(req.KontakEmail),
		NomorIDMeter:       optTrim(req.NomorIDMeter),
		Pemakaian:          req.Pemakaian,
		SatuanPemakaian:    optTrim(req.SatuanPemakaian),
		HargaSatuan:        req.HargaSatuan,
		ReminderAktif:      req.ReminderAktif,
		ReminderMetode:     optTrim(req.ReminderMetode),
		ReminderHariBefore: optTrim(req.ReminderHariBefore),
		ReminderBerikutnya: req.ReminderBerikutnya,
		Catatan:            optTrim(req.Catatan),
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.Conflictf("nomor_invoice sudah digunakan")
		}
		return nil, shared.Infraf("insert invoice: %v", err)
	}
	s.publish("invoice", events.ActionCreated, created)
	return created, nil
}

func (s *Service) generateNomor(ctx context.Context) (string, error) {
	year := time.Now().UTC().Format("2006")
	prefix := fmt.Sprintf("INV-%s-", year)
	count, err := s.repo.CountByNomorPrefix(ctx, prefix)
	if err != nil {
		return "", shared.Infraf("generate nomor invoice: %v", err)
	}
	return fmt.Sprintf("INV-%s-%03d", year, count+1), nil
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	inv, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundf("Invoice tidak ditemukan")
		}
		return nil, shared.Infraf("baca invoice: %v", err)
	}
	return inv, nil
}

// List returns invoices for the given filter.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Invoice, error) {
	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, shared.Infraf("list invoice: %v", err)
	}
	return rows, nil
}

// Delete removes an invoice and its ledger (cascaded by the schema).
func (s *Service) Delete(ctx context.Context, invoiceID uuid.UUID) error {
	found, err := s.repo.Delete(ctx, invoiceID)
	if err != nil {
		return shared.Infraf("delete invoice: %v", err)
	}
	if !found {
		return shared.NotFoundf("Invoice tidak ditemukan")
	}
	s.publish("invoice", events.ActionDeleted, map[string]any{"invoice_id": invoiceID})
	return nil
}

// Stats returns the per-status invoice counts.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, shared.Infraf("hitung stats: %v", err)
	}
	return stats, nil
}

// ScanReminders publishes a reminder event for every open invoice whose due
// date has arrived. Returns how many reminders were published.
func (s *Service) ScanReminders(ctx context.Context) (int, error) {
	due, err := s.repo.DueForReminder(ctx, shared.Today())
	if err != nil {
		return 0, shared.Infraf("scan reminder: %v", err)
	}
	for _, inv := range due {
		s.publish("invoice", "reminder", map[string]any{
			"invoice_id":    inv.InvoiceID,
			"nomor_invoice": inv.NomorInvoice,
			"nama_pemilik":  inv.NamaPemilik,
			"jatuh_tempo":   inv.JatuhTempo,
			"sisa":          inv.Sisa(),
			"sisa_format":   shared.FormatRupiah(inv.Sisa()),
			"metode":        inv.ReminderMetode,
		})
	}
	if len(due) > 0 {
		s.logger.Info("invoice reminders published", slog.Int("count", len(due)))
	}
	return len(due), nil
}

func optTrim(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
