package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

const invoiceColumns = `
	invoice_id, nomor_invoice,
	jenis_tagihan, nama_pemilik, deskripsi, frekuensi, periode,
	jumlah, jumlah_dibayar,
	tanggal_dibuat, jatuh_tempo,
	status,
	kontak_hp, kontak_email,
	nomor_id_meter,
	pemakaian, satuan_pemakaian, harga_satuan,
	reminder_aktif, reminder_metode, reminder_hari_before, reminder_berikutnya,
	catatan, created_at, updated_at`

const pembayaranColumns = `
	pembayaran_id, invoice_id,
	nominal, sisa_setelah_bayar,
	metode_bayar, referensi, bukti_url, dibayar_oleh,
	tanggal_bayar, catatan, created_at`

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations a payment runs under one transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error)
	InsertPembayaran(ctx context.Context, p Pembayaran) (*Pembayaran, error)
	UpdatePaid(ctx context.Context, invoiceID uuid.UUID, jumlahDibayar int64, status string) (*Invoice, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.InvoiceID, &inv.NomorInvoice,
		&inv.JenisTagihan, &inv.NamaPemilik, &inv.Deskripsi, &inv.Frekuensi, &inv.Periode,
		&inv.Jumlah, &inv.JumlahDibayar,
		&inv.TanggalDibuat, &inv.JatuhTempo,
		&inv.Status,
		&inv.KontakHP, &inv.KontakEmail,
		&inv.NomorIDMeter,
		&inv.Pemakaian, &inv.SatuanPemakaian, &inv.HargaSatuan,
		&inv.ReminderAktif, &inv.ReminderMetode, &inv.ReminderHariBefore, &inv.ReminderBerikutnya,
		&inv.Catatan, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func scanPembayaran(row pgx.Row) (*Pembayaran, error) {
	var p Pembayaran
	err := row.Scan(
		&p.PembayaranID, &p.InvoiceID,
		&p.Nominal, &p.SisaSetelahBayar,
		&p.MetodeBayar, &p.Referensi, &p.BuktiURL, &p.DibayarOleh,
		&p.TanggalBayar, &p.Catatan, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *txRepo) GetForUpdate(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	sql := fmt.Sprintf("SELECT %s FROM invoice WHERE invoice_id = $1 FOR UPDATE", invoiceColumns)
	return scanInvoice(r.tx.QueryRow(ctx, sql, invoiceID))
}

func (r *txRepo) InsertPembayaran(ctx context.Context, p Pembayaran) (*Pembayaran, error) {
	sql := fmt.Sprintf(`
		INSERT INTO invoice_pembayaran (
			pembayaran_id, invoice_id,
			nominal, sisa_setelah_bayar,
			metode_bayar, referensi, bukti_url, dibayar_oleh,
			tanggal_bayar, catatan
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING %s`, pembayaranColumns)
	return scanPembayaran(r.tx.QueryRow(ctx, sql,
		p.PembayaranID, p.InvoiceID,
		p.Nominal, p.SisaSetelahBayar,
		p.MetodeBayar, p.Referensi, p.BuktiURL, p.DibayarOleh,
		p.TanggalBayar, p.Catatan,
	))
}

func (r *txRepo) UpdatePaid(ctx context.Context, invoiceID uuid.UUID, jumlahDibayar int64, status string) (*Invoice, error) {
	sql := fmt.Sprintf(`
		UPDATE invoice
		SET jumlah_dibayar = $2, status = $3, updated_at = now()
		WHERE invoice_id = $1
		RETURNING %s`, invoiceColumns)
	return scanInvoice(r.tx.QueryRow(ctx, sql, invoiceID, jumlahDibayar, status))
}

// Get reads one invoice.
func (r *Repository) Get(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error) {
	sql := fmt.Sprintf("SELECT %s FROM invoice WHERE invoice_id = $1", invoiceColumns)
	return scanInvoice(r.pool.QueryRow(ctx, sql, invoiceID))
}

// List returns invoices newest first with optional filters.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]Invoice, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	var pattern *string
	if s := strings.TrimSpace(q.Q); s != "" {
		p := "%" + strings.ToLower(s) + "%"
		pattern = &p
	}
	var status, frekuensi *string
	if s := strings.TrimSpace(q.Status); s != "" {
		status = &s
	}
	if s := strings.TrimSpace(q.Frekuensi); s != "" {
		frekuensi = &s
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM invoice
		WHERE ($1::text IS NULL OR frekuensi = $1::text)
		  AND ($2::text IS NULL OR status = $2::text)
		  AND ($3::text IS NULL
		       OR LOWER(nomor_invoice) LIKE $3::text
		       OR LOWER(nama_pemilik) LIKE $3::text
		       OR LOWER(jenis_tagihan) LIKE $3::text)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`, invoiceColumns)

	rows, err := r.pool.Query(ctx, sql, frekuensi, status, pattern, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// Create inserts a new invoice and returns the stored row.
func (r *Repository) Create(ctx context.Context, inv Invoice) (*Invoice, error) {
	sql := fmt.Sprintf(`
		INSERT INTO invoice (
			invoice_id, nomor_invoice,
			jenis_tagihan, nama_pemilik, deskripsi, frekuensi, periode,
			jumlah, jumlah_dibayar,
			tanggal_dibuat, jatuh_tempo,
			status,
			kontak_hp, kontak_email,
			nomor_id_meter,
			pemakaian, satuan_pemakaian, harga_satuan,
			reminder_aktif, reminder_metode, reminder_hari_before, reminder_berikutnya,
			catatan
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		RETURNING %s`, invoiceColumns)
	return scanInvoice(r.pool.QueryRow(ctx, sql,
		inv.InvoiceID, inv.NomorInvoice,
		inv.JenisTagihan, inv.NamaPemilik, inv.Deskripsi, inv.Frekuensi, inv.Periode,
		inv.Jumlah, inv.JumlahDibayar,
		inv.TanggalDibuat, inv.JatuhTempo,
		inv.Status,
		inv.KontakHP, inv.KontakEmail,
		inv.NomorIDMeter,
		inv.Pemakaian, inv.SatuanPemakaian, inv.HargaSatuan,
		inv.ReminderAktif, inv.ReminderMetode, inv.ReminderHariBefore, inv.ReminderBerikutnya,
		inv.Catatan,
	))
}

// Delete removes one invoice.
func (r *Repository) Delete(ctx context.Context, invoiceID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM invoice WHERE invoice_id = $1", invoiceID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListPembayaran returns the payment ledger for one invoice, newest first.
func (r *Repository) ListPembayaran(ctx context.Context, invoiceID uuid.UUID, limit, offset int64) ([]Pembayaran, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	sql := fmt.Sprintf(`
		SELECT %s FROM invoice_pembayaran
		WHERE invoice_id = $1
		ORDER BY tanggal_bayar DESC, created_at DESC
		LIMIT $2 OFFSET $3`, pembayaranColumns)
	rows, err := r.pool.Query(ctx, sql, invoiceID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Pembayaran
	for rows.Next() {
		p, err := scanPembayaran(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// CountByNomorPrefix counts invoices whose nomor starts with prefix.
func (r *Repository) CountByNomorPrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM invoice WHERE nomor_invoice LIKE $1 || '%'", prefix).Scan(&n)
	return n, err
}

// Stats aggregates status buckets.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'lunas'),
			COUNT(*) FILTER (WHERE status IN ('belum_bayar','terlambat')),
			COUNT(*) FILTER (WHERE status = 'terlambat'),
			COUNT(*) FILTER (WHERE status = 'sebagian')
		FROM invoice`).
		Scan(&s.CountLunas, &s.CountBelum, &s.CountTerlambat, &s.CountSebagian)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// DueForReminder returns active-reminder invoices that are still open and
// due by the given day.
func (r *Repository) DueForReminder(ctx context.Context, day shared.Date) ([]Invoice, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM invoice
		WHERE reminder_aktif
		  AND status IN ('belum_bayar', 'sebagian', 'terlambat')
		  AND (reminder_berikutnya IS NULL OR reminder_berikutnya <= $1)
		  AND jatuh_tempo <= $1
		ORDER BY jatuh_tempo ASC`, invoiceColumns)
	rows, err := r.pool.Query(ctx, sql, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}
