// Package invoice manages billing documents and their payment ledger. A
// payment is clamped to the open remainder; overpaying an invoice is not a
// supported state.
package invoice

import (
	"time"

	"github.com/google/uuid"

	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// Invoice statuses.
const (
	StatusBelumBayar = "belum_bayar"
	StatusSebagian   = "sebagian"
	StatusLunas      = "lunas"
	StatusTerlambat  = "terlambat"
	StatusBatal      = "batal"
)

var validStatus = []string{StatusBelumBayar, StatusLunas, StatusSebagian, StatusTerlambat, StatusBatal}

var validFrekuensi = []string{"harian", "mingguan", "bulanan", "tahunan", "sekali"}

var validMetodeBayar = []string{"tunai", "transfer", "qris", "potong_gaji", "lainnya"}

var validReminderMetode = []string{"whatsapp", "sms", "email"}

// Invoice is a billing document. Jumlah and JumlahDibayar are whole rupiah.
type Invoice struct {
	InvoiceID          uuid.UUID    `json:"invoice_id"`
	NomorInvoice       string       `json:"nomor_invoice"`
	JenisTagihan       string       `json:"jenis_tagihan"`
	NamaPemilik        string       `json:"nama_pemilik"`
	Deskripsi          *string      `json:"deskripsi"`
	Frekuensi          string       `json:"frekuensi"`
	Periode            *string      `json:"periode"`
	Jumlah             int64        `json:"jumlah"`
	JumlahDibayar      int64        `json:"jumlah_dibayar"`
	TanggalDibuat      shared.Date  `json:"tanggal_dibuat"`
	JatuhTempo         shared.Date  `json:"jatuh_tempo"`
	Status             string       `json:"status"`
	KontakHP           *string      `json:"kontak_hp"`
	KontakEmail        *string      `json:"kontak_email"`
	NomorIDMeter       *string      `json:"nomor_id_meter"`
	Pemakaian          *float64     `json:"pemakaian"`
	SatuanPemakaian    *string      `json:"satuan_pemakaian"`
	HargaSatuan        *float64     `json:"harga_satuan"`
	ReminderAktif      bool         `json:"reminder_aktif"`
	ReminderMetode     *string      `json:"reminder_metode"`
	ReminderHariBefore *string      `json:"reminder_hari_before"`
	ReminderBerikutnya *shared.Date `json:"reminder_berikutnya"`
	Catatan            *string      `json:"catatan"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Sisa returns the unpaid remainder.
func (i Invoice) Sisa() int64 {
	return i.Jumlah - i.JumlahDibayar
}

// Pembayaran is one payment ledger row. SisaSetelahBayar snapshots the
// remainder after this payment.
type Pembayaran struct {
	PembayaranID     uuid.UUID   `json:"pembayaran_id"`
	InvoiceID        uuid.UUID   `json:"invoice_id"`
	Nominal          int64       `json:"nominal"`
	SisaSetelahBayar int64       `json:"sisa_setelah_bayar"`
	MetodeBayar      string      `json:"metode_bayar"`
	Referensi        *string     `json:"referensi"`
	BuktiURL         *string     `json:"bukti_url"`
	DibayarOleh      *string     `json:"dibayar_oleh"`
	TanggalBayar     shared.Date `json:"tanggal_bayar"`
	Catatan          *string     `json:"catatan"`
	CreatedAt        time.Time   `json:"created_at"`
}

// CreateRequest carries a new invoice.
type CreateRequest struct {
	InvoiceID          uuid.UUID    `json:"invoice_id"`
	NomorInvoice       *string      `json:"nomor_invoice"`
	JenisTagihan       string       `json:"jenis_tagihan" validate:"required"`
	NamaPemilik        string       `json:"nama_pemilik" validate:"required"`
	Deskripsi          *string      `json:"deskripsi"`
	Frekuensi          string       `json:"frekuensi" validate:"required"`
	Periode            *string      `json:"periode"`
	Jumlah             int64        `json:"jumlah" validate:"required,gt=0"`
	JumlahDibayar      int64        `json:"jumlah_dibayar"`
	TanggalDibuat      *shared.Date `json:"tanggal_dibuat"`
	JatuhTempo         shared.Date  `json:"jatuh_tempo"`
	Status             *string      `json:"status"`
	KontakHP           *string      `json:"kontak_hp"`
	KontakEmail        *string      `json:"kontak_email"`
	NomorIDMeter       *string      `json:"nomor_id_meter"`
	Pemakaian          *float64     `json:"pemakaian"`
	SatuanPemakaian    *string      `json:"satuan_pemakaian"`
	HargaSatuan        *float64     `json:"harga_satuan"`
	ReminderAktif      bool         `json:"reminder_aktif"`
	ReminderMetode     *string      `json:"reminder_metode"`
	ReminderHariBefore *string      `json:"reminder_hari_before"`
	ReminderBerikutnya *shared.Date `json:"reminder_berikutnya"`
	Catatan            *string      `json:"catatan"`
}

// PayRequest carries one payment against an invoice.
type PayRequest struct {
	PembayaranID uuid.UUID    `json:"pembayaran_id"`
	Nominal      int64        `json:"nominal" validate:"required"`
	MetodeBayar  *string      `json:"metode_bayar"`
	Referensi    *string      `json:"referensi"`
	BuktiURL     *string      `json:"bukti_url"`
	DibayarOleh  *string      `json:"dibayar_oleh"`
	TanggalBayar *shared.Date `json:"tanggal_bayar"`
	Catatan      *string      `json:"catatan"`
}

// PayResult bundles the committed payment with the updated invoice.
type PayResult struct {
	Pembayaran *Pembayaran `json:"pembayaran"`
	Invoice    *Invoice    `json:"invoice"`
}

// ListQuery filters the invoice list.
type ListQuery struct {
	Q         string
	Frekuensi string
	Status    string
	Limit     int64
	Offset    int64
}

// Stats aggregates invoice counts per status bucket.
type Stats struct {
	CountLunas     int64 `json:"count_lunas"`
	CountBelum     int64 `json:"count_belum"`
	CountTerlambat int64 `json:"count_terlambat"`
	CountSebagian  int64 `json:"count_sebagian"`
}

func inEnum(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}
