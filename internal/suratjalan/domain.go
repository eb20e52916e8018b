// Package suratjalan manages delivery notes. Creating one decrements the
// referenced stock rows and deleting one restores them, both as a single
// all-or-nothing transaction.
package suratjalan

import (
	"time"

	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// SuratJalan is a delivery note header.
type SuratJalan struct {
	ID               int64       `json:"id"`
	Tujuan           string      `json:"tujuan"`
	NomorSurat       string      `json:"nomor_surat"`
	Tanggal          shared.Date `json:"tanggal"`
	NomorKendaraan   *string     `json:"nomor_kendaraan"`
	NoPO             *string     `json:"no_po"`
	KeteranganProyek *string     `json:"keterangan_proyek"`
	CreatedAt        *time.Time  `json:"created_at"`
	UpdatedAt        *time.Time  `json:"updated_at"`
}

// ListRow is one list entry with its line count.
type ListRow struct {
	SuratJalan
	JumlahBarang int64 `json:"jumlah_barang"`
}

// Detail is one delivery note line.
type Detail struct {
	ID           int64    `json:"id"`
	SuratJalanID int64    `json:"surat_jalan_id"`
	NoUrut       int32    `json:"no_urut"`
	Quantity     int64    `json:"quantity"`
	Unit         string   `json:"unit"`
	Weight       *float64 `json:"weight"`
	KodeBarang   string   `json:"kode_barang"`
	NamaBarang   string   `json:"nama_barang"`
}

// WithDetails bundles a header with its lines.
type WithDetails struct {
	Header SuratJalan `json:"header"`
	Items  []Detail   `json:"items"`
}

// BarangRequest is one requested line. Field names follow the frontend
// payload.
type BarangRequest struct {
	Kode   string   `json:"kode" validate:"required"`
	Nama   string   `json:"nama" validate:"required"`
	Jumlah int64    `json:"jumlah"`
	Satuan string   `json:"satuan" validate:"required"`
	Berat  *float64 `json:"berat"`
}

// CreateRequest carries a new delivery note. The camelCase keys mirror what
// the frontend sends.
type CreateRequest struct {
	Tujuan           string          `json:"tujuan"`
	NomorSurat       string          `json:"nomorSurat"`
	Tanggal          shared.Date     `json:"tanggal"`
	NomorKendaraan   *string         `json:"nomorKendaraan"`
	NoPO             *string         `json:"noPo"`
	KeteranganProyek *string         `json:"keteranganProyek"`
	Barang           []BarangRequest `json:"barang"`
}

// ListQuery filters and sorts the delivery note list.
type ListQuery struct {
	Search string
	Field  string
	Sort   string
	Order  string
	Page   int
	Limit  int
}

// ListResponse is the paginated list payload.
type ListResponse struct {
	Data       []ListRow         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

// StockRef is the slice of a stock row the coordinator locks per line.
type StockRef struct {
	ID         int64
	StokSisa   int64
	StokKeluar int64
	SatuanID   int64
}

// RestoreLine is one detail line read back when a note is deleted.
type RestoreLine struct {
	KodeBarang string
	Quantity   int64
}

// Search and sort fields allowed in the list query. Anything else falls back
// to the default instead of reaching the SQL string.
var (
	allowedSearchFields = []string{"nomor_surat", "no_po", "tujuan", "keterangan_proyek"}
	allowedSortFields   = []string{"id", "nomor_surat", "no_po", "tujuan", "keterangan_proyek", "tanggal"}
)
