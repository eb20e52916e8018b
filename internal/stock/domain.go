// Package stock tracks warehouse stock rows and their movement log. Every
// quantity change goes through a movement row inside a transaction; stok_sisa
// is only ever changed under a row lock.
package stock

import (
	"time"

	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// Movement directions.
const (
	JenisMasuk  = "MASUK"
	JenisKeluar = "KELUAR"
)

// Intake kinds recorded on MASUK movements from the batch endpoint.
const (
	PemasukanPembelianPO = "PEMBELIAN_PO"
	PemasukanReturBarang = "RETUR_BARANG"
)

// Stock is one stock row per (kode, lokasi, satuan). The satuan_kode and
// satuan_nama fields are joined from the satuan master on reads.
type Stock struct {
	ID            int64        `json:"id"`
	Kode          string       `json:"kode"`
	Nama          string       `json:"nama"`
	Brand         string       `json:"brand"`
	Kategori      string       `json:"kategori"`
	SubKategoriID int64        `json:"sub_kategori_id"`
	HargaIDR      int64        `json:"harga_idr"`
	StokMasuk     int64        `json:"stok_masuk"`
	StokKeluar    int64        `json:"stok_keluar"`
	StokSisa      int64        `json:"stok_sisa"`
	SatuanID      int64        `json:"satuan_id"`
	Lokasi        string       `json:"lokasi"`
	TanggalEntry  shared.Date  `json:"tanggal_entry"`
	TanggalMasuk  *shared.Date `json:"tanggal_masuk"`
	TanggalKeluar *shared.Date `json:"tanggal_keluar"`
	Keterangan    *string      `json:"keterangan"`
	CreatedAt     *time.Time   `json:"created_at"`
	UpdatedAt     *time.Time   `json:"updated_at"`
	SatuanKode    string       `json:"satuan_kode"`
	SatuanNama    string       `json:"satuan_nama"`
}

// Movement is one immutable log row of a stock change.
type Movement struct {
	ID             int64     `json:"id"`
	StokID         int64     `json:"stok_id"`
	Jenis          string    `json:"jenis"`
	Qty            int64     `json:"qty"`
	SatuanID       int64     `json:"satuan_id"`
	SumberTujuan   *string   `json:"sumber_tujuan"`
	Keterangan     *string   `json:"keterangan"`
	JenisPemasukan *string   `json:"jenis_pemasukan,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProductRef is the slice of the product master the batch intake needs.
type ProductRef struct {
	ID       int64
	Kode     string
	Nama     string
	Brand    string
	Kategori string
	Satuan   string
	HargaIDR int64
}

// CreateStockRequest carries a new stock row.
type CreateStockRequest struct {
	Kode          string       `json:"kode" validate:"required"`
	Nama          string       `json:"nama" validate:"required"`
	Brand         string       `json:"brand"`
	Kategori      string       `json:"kategori" validate:"required"`
	SubKategoriID int64        `json:"sub_kategori_id"`
	HargaIDR      int64        `json:"harga_idr" validate:"gte=0"`
	StokMasuk     *int64       `json:"stok_masuk"`
	StokKeluar    *int64       `json:"stok_keluar"`
	SatuanID      int64        `json:"satuan_id" validate:"required"`
	Lokasi        string       `json:"lokasi" validate:"required"`
	TanggalEntry  shared.Date  `json:"tanggal_entry"`
	TanggalMasuk  *shared.Date `json:"tanggal_masuk"`
	TanggalKeluar *shared.Date `json:"tanggal_keluar"`
	Keterangan    *string      `json:"keterangan"`
}

// UpdateStockRequest replaces a stock row's mutable fields.
type UpdateStockRequest struct {
	Nama          string       `json:"nama" validate:"required"`
	Brand         string       `json:"brand"`
	Kategori      string       `json:"kategori" validate:"required"`
	SubKategoriID int64        `json:"sub_kategori_id"`
	HargaIDR      int64        `json:"harga_idr" validate:"gte=0"`
	StokMasuk     int64        `json:"stok_masuk"`
	StokKeluar    int64        `json:"stok_keluar"`
	SatuanID      int64        `json:"satuan_id" validate:"required"`
	Lokasi        string       `json:"lokasi" validate:"required"`
	TanggalEntry  shared.Date  `json:"tanggal_entry"`
	TanggalMasuk  *shared.Date `json:"tanggal_masuk"`
	TanggalKeluar *shared.Date `json:"tanggal_keluar"`
	Keterangan    *string      `json:"keterangan"`
}

// MovementRequest carries one manual stock movement.
type MovementRequest struct {
	StokID       int64   `json:"stok_id" validate:"required"`
	Jenis        string  `json:"jenis" validate:"required"`
	Qty          int64   `json:"qty" validate:"required,gt=0"`
	SumberTujuan *string `json:"sumber_tujuan"`
	Keterangan   *string `json:"keterangan"`
}

// MovementResult echoes the applied movement with the new balance.
type MovementResult struct {
	StokID       int64   `json:"stok_id"`
	Jenis        string  `json:"jenis"`
	Qty          int64   `json:"qty"`
	StokSisaBaru int64   `json:"stok_sisa_baru"`
	SumberTujuan *string `json:"sumber_tujuan"`
	Keterangan   *string `json:"keterangan"`
}

// BatchItem is one intake line keyed by the product natural key.
type BatchItem struct {
	ProductID   int64  `json:"product_id" validate:"required"`
	ProductKode string `json:"product_kode" validate:"required"`
	Qty         int64  `json:"qty"`
	Satuan      string `json:"satuan"`
}

// BatchRequest carries one batch intake.
type BatchRequest struct {
	Tanggal        shared.Date `json:"tanggal"`
	Lokasi         string      `json:"lokasi" validate:"required"`
	JenisPemasukan string      `json:"jenis_pemasukan" validate:"required"`
	Items          []BatchItem `json:"items" validate:"required"`
}

// BatchResultItem is one applied intake line.
type BatchResultItem struct {
	StokID       int64  `json:"stok_id"`
	ProductID    int64  `json:"product_id"`
	ProductKode  string `json:"product_kode"`
	Nama         string `json:"nama"`
	Brand        string `json:"brand"`
	Qty          int64  `json:"qty"`
	Satuan       string `json:"satuan"`
	StokSisaBaru int64  `json:"stok_sisa_baru"`
	HargaIDR     int64  `json:"harga_idr"`
	NilaiTotal   int64  `json:"nilai_total"`
}

// BatchResult summarises one committed batch intake.
type BatchResult struct {
	Lokasi         string            `json:"lokasi"`
	Tanggal        shared.Date       `json:"tanggal"`
	JenisPemasukan string            `json:"jenis_pemasukan"`
	TotalNilai     int64             `json:"total_nilai"`
	Items          []BatchResultItem `json:"items"`
}

// Summary aggregates the whole stock table for the dashboard.
type Summary struct {
	TotalItems    int64 `json:"total_items"`
	TotalNilai    int64 `json:"total_nilai"`
	LowStockCount int64 `json:"low_stock_count"`
}

// DashboardData is the combined payload behind GET /stok/dashboard.
type DashboardData struct {
	Summary   Summary    `json:"summary"`
	LowStock  []Stock    `json:"low_stock"`
	Movements []Movement `json:"recent_movements"`
}

// LowStockThreshold is the stok_sisa level under which a row counts as low.
const LowStockThreshold = 50

const dashboardMovementLimit = 10
