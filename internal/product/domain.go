// Package product manages the product and satuan master data that the stok
// and surat jalan flows resolve against.
package product

import "time"

// Product categories. The column is a Postgres enum, so the allowed values
// are checked before the insert ever reaches the database.
const (
	KategoriAlat       = "Alat"
	KategoriMaterial   = "Material"
	KategoriConsumable = "Consumable"
)

var validKategori = []string{KategoriAlat, KategoriMaterial, KategoriConsumable}

var validSatuan = []string{
	"kg", "kgset", "liter", "literset", "pail",
	"galon5liter", "galon10liter", "pcs", "lonjor", "sak", "unit", "drum",
}

// Product is one master data row. HargaIDR is whole rupiah.
type Product struct {
	ID        int64     `json:"id"`
	Kode      string    `json:"kode"`
	Nama      string    `json:"nama"`
	Brand     string    `json:"brand"`
	Kategori  string    `json:"kategori"`
	Satuan    string    `json:"satuan"`
	HargaIDR  int64     `json:"harga_idr"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Satuan is a measurement unit row.
type Satuan struct {
	ID   int64  `json:"id"`
	Kode string `json:"kode"`
	Nama string `json:"nama"`
}

// CreateRequest carries a new product.
type CreateRequest struct {
	Kode     string `json:"kode" validate:"required"`
	Nama     string `json:"nama" validate:"required"`
	Brand    string `json:"brand" validate:"required"`
	Kategori string `json:"kategori" validate:"required"`
	Satuan   string `json:"satuan" validate:"required"`
	HargaIDR int64  `json:"harga_idr"`
}

// UpdateRequest carries a partial product update. Nil fields keep the
// stored value.
type UpdateRequest struct {
	Nama     *string `json:"nama"`
	Brand    *string `json:"brand"`
	Kategori *string `json:"kategori"`
	Satuan   *string `json:"satuan"`
	HargaIDR *int64  `json:"harga_idr"`
}

// ListQuery filters the product list.
type ListQuery struct {
	Brand    string
	Kategori string
}

// SearchQuery drives the autocomplete lookup.
type SearchQuery struct {
	Q     string
	Limit int64
}

// SatuanRequest carries a satuan create or full update.
type SatuanRequest struct {
	Kode string `json:"kode" validate:"required"`
	Nama string `json:"nama" validate:"required"`
}

func isValidKategori(k string) bool {
	for _, v := range validKategori {
		if v == k {
			return true
		}
	}
	return false
}

func isValidSatuan(s string) bool {
	for _, v := range validSatuan {
		if v == s {
			return true
		}
	}
	return false
}
