// Package kasbon manages employee cash advances and their repayment ledger.
// Repayments are append-only mutation rows; the running balance on the
// kasbon header is only ever changed under a row lock.
package kasbon

import (
	"time"

	"github.com/google/uuid"

	"github.com/sbp-ops/sbp-ops/internal/shared"
)

// Status values for a kasbon.
const (
	StatusDiajukan  = "diajukan"
	StatusDisetujui = "disetujui"
	StatusDitolak   = "ditolak"
	StatusDicairkan = "dicairkan"
	StatusLunas     = "lunas"
)

// Mutation types.
const (
	TipePotongGaji    = "potong_gaji"
	TipeCicilanManual = "cicilan_manual"
	TipePenyesuaian   = "penyesuaian"
)

var validStatus = []string{StatusDiajukan, StatusDisetujui, StatusDitolak, StatusDicairkan, StatusLunas}

var validTipeMutasi = []string{TipePotongGaji, TipeCicilanManual, TipePenyesuaian}

// Kasbon is a cash advance header. SaldoKasbon is the outstanding balance
// in whole rupiah.
type Kasbon struct {
	KasbonID          uuid.UUID    `json:"kasbon_id"`
	PegawaiID         uuid.UUID    `json:"pegawai_id"`
	KontrakID         *uuid.UUID   `json:"kontrak_id"`
	TanggalPengajuan  shared.Date  `json:"tanggal_pengajuan"`
	NominalPengajuan  int64        `json:"nominal_pengajuan"`
	Alasan            *string      `json:"alasan"`
	StatusKasbon      string       `json:"status_kasbon"`
	DisetujuiOleh     *string      `json:"disetujui_oleh"`
	TanggalPersetujuan *shared.Date `json:"tanggal_persetujuan"`
	NominalDisetujui  *int64       `json:"nominal_disetujui"`
	TanggalCair       *shared.Date `json:"tanggal_cair"`
	MetodePencairan   *string      `json:"metode_pencairan"`
	BuktiPencairanURL *string      `json:"bukti_pencairan_url"`
	MetodePotong      string       `json:"metode_potong"`
	JumlahCicilan     int32        `json:"jumlah_cicilan"`
	SaldoKasbon       int64        `json:"saldo_kasbon"`
	Catatan           *string      `json:"catatan"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Mutasi is one repayment ledger row. SaldoSebelum and SaldoSesudah snapshot
// the kasbon balance around the mutation so the history is self-verifying.
type Mutasi struct {
	MutasiID      uuid.UUID   `json:"mutasi_id"`
	KasbonID      uuid.UUID   `json:"kasbon_id"`
	PenggajianID  *uuid.UUID  `json:"penggajian_id"`
	TipeMutasi    string      `json:"tipe_mutasi"`
	NominalMutasi int64       `json:"nominal_mutasi"`
	SaldoSebelum  int64       `json:"saldo_sebelum"`
	SaldoSesudah  int64       `json:"saldo_sesudah"`
	TanggalMutasi shared.Date `json:"tanggal_mutasi"`
	Catatan       *string     `json:"catatan"`
	CreatedAt     time.Time   `json:"created_at"`
}

// CreateRequest carries a new kasbon.
type CreateRequest struct {
	KasbonID          uuid.UUID    `json:"kasbon_id"`
	PegawaiID         uuid.UUID    `json:"pegawai_id" validate:"required"`
	KontrakID         *uuid.UUID   `json:"kontrak_id"`
	TanggalPengajuan  shared.Date  `json:"tanggal_pengajuan"`
	NominalPengajuan  int64        `json:"nominal_pengajuan" validate:"required,gt=0"`
	Alasan            *string      `json:"alasan"`
	StatusKasbon      string       `json:"status_kasbon" validate:"required"`
	DisetujuiOleh     *string      `json:"disetujui_oleh"`
	TanggalPersetujuan *shared.Date `json:"tanggal_persetujuan"`
	NominalDisetujui  *int64       `json:"nominal_disetujui"`
	TanggalCair       *shared.Date `json:"tanggal_cair"`
	MetodePencairan   *string      `json:"metode_pencairan"`
	BuktiPencairanURL *string      `json:"bukti_pencairan_url"`
	MetodePotong      string       `json:"metode_potong" validate:"required"`
	JumlahCicilan     int32        `json:"jumlah_cicilan"`
	SaldoKasbon       *int64       `json:"saldo_kasbon"`
	Catatan           *string      `json:"catatan"`
}

// UpdateRequest carries a partial kasbon update. Nil fields keep the stored
// value.
type UpdateRequest struct {
	PegawaiID         *uuid.UUID   `json:"pegawai_id"`
	KontrakID         *uuid.UUID   `json:"kontrak_id"`
	TanggalPengajuan  *shared.Date `json:"tanggal_pengajuan"`
	NominalPengajuan  *int64       `json:"nominal_pengajuan"`
	Alasan            *string      `json:"alasan"`
	StatusKasbon      *string      `json:"status_kasbon"`
	DisetujuiOleh     *string      `json:"disetujui_oleh"`
	TanggalPersetujuan *shared.Date `json:"tanggal_persetujuan"`
	NominalDisetujui  *int64       `json:"nominal_disetujui"`
	TanggalCair       *shared.Date `json:"tanggal_cair"`
	MetodePencairan   *string      `json:"metode_pencairan"`
	BuktiPencairanURL *string      `json:"bukti_pencairan_url"`
	MetodePotong      *string      `json:"metode_potong"`
	JumlahCicilan     *int32       `json:"jumlah_cicilan"`
	SaldoKasbon       *int64       `json:"saldo_kasbon"`
	Catatan           *string      `json:"catatan"`
}

// MutasiRequest carries one repayment to apply.
type MutasiRequest struct {
	TipeMutasi    string       `json:"tipe_mutasi" validate:"required"`
	NominalMutasi int64        `json:"nominal_mutasi" validate:"required"`
	PenggajianID  *uuid.UUID   `json:"penggajian_id"`
	TanggalMutasi *shared.Date `json:"tanggal_mutasi"`
	Catatan       *string      `json:"catatan"`
}

// ListQuery filters the kasbon list.
type ListQuery struct {
	Q         string
	PegawaiID *uuid.UUID
	Status    string
	Limit     int64
	Offset    int64
}

func isValidStatus(v string) bool {
	for _, s := range validStatus {
		if s == v {
			return true
		}
	}
	return false
}

func isValidTipeMutasi(v string) bool {
	for _, t := range validTipeMutasi {
		if t == v {
			return true
		}
	}
	return false
}
