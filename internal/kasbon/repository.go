package kasbon

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

const kasbonColumns = `
	kasbon_id, pegawai_id, kontrak_id,
	tanggal_pengajuan, nominal_pengajuan, alasan,
	status_kasbon, disetujui_oleh, tanggal_persetujuan, nominal_disetujui,
	tanggal_cair, metode_pencairan, bukti_pencairan_url,
	metode_potong, jumlah_cicilan, saldo_kasbon,
	catatan, created_at, updated_at`

const mutasiColumns = `
	mutasi_id, kasbon_id, penggajian_id, tipe_mutasi,
	nominal_mutasi, saldo_sebelum, saldo_sesudah,
	tanggal_mutasi, catatan, created_at`

// Repository persists kasbon data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations the mutation engine runs under one
// transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error)
	InsertMutasi(ctx context.Context, m Mutasi) (*Mutasi, error)
	UpdateSaldo(ctx context.Context, kasbonID uuid.UUID, saldo int64, status string) error
	Get(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside one transaction; row locks taken by GetForUpdate are
// held until commit.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func scanKasbon(row pgx.Row) (*Kasbon, error) {
	var k Kasbon
	err := row.Scan(
		&k.KasbonID, &k.PegawaiID, &k.KontrakID,
		&k.TanggalPengajuan, &k.NominalPengajuan, &k.Alasan,
		&k.StatusKasbon, &k.DisetujuiOleh, &k.TanggalPersetujuan, &k.NominalDisetujui,
		&k.TanggalCair, &k.MetodePencairan, &k.BuktiPencairanURL,
		&k.MetodePotong, &k.JumlahCicilan, &k.SaldoKasbon,
		&k.Catatan, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &k, nil
}

func scanMutasi(row pgx.Row) (*Mutasi, error) {
	var m Mutasi
	err := row.Scan(
		&m.MutasiID, &m.KasbonID, &m.PenggajianID, &m.TipeMutasi,
		&m.NominalMutasi, &m.SaldoSebelum, &m.SaldoSesudah,
		&m.TanggalMutasi, &m.Catatan, &m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *txRepo) GetForUpdate(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error) {
	sql := fmt.Sprintf("SELECT %s FROM kasbon WHERE kasbon_id = $1 FOR UPDATE", kasbonColumns)
	return scanKasbon(r.tx.QueryRow(ctx, sql, kasbonID))
}

func (r *txRepo) Get(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error) {
	sql := fmt.Sprintf("SELECT %s FROM kasbon WHERE kasbon_id = $1", kasbonColumns)
	return scanKasbon(r.tx.QueryRow(ctx, sql, kasbonID))
}

func (r *txRepo) InsertMutasi(ctx context.Context, m Mutasi) (*Mutasi, error) {
	sql := fmt.Sprintf(`
		INSERT INTO kasbon_mutasi
			(mutasi_id, kasbon_id, penggajian_id, tipe_mutasi,
			 nominal_mutasi, saldo_sebelum, saldo_sesudah,
			 tanggal_mutasi, catatan)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, mutasiColumns)
	return scanMutasi(r.tx.QueryRow(ctx, sql,
		m.MutasiID, m.KasbonID, m.PenggajianID, m.TipeMutasi,
		m.NominalMutasi, m.SaldoSebelum, m.SaldoSesudah,
		m.TanggalMutasi, m.Catatan,
	))
}

func (r *txRepo) UpdateSaldo(ctx context.Context, kasbonID uuid.UUID, saldo int64, status string) error {
	_, err := r.tx.Exec(ctx,
		"UPDATE kasbon SET saldo_kasbon = $1, status_kasbon = $2, updated_at = now() WHERE kasbon_id = $3",
		saldo, status, kasbonID)
	return err
}

// Get reads one kasbon outside any transaction.
func (r *Repository) Get(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error) {
	sql := fmt.Sprintf("SELECT %s FROM kasbon WHERE kasbon_id = $1", kasbonColumns)
	return scanKasbon(r.pool.QueryRow(ctx, sql, kasbonID))
}

// List returns kasbon rows newest first, with optional free-text and status
// filters.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]Kasbon, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	var pattern *string
	if s := strings.TrimSpace(q.Q); s != "" {
		p := "%" + strings.ToLower(s) + "%"
		pattern = &p
	}
	var status *string
	if s := strings.TrimSpace(q.Status); s != "" {
		status = &s
	}

	sql := fmt.Sprintf(`
		SELECT %s FROM kasbon
		WHERE ($1::uuid IS NULL OR pegawai_id = $1::uuid)
		  AND ($2::text IS NULL OR status_kasbon = $2::text)
		  AND ($3::text IS NULL
		       OR LOWER(COALESCE(alasan, '')) LIKE $3::text
		       OR LOWER(status_kasbon) LIKE $3::text)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`, kasbonColumns)

	rows, err := r.pool.Query(ctx, sql, q.PegawaiID, status, pattern, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Kasbon
	for rows.Next() {
		k, err := scanKasbon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

// Create inserts a new kasbon and returns the stored row.
func (r *Repository) Create(ctx context.Context, k Kasbon) (*Kasbon, error) {
	sql := fmt.Sprintf(`
		INSERT INTO kasbon (
			kasbon_id, pegawai_id, kontrak_id,
			tanggal_pengajuan, nominal_pengajuan, alasan,
			status_kasbon, disetujui_oleh, tanggal_persetujuan, nominal_disetujui,
			tanggal_cair, metode_pencairan, bukti_pencairan_url,
			metode_potong, jumlah_cicilan, saldo_kasbon,
			catatan
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING %s`, kasbonColumns)
	return scanKasbon(r.pool.QueryRow(ctx, sql,
		k.KasbonID, k.PegawaiID, k.KontrakID,
		k.TanggalPengajuan, k.NominalPengajuan, k.Alasan,
		k.StatusKasbon, k.DisetujuiOleh, k.TanggalPersetujuan, k.NominalDisetujui,
		k.TanggalCair, k.MetodePencairan, k.BuktiPencairanURL,
		k.MetodePotong, k.JumlahCicilan, k.SaldoKasbon,
		k.Catatan,
	))
}

// Update persists the full kasbon row.
func (r *Repository) Update(ctx context.Context, k Kasbon) (*Kasbon, error) {
	sql := fmt.Sprintf(`
		UPDATE kasbon SET
			pegawai_id = $2, kontrak_id = $3,
			tanggal_pengajuan = $4, nominal_pengajuan = $5, alasan = $6,
			status_kasbon = $7, disetujui_oleh = $8, tanggal_persetujuan = $9, nominal_disetujui = $10,
			tanggal_cair = $11, metode_pencairan = $12, bukti_pencairan_url = $13,
			metode_potong = $14, jumlah_cicilan = $15, saldo_kasbon = $16,
			catatan = $17, updated_at = now()
		WHERE kasbon_id = $1
		RETURNING %s`, kasbonColumns)
	return scanKasbon(r.pool.QueryRow(ctx, sql,
		k.KasbonID, k.PegawaiID, k.KontrakID,
		k.TanggalPengajuan, k.NominalPengajuan, k.Alasan,
		k.StatusKasbon, k.DisetujuiOleh, k.TanggalPersetujuan, k.NominalDisetujui,
		k.TanggalCair, k.MetodePencairan, k.BuktiPencairanURL,
		k.MetodePotong, k.JumlahCicilan, k.SaldoKasbon,
		k.Catatan,
	))
}

// Delete removes a kasbon and returns the deleted row.
func (r *Repository) Delete(ctx context.Context, kasbonID uuid.UUID) (*Kasbon, error) {
	sql := fmt.Sprintf("DELETE FROM kasbon WHERE kasbon_id = $1 RETURNING %s", kasbonColumns)
	return scanKasbon(r.pool.QueryRow(ctx, sql, kasbonID))
}

// ListMutasi returns the repayment ledger for one kasbon, newest first.
func (r *Repository) ListMutasi(ctx context.Context, kasbonID uuid.UUID) ([]Mutasi, error) {
	sql := fmt.Sprintf("SELECT %s FROM kasbon_mutasi WHERE kasbon_id = $1 ORDER BY created_at DESC", mutasiColumns)
	rows, err := r.pool.Query(ctx, sql, kasbonID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Mutasi
	for rows.Next() {
		m, err := scanMutasi(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
