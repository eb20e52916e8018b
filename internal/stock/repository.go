package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

const stockColumns = `
	s.id, s.kode, s.nama, s.brand, s.kategori, s.sub_kategori_id, s.harga_idr,
	s.stok_masuk, s.stok_keluar, s.stok_sisa,
	s.satuan_id, s.lokasi, s.tanggal_entry, s.tanggal_masuk, s.tanggal_keluar,
	s.keterangan, s.created_at, s.updated_at,
	sat.kode AS satuan_kode, sat.nama AS satuan_nama`

const movementColumns = `
	m.id, m.stok_id, m.jenis::text, m.qty, m.satuan_id,
	m.sumber_tujuan, m.keterangan, m.jenis_pemasukan::text, m.created_at`

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations movements and batch intake run under
// one transaction.
type TxRepository interface {
	GetProduct(ctx context.Context, id int64, kode string) (*ProductRef, error)
	GetSatuanID(ctx context.Context, kode string) (int64, error)
	GetStockForUpdate(ctx context.Context, id int64) (*Stock, error)
	FindStockForUpdate(ctx context.Context, kode, lokasi string, satuanID int64) (*Stock, error)
	InsertStock(ctx context.Context, s Stock) (int64, error)
	ApplyDelta(ctx context.Context, id int64, masuk, keluar, sisa int64, tanggalMasuk *shared.Date) error
	InsertMovement(ctx context.Context, m Movement) error
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

func scanStock(row pgx.Row) (*Stock, error) {
	var s Stock
	err := row.Scan(
		&s.ID, &s.Kode, &s.Nama, &s.Brand, &s.Kategori, &s.SubKategoriID, &s.HargaIDR,
		&s.StokMasuk, &s.StokKeluar, &s.StokSisa,
		&s.SatuanID, &s.Lokasi, &s.TanggalEntry, &s.TanggalMasuk, &s.TanggalKeluar,
		&s.Keterangan, &s.CreatedAt, &s.UpdatedAt,
		&s.SatuanKode, &s.SatuanNama,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *txRepo) GetProduct(ctx context.Context, id int64, kode string) (*ProductRef, error) {
	var p ProductRef
	err := r.tx.QueryRow(ctx, `
		SELECT id, kode, nama, brand, kategori::text, satuan::text, harga_idr
		FROM product WHERE id = $1 AND kode = $2`, id, kode).
		Scan(&p.ID, &p.Kode, &p.Nama, &p.Brand, &p.Kategori, &p.Satuan, &p.HargaIDR)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *txRepo) GetSatuanID(ctx context.Context, kode string) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, "SELECT id FROM satuan WHERE kode = $1", kode).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepo) GetStockForUpdate(ctx context.Context, id int64) (*Stock, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM stok s
		JOIN satuan sat ON sat.id = s.satuan_id
		WHERE s.id = $1
		FOR UPDATE OF s`, stockColumns)
	return scanStock(r.tx.QueryRow(ctx, sql, id))
}

func (r *txRepo) FindStockForUpdate(ctx context.Context, kode, lokasi string, satuanID int64) (*Stock, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM stok s
		JOIN satuan sat ON sat.id = s.satuan_id
		WHERE s.kode = $1 AND s.lokasi = $2 AND s.satuan_id = $3
		FOR UPDATE OF s`, stockColumns)
	return scanStock(r.tx.QueryRow(ctx, sql, kode, lokasi, satuanID))
}

func (r *txRepo) InsertStock(ctx context.Context, s Stock) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO stok
			(kode, nama, brand, kategori, sub_kategori_id, harga_idr,
			 stok_masuk, stok_keluar, stok_sisa,
			 satuan_id, lokasi, tanggal_entry, tanggal_masuk, tanggal_keluar, keterangan)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		s.Kode, s.Nama, s.Brand, s.Kategori, s.SubKategoriID, s.HargaIDR,
		s.StokMasuk, s.StokKeluar, s.StokSisa,
		s.SatuanID, s.Lokasi, s.TanggalEntry, s.TanggalMasuk, s.TanggalKeluar, s.Keterangan,
	).Scan(&id)
	return id, err
}

func (r *txRepo) ApplyDelta(ctx context.Context, id int64, masuk, keluar, sisa int64, tanggalMasuk *shared.Date) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE stok
		SET stok_masuk = $1, stok_keluar = $2, stok_sisa = $3,
		    tanggal_masuk = COALESCE($4, tanggal_masuk), updated_at = NOW()
		WHERE id = $5`,
		masuk, keluar, sisa, tanggalMasuk, id)
	return err
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO stok_movements
			(stok_id, jenis, qty, satuan_id, sumber_tujuan, keterangan, jenis_pemasukan)
		VALUES ($1, $2::jenis_pergerakan, $3, $4, $5, $6, $7::jenis_pemasukan)`,
		m.StokID, m.Jenis, m.Qty, m.SatuanID, m.SumberTujuan, m.Keterangan, m.JenisPemasukan)
	return err
}

// Get reads one stock row with its satuan join.
func (r *Repository) Get(ctx context.Context, id int64) (*Stock, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM stok s
		JOIN satuan sat ON sat.id = s.satuan_id
		WHERE s.id = $1`, stockColumns)
	return scanStock(r.pool.QueryRow(ctx, sql, id))
}

func (r *Repository) queryStocks(ctx context.Context, sql string, args ...any) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// List returns all stock rows ordered by kode.
func (r *Repository) List(ctx context.Context) ([]Stock, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM stok s
		JOIN satuan sat ON sat.id = s.satuan_id
		ORDER BY s.kode ASC`, stockColumns)
	return r.queryStocks(ctx, sql)
}

// LowStock returns rows whose stok_sisa is below threshold, lowest first.
func (r *Repository) LowStock(ctx context.Context, threshold int64) ([]Stock, error) {
	sql := fmt.Sprintf(`
		SELECT %s FROM stok s
		JOIN satuan sat ON sat.id = s.satuan_id
		WHERE s.stok_sisa < $1
		ORDER BY s.stok_sisa ASC`, stockColumns)
	return r.queryStocks(ctx, sql, threshold)
}

// CountByKode reports whether a kode is already taken.
func (r *Repository) CountByKode(ctx context.Context, kode string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM stok WHERE kode = $1", kode).Scan(&n)
	return n, err
}

// Create inserts one stock row outside any batch.
func (r *Repository) Create(ctx context.Context, s Stock) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO stok
			(kode, nama, brand, kategori, sub_kategori_id, harga_idr,
			 stok_masuk, stok_keluar, stok_sisa,
			 satuan_id, lokasi, tanggal_entry, tanggal_masuk, tanggal_keluar, keterangan)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		s.Kode, s.Nama, s.Brand, s.Kategori, s.SubKategoriID, s.HargaIDR,
		s.StokMasuk, s.StokKeluar, s.StokSisa,
		s.SatuanID, s.Lokasi, s.TanggalEntry, s.TanggalMasuk, s.TanggalKeluar, s.Keterangan,
	).Scan(&id)
	return id, err
}

// Update replaces the mutable fields of one stock row. stok_sisa is derived
// from the counters, never written from the request.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateStockRequest) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE stok
		SET nama = $1, brand = $2, kategori = $3, sub_kategori_id = $4, harga_idr = $5,
		    stok_masuk = $6, stok_keluar = $7, stok_sisa = $6 - $7,
		    satuan_id = $8, lokasi = $9, tanggal_entry = $10,
		    tanggal_masuk = $11, tanggal_keluar = $12, keterangan = $13,
		    updated_at = NOW()
		WHERE id = $14`,
		req.Nama, req.Brand, req.Kategori, req.SubKategoriID, req.HargaIDR,
		req.StokMasuk, req.StokKeluar,
		req.SatuanID, req.Lokasi, req.TanggalEntry,
		req.TanggalMasuk, req.TanggalKeluar, req.Keterangan, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes one stock row.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM stok WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecentMovements returns the newest movement rows.
func (r *Repository) RecentMovements(ctx context.Context, limit int64) ([]Movement, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	sql := fmt.Sprintf(`
		SELECT %s FROM stok_movements m
		ORDER BY m.created_at DESC
		LIMIT $1`, movementColumns)
	rows, err := r.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(
			&m.ID, &m.StokID, &m.Jenis, &m.Qty, &m.SatuanID,
			&m.SumberTujuan, &m.Keterangan, &m.JenisPemasukan, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Summarize aggregates the stock table for the dashboard.
func (r *Repository) Summarize(ctx context.Context) (*Summary, error) {
	var sum Summary
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(harga_idr * stok_sisa), 0),
		       COUNT(*) FILTER (WHERE stok_sisa < $1)
		FROM stok`, LowStockThreshold).
		Scan(&sum.TotalItems, &sum.TotalNilai, &sum.LowStockCount)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
