package suratjalan

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbp-ops/sbp-ops/internal/platform/db"
	"github.com/sbp-ops/sbp-ops/internal/shared"
)

const headerColumns = `
	id, tujuan, nomor_surat, tanggal, nomor_kendaraan, no_po,
	keterangan_proyek, created_at, updated_at`

// Repository persists delivery notes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations create and delete run under one
// transaction.
type TxRepository interface {
	InsertHeader(ctx context.Context, h SuratJalan) (int64, error)
	InsertDetail(ctx context.Context, d Detail) error
	GetStockForUpdate(ctx context.Context, kode string) (*StockRef, error)
	ApplyStockOut(ctx context.Context, stokID, keluar, sisa int64, tanggalKeluar shared.Date) error
	InsertMovement(ctx context.Context, stokID, qty, satuanID int64, sumberTujuan, keterangan string) error
	HeaderExists(ctx context.Context, id int64) (bool, error)
	DetailsForRestore(ctx context.Context, id int64) ([]RestoreLine, error)
	RestoreStock(ctx context.Context, kode string, qty int64) error
	DeleteDetails(ctx context.Context, id int64) error
	DeleteHeader(ctx context.Context, id int64) error
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

func (r *txRepo) InsertHeader(ctx context.Context, h SuratJalan) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO surat_jalan
			(tujuan, nomor_surat, tanggal, nomor_kendaraan, no_po, keterangan_proyek)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		h.Tujuan, h.NomorSurat, h.Tanggal, h.NomorKendaraan, h.NoPO, h.KeteranganProyek,
	).Scan(&id)
	return id, err
}

func (r *txRepo) InsertDetail(ctx context.Context, d Detail) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO surat_jalan_detail
			(surat_jalan_id, no_urut, quantity, unit, weight, kode_barang, nama_barang)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.SuratJalanID, d.NoUrut, d.Quantity, d.Unit, d.Weight, d.KodeBarang, d.NamaBarang)
	return err
}

func (r *txRepo) GetStockForUpdate(ctx context.Context, kode string) (*StockRef, error) {
	var s StockRef
	err := r.tx.QueryRow(ctx, `
		SELECT id, stok_sisa, stok_keluar, satuan_id
		FROM stok
		WHERE kode = $1
		FOR UPDATE`, kode).
		Scan(&s.ID, &s.StokSisa, &s.StokKeluar, &s.SatuanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *txRepo) ApplyStockOut(ctx context.Context, stokID, keluar, sisa int64, tanggalKeluar shared.Date) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE stok
		SET stok_keluar = $1, stok_sisa = $2, tanggal_keluar = $3, updated_at = NOW()
		WHERE id = $4`,
		keluar, sisa, tanggalKeluar, stokID)
	return err
}

func (r *txRepo) InsertMovement(ctx context.Context, stokID, qty, satuanID int64, sumberTujuan, keterangan string) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO stok_movements
			(stok_id, jenis, qty, satuan_id, sumber_tujuan, keterangan)
		VALUES ($1, 'KELUAR'::jenis_pergerakan, $2, $3, $4, $5)`,
		stokID, qty, satuanID, sumberTujuan, keterangan)
	return err
}

func (r *txRepo) HeaderExists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.tx.QueryRow(ctx, "SELECT id FROM surat_jalan WHERE id = $1", id).Scan(&found)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *txRepo) DetailsForRestore(ctx context.Context, id int64) ([]RestoreLine, error) {
	rows, err := r.tx.Query(ctx,
		"SELECT kode_barang, quantity FROM surat_jalan_detail WHERE surat_jalan_id = $1", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RestoreLine
	for rows.Next() {
		var l RestoreLine
		if err := rows.Scan(&l.KodeBarang, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *txRepo) RestoreStock(ctx context.Context, kode string, qty int64) error {
	_, err := r.tx.Exec(ctx, `
		UPDATE stok
		SET stok_keluar = stok_keluar - $1, stok_sisa = stok_sisa + $1, updated_at = NOW()
		WHERE kode = $2`,
		qty, kode)
	return err
}

func (r *txRepo) DeleteDetails(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, "DELETE FROM surat_jalan_detail WHERE surat_jalan_id = $1", id)
	return err
}

func (r *txRepo) DeleteHeader(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, "DELETE FROM surat_jalan WHERE id = $1", id)
	return err
}

// List returns a page of delivery notes. The search and sort columns are
// resolved through the allowlists before they touch the SQL string.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]ListRow, int64, error) {
	field := shared.SafeField(q.Field, "nomor_surat", allowedSearchFields)
	sort := shared.SafeField(q.Sort, "id", allowedSortFields)
	order := shared.SafeOrder(q.Order)

	page := q.Page
	if page <= 0 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit

	var (
		total int64
		err   error
	)
	hasSearch := q.Search != ""
	pattern := "%" + q.Search + "%"
	if hasSearch {
		err = r.pool.QueryRow(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM surat_jalan WHERE %s ILIKE $1", field),
			pattern).Scan(&total)
	} else {
		err = r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM surat_jalan").Scan(&total)
	}
	if err != nil {
		return nil, 0, err
	}

	base := `
		SELECT sj.id, sj.tujuan, sj.nomor_surat, sj.tanggal, sj.nomor_kendaraan,
		       sj.no_po, sj.keterangan_proyek, sj.created_at, sj.updated_at,
		       COALESCE((SELECT COUNT(*) FROM surat_jalan_detail d WHERE d.surat_jalan_id = sj.id), 0) AS jumlah_barang
		FROM surat_jalan sj`

	var rows pgx.Rows
	if hasSearch {
		sql := fmt.Sprintf("%s WHERE sj.%s ILIKE $1 ORDER BY sj.%s %s LIMIT $2 OFFSET $3", base, field, sort, order)
		rows, err = r.pool.Query(ctx, sql, pattern, limit, offset)
	} else {
		sql := fmt.Sprintf("%s ORDER BY sj.%s %s LIMIT $1 OFFSET $2", base, sort, order)
		rows, err = r.pool.Query(ctx, sql, limit, offset)
	}
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []ListRow
	for rows.Next() {
		var row ListRow
		if err := rows.Scan(
			&row.ID, &row.Tujuan, &row.NomorSurat, &row.Tanggal, &row.NomorKendaraan,
			&row.NoPO, &row.KeteranganProyek, &row.CreatedAt, &row.UpdatedAt,
			&row.JumlahBarang,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// GetHeader reads one delivery note header.
func (r *Repository) GetHeader(ctx context.Context, id int64) (*SuratJalan, error) {
	var h SuratJalan
	sql := fmt.Sprintf("SELECT %s FROM surat_jalan WHERE id = $1", headerColumns)
	err := r.pool.QueryRow(ctx, sql, id).Scan(
		&h.ID, &h.Tujuan, &h.NomorSurat, &h.Tanggal, &h.NomorKendaraan, &h.NoPO,
		&h.KeteranganProyek, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &h, nil
}

// GetDetails reads the lines of one delivery note in entry order.
func (r *Repository) GetDetails(ctx context.Context, id int64) ([]Detail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, surat_jalan_id, no_urut, quantity, unit, weight, kode_barang, nama_barang
		FROM surat_jalan_detail
		WHERE surat_jalan_id = $1
		ORDER BY no_urut ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		var d Detail
		if err := rows.Scan(
			&d.ID, &d.SuratJalanID, &d.NoUrut, &d.Quantity, &d.Unit, &d.Weight,
			&d.KodeBarang, &d.NamaBarang,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
