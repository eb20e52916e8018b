package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbp-ops/sbp-ops/internal/shared"
)

const productColumns = `
	id, kode, nama, brand, kategori::text, satuan::text, harga_idr,
	created_at, updated_at`

// Repository persists product and satuan master data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Kode, &p.Nama, &p.Brand, &p.Kategori, &p.Satuan, &p.HargaIDR,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns products filtered by brand substring and exact kategori.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]Product, error) {
	sql := `SELECT ` + productColumns + ` FROM product`
	var args []any
	var conds []string
	if q.Brand != "" {
		args = append(args, "%"+q.Brand+"%")
		conds = append(conds, fmt.Sprintf("brand ILIKE $%d", len(args)))
	}
	if q.Kategori != "" {
		args = append(args, q.Kategori)
		conds = append(conds, fmt.Sprintf("kategori::text = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			sql += " WHERE " + c
		} else {
			sql += " AND " + c
		}
	}
	sql += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Get returns one product by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM product WHERE id = $1`, id)
	return scanProduct(row)
}

// GetByKode returns one product by its uppercase code.
func (r *Repository) GetByKode(ctx context.Context, kodeUpper string) (*Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM product WHERE UPPER(kode) = $1`, kodeUpper)
	return scanProduct(row)
}

// Search returns products whose code or name starts with the uppercase
// pattern.
func (r *Repository) Search(ctx context.Context, pattern string, limit int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+productColumns+`
		FROM product
		WHERE UPPER(kode) LIKE $1 OR UPPER(nama) LIKE $1
		ORDER BY kode ASC
		LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a product and returns the stored row.
func (r *Repository) Create(ctx context.Context, p Product) (*Product, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO product (kode, nama, brand, kategori, satuan, harga_idr)
		VALUES ($1, $2, $3, $4::kategori_produk, $5::satuan_produk, $6)
		RETURNING `+productColumns,
		p.Kode, p.Nama, p.Brand, p.Kategori, p.Satuan, p.HargaIDR)
	return scanProduct(row)
}

// Update applies a partial update. Nil fields keep the stored value.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateRequest) (*Product, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE product
		SET nama       = COALESCE($2, nama),
		    brand      = COALESCE($3, brand),
		    kategori   = COALESCE($4::kategori_produk, kategori),
		    satuan     = COALESCE($5::satuan_produk, satuan),
		    harga_idr  = COALESCE($6, harga_idr),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, req.Nama, req.Brand, req.Kategori, req.Satuan, req.HargaIDR)
	return scanProduct(row)
}

// Delete removes a product and returns the deleted row.
func (r *Repository) Delete(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx,
		`DELETE FROM product WHERE id = $1 RETURNING `+productColumns, id)
	return scanProduct(row)
}

// ListSatuan returns every satuan ordered by code.
func (r *Repository) ListSatuan(ctx context.Context) ([]Satuan, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, kode, nama FROM satuan ORDER BY kode ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Satuan
	for rows.Next() {
		var s Satuan
		if err := rows.Scan(&s.ID, &s.Kode, &s.Nama); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSatuan returns one satuan by id.
func (r *Repository) GetSatuan(ctx context.Context, id int64) (*Satuan, error) {
	var s Satuan
	err := r.pool.QueryRow(ctx,
		`SELECT id, kode, nama FROM satuan WHERE id = $1`, id).
		Scan(&s.ID, &s.Kode, &s.Nama)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// CountSatuanKode counts satuan rows with the given code, excluding one id.
// Pass excludeID 0 to count all.
func (r *Repository) CountSatuanKode(ctx context.Context, kode string, excludeID int64) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM satuan WHERE kode = $1 AND id <> $2`, kode, excludeID).Scan(&n)
	return n, err
}

// CreateSatuan inserts a satuan row.
func (r *Repository) CreateSatuan(ctx context.Context, kode, nama string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO satuan (kode, nama) VALUES ($1, $2)`, kode, nama)
	return err
}

// UpdateSatuan replaces a satuan row. Returns false when the id is unknown.
func (r *Repository) UpdateSatuan(ctx context.Context, id int64, kode, nama string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE satuan SET kode = $1, nama = $2 WHERE id = $3`, kode, nama, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteSatuan removes a satuan row. Returns false when the id is unknown.
func (r *Repository) DeleteSatuan(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM satuan WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
