package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProduct reads a product outside any transaction.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	if r == nil {
		return Product{}, errors.New("inventory repository not initialised")
	}
	return getProduct(ctx, r.pool, id)
}

// ListMovements returns the stock card of a product, newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("inventory repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, delta, balance_after, ref_module, ref_id, reason, trace_id, created_at
FROM stock_movements WHERE product_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		filter.ProductID, filter.Window.Limit, filter.Window.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Delta, &m.BalanceAfter, &m.RefModule, &m.RefID, &m.Reason, &m.TraceID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// NewTxStore returns a TxStore running its statements on q.
func NewTxStore(q Querier) TxStore {
	return &txStore{q: q}
}

type txStore struct {
	q Querier
}

func (s *txStore) GetProduct(ctx context.Context, id int64) (Product, error) {
	return getProduct(ctx, s.q, id)
}

// AddStock relies on the row lock taken by UPDATE to serialise concurrent deltas.
func (s *txStore) AddStock(ctx context.Context, productID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.q.QueryRow(ctx, `UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id=$1 RETURNING stock`, productID, delta).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *txStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO stock_movements (product_id, delta, balance_after, ref_module, ref_id, reason, trace_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		m.ProductID, m.Delta, m.BalanceAfter, m.RefModule, m.RefID, string(m.Reason), m.TraceID, m.CreatedAt).Scan(&id)
	return id, err
}

func getProduct(ctx context.Context, q Querier, id int64) (Product, error) {
	var p Product
	err := q.QueryRow(ctx, `SELECT id, sku, name, stock, cost, margin_percent, tax_applicable, tax_percent, unit_of_measure, conversion_factor, updated_at
FROM products WHERE id=$1`, id).Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.Cost, &p.MarginPercent, &p.TaxApplicable, &p.TaxPercent, &p.UnitOfMeasure, &p.ConversionFactor, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
		}
		return Product{}, err
	}
	return p, nil
}
