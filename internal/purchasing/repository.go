package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/petcare/internal/inventory"
	"github.com/odyssey-erp/petcare/internal/platform/db"
	"github.com/odyssey-erp/petcare/internal/shared"
	"github.com/odyssey-erp/petcare/internal/suppliers"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
	SupplierSummary(ctx context.Context, filter SummaryFilter) ([]SupplierSummary, error)
}

// TxRepository exposes transactional operations. It embeds the ledger store
// so stock deltas commit or roll back together with the order.
type TxRepository interface {
	inventory.TxStore
	GetSupplierForShare(ctx context.Context, id int64) (suppliers.Supplier, error)
	LockOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	UpdateOrderHeader(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	InsertLines(ctx context.Context, orderID int64, lines []LineItem) ([]LineItem, error)
	DeleteLines(ctx context.Context, orderID int64) error
	SetStatus(ctx context.Context, id int64, status Status, cancelledAt time.Time) error
	DeleteOrder(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type querier = inventory.Querier

type txRepo struct {
	inventory.TxStore
	tx pgx.Tx
}

// WithTx runs fn in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxStore: inventory.NewTxStore(tx), tx: tx})
	})
}

const orderColumns = `id, number, supplier_id, order_date, subtotal, tax_total, total_with_tax, status, note, created_at, updated_at, cancelled_at`

const lineColumns = `id, purchase_order_id, line_number, product_id, quantity, unit_cost, unit_tax, subtotal, subtotal_with_tax,
unit_of_measure, conversion_factor, converted_quantity, suggested_sale_price`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.Date, &po.Subtotal, &po.TaxTotal, &po.TotalWithTax, &po.Status, &po.Note, &po.CreatedAt, &po.UpdatedAt, &po.CancelledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return po, err
}

func loadLines(ctx context.Context, q querier, orderID int64) ([]LineItem, error) {
	rows, err := q.Query(ctx, `SELECT `+lineColumns+` FROM purchase_order_lines WHERE purchase_order_id = $1 ORDER BY line_number`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []LineItem
	for rows.Next() {
		var l LineItem
		if err := rows.Scan(&l.ID, &l.PurchaseOrderID, &l.LineNumber, &l.ProductID, &l.Quantity, &l.UnitCost, &l.UnitTax, &l.Subtotal, &l.SubtotalWithTax,
			&l.UnitOfMeasure, &l.ConversionFactor, &l.ConvertedQuantity, &l.SuggestedSalePrice); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// GetOrder returns header and lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadLines(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// ListOrders returns headers matching filter, newest first.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(clause, len(args))
	}
	if filter.SupplierID > 0 {
		add(` AND supplier_id = $%d`, filter.SupplierID)
	}
	if !filter.From.IsZero() {
		add(` AND order_date >= $%d`, filter.From)
	}
	if !filter.To.IsZero() {
		add(` AND order_date <= $%d`, filter.To)
	}
	if filter.Status != "" {
		add(` AND status = $%d`, string(filter.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Window.Limit, filter.Window.Offset)
	query := `SELECT ` + orderColumns + ` FROM purchase_orders` + where +
		` ORDER BY order_date DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, po)
	}
	return out, total, rows.Err()
}

// SupplierSummary aggregates effective orders per supplier.
func (r *Repository) SupplierSummary(ctx context.Context, filter SummaryFilter) ([]SupplierSummary, error) {
	var from, to *time.Time
	if !filter.From.IsZero() {
		from = &filter.From
	}
	if !filter.To.IsZero() {
		to = &filter.To
	}
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.legal_name, s.tax_document, COUNT(po.id),
	COALESCE(SUM(po.subtotal), 0), COALESCE(SUM(po.tax_total), 0), COALESCE(SUM(po.total_with_tax), 0)
FROM purchase_orders po
JOIN suppliers s ON s.id = po.supplier_id
WHERE po.status = 'EFFECTIVE'
	AND ($1::date IS NULL OR po.order_date >= $1::date)
	AND ($2::date IS NULL OR po.order_date <= $2::date)
GROUP BY s.id, s.legal_name, s.tax_document
ORDER BY s.legal_name, s.id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SupplierSummary
	for rows.Next() {
		var s SupplierSummary
		if err := rows.Scan(&s.SupplierID, &s.LegalName, &s.TaxDocument, &s.OrderCount, &s.Subtotal, &s.TaxTotal, &s.TotalWithTax); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetSupplierForShare blocks a concurrent supplier delete until commit.
func (t *txRepo) GetSupplierForShare(ctx context.Context, id int64) (suppliers.Supplier, error) {
	var s suppliers.Supplier
	err := t.tx.QueryRow(ctx, `SELECT id, legal_name, tax_document, status FROM suppliers WHERE id = $1 FOR SHARE`, id).
		Scan(&s.ID, &s.LegalName, &s.TaxDocument, &s.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return suppliers.Supplier{}, fmt.Errorf("%w: id %d", suppliers.ErrSupplierNotFound, id)
	}
	return s, err
}

func (t *txRepo) LockOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Lines, err = loadLines(ctx, t.tx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (t *txRepo) InsertOrder(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, supplier_id, order_date, subtotal, tax_total, total_with_tax, status, note)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at, updated_at`,
		po.Number, po.SupplierID, po.Date, po.Subtotal, po.TaxTotal, po.TotalWithTax, string(po.Status), po.Note).
		Scan(&po.ID, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return PurchaseOrder{}, fmt.Errorf("%w: %s", ErrDuplicateNumber, po.Number)
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (t *txRepo) UpdateOrderHeader(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := t.tx.QueryRow(ctx, `UPDATE purchase_orders SET number = $1, supplier_id = $2, order_date = $3, subtotal = $4, tax_total = $5,
	total_with_tax = $6, note = $7, updated_at = NOW()
WHERE id = $8 RETURNING created_at, updated_at`,
		po.Number, po.SupplierID, po.Date, po.Subtotal, po.TaxTotal, po.TotalWithTax, po.Note, po.ID).
		Scan(&po.CreatedAt, &po.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return PurchaseOrder{}, fmt.Errorf("%w: %s", ErrDuplicateNumber, po.Number)
		}
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (t *txRepo) InsertLines(ctx context.Context, orderID int64, lines []LineItem) ([]LineItem, error) {
	out := make([]LineItem, 0, len(lines))
	for _, l := range lines {
		l.PurchaseOrderID = orderID
		err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_lines (purchase_order_id, line_number, product_id, quantity, unit_cost, unit_tax,
	subtotal, subtotal_with_tax, unit_of_measure, conversion_factor, converted_quantity, suggested_sale_price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
			orderID, l.LineNumber, l.ProductID, l.Quantity, l.UnitCost, l.UnitTax,
			l.Subtotal, l.SubtotalWithTax, l.UnitOfMeasure, l.ConversionFactor, l.ConvertedQuantity, l.SuggestedSalePrice).Scan(&l.ID)
		if err != nil {
			if shared.IsForeignKeyViolation(err) {
				return nil, fmt.Errorf("line %d: %w: id %d", l.LineNumber, inventory.ErrProductNotFound, l.ProductID)
			}
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (t *txRepo) DeleteLines(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE purchase_order_id = $1`, orderID)
	return err
}

func (t *txRepo) SetStatus(ctx context.Context, id int64, status Status, cancelledAt time.Time) error {
	var at *time.Time
	if !cancelledAt.IsZero() {
		at = &cancelledAt
	}
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status = $1, cancelled_at = $2, updated_at = NOW() WHERE id = $3`, string(status), at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepo) DeleteOrder(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
