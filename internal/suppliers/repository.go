package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/petcare/internal/platform/db"
	"github.com/odyssey-erp/petcare/internal/shared"
)

// Repository abstracts supplier persistence for the service.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	FindByTaxDocument(ctx context.Context, taxDocument string) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, supplier Supplier) (Supplier, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Catalog(ctx context.Context, supplierID int64) ([]CatalogItem, error)
	DerivedCatalog(ctx context.Context, supplierID int64) ([]CatalogItem, error)
	UpsertCatalogItem(ctx context.Context, item CatalogItem) (CatalogItem, error)
}

// TxRepository exposes the operations of a supplier delete.
type TxRepository interface {
	LockSupplier(ctx context.Context, id int64) (Supplier, error)
	ListDependents(ctx context.Context, supplierID int64) ([]shared.Dependent, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const supplierColumns = `id, legal_name, tax_document, email, phone, address, status, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.LegalName, &s.TaxDocument, &s.Email, &s.Phone, &s.Address, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	return s, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (legal_name ILIKE $` + n + ` OR tax_document ILIKE $` + n + `)`
	}
	if filters.Status != "" {
		args = append(args, string(filters.Status))
		where += ` AND status = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	window := shared.NewWindow(filters.Window.Limit, filters.Window.Offset)
	args = append(args, window.Limit, window.Offset)
	query := `SELECT ` + supplierColumns + ` FROM suppliers` + where +
		` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir) +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(r.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
}

func (r *repository) FindByTaxDocument(ctx context.Context, taxDocument string) (Supplier, error) {
	return scanSupplier(r.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE tax_document = $1`, taxDocument))
}

func (r *repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (legal_name, tax_document, email, phone, address, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		s.LegalName, s.TaxDocument, s.Email, s.Phone, s.Address, string(s.Status), now).Scan(&s.ID)
	if err != nil {
		return Supplier{}, mapWriteError(err)
	}
	s.CreatedAt = now
	s.UpdatedAt = now
	return s, nil
}

func (r *repository) Update(ctx context.Context, s Supplier) (Supplier, error) {
	err := r.db.QueryRow(ctx, `UPDATE suppliers SET legal_name = $1, tax_document = $2, email = $3, phone = $4, address = $5, status = $6, updated_at = NOW()
WHERE id = $7 RETURNING created_at, updated_at`,
		s.LegalName, s.TaxDocument, s.Email, s.Phone, s.Address, string(s.Status), s.ID).Scan(&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrSupplierNotFound
	}
	if err != nil {
		return Supplier{}, mapWriteError(err)
	}
	return s, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) Catalog(ctx context.Context, supplierID int64) ([]CatalogItem, error) {
	rows, err := r.db.Query(ctx, `SELECT sp.supplier_id, sp.product_id, p.sku, p.name, sp.supplier_sku, sp.last_cost, sp.updated_at
FROM supplier_products sp JOIN products p ON p.id = sp.product_id
WHERE sp.supplier_id = $1 ORDER BY p.name, p.id`, supplierID)
	if err != nil {
		return nil, err
	}
	return collectCatalog(rows)
}

// DerivedCatalog lists the distinct products ever bought from the supplier
// together with the unit cost of the most recent purchase.
func (r *repository) DerivedCatalog(ctx context.Context, supplierID int64) ([]CatalogItem, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT ON (l.product_id) po.supplier_id, l.product_id, p.sku, p.name, '' AS supplier_sku, l.unit_cost, po.updated_at
FROM purchase_order_lines l
JOIN purchase_orders po ON po.id = l.purchase_order_id
JOIN products p ON p.id = l.product_id
WHERE po.supplier_id = $1
ORDER BY l.product_id, po.order_date DESC, po.id DESC`, supplierID)
	if err != nil {
		return nil, err
	}
	return collectCatalog(rows)
}

func (r *repository) UpsertCatalogItem(ctx context.Context, item CatalogItem) (CatalogItem, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO supplier_products (supplier_id, product_id, supplier_sku, last_cost, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (supplier_id, product_id) DO UPDATE SET supplier_sku = EXCLUDED.supplier_sku, last_cost = EXCLUDED.last_cost, updated_at = NOW()
RETURNING updated_at`, item.SupplierID, item.ProductID, item.SupplierSKU, item.LastCost).Scan(&item.UpdatedAt)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			if shared.ConstraintName(err) == "supplier_products_supplier_id_fkey" {
				return CatalogItem{}, ErrSupplierNotFound
			}
			return CatalogItem{}, fmt.Errorf("%w: id %d", ErrUnknownProduct, item.ProductID)
		}
		return CatalogItem{}, err
	}
	if err := r.db.QueryRow(ctx, `SELECT sku, name FROM products WHERE id = $1`, item.ProductID).Scan(&item.ProductSKU, &item.ProductName); err != nil {
		return CatalogItem{}, err
	}
	return item, nil
}

func collectCatalog(rows pgx.Rows) ([]CatalogItem, error) {
	defer rows.Close()
	var out []CatalogItem
	for rows.Next() {
		var it CatalogItem
		if err := rows.Scan(&it.SupplierID, &it.ProductID, &it.ProductSKU, &it.ProductName, &it.SupplierSKU, &it.LastCost, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// LockSupplier takes the row lock that conflicts with the FOR SHARE lock
// purchase order writers hold on the same supplier.
func (t *txRepository) LockSupplier(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(t.tx.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepository) ListDependents(ctx context.Context, supplierID int64) ([]shared.Dependent, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, number, order_date, status FROM purchase_orders WHERE supplier_id = $1 ORDER BY order_date, id`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var deps []shared.Dependent
	for rows.Next() {
		d := shared.Dependent{Kind: "purchase_order"}
		if err := rows.Scan(&d.ID, &d.Label, &d.Date, &d.Status); err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, rows.Err()
}

func (t *txRepository) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return fmt.Errorf("suppliers: supplier %d still referenced: %w", id, shared.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSupplierNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	if shared.IsUniqueViolation(err) {
		return ErrDuplicateTaxDocument
	}
	return err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "tax_document":
		return "tax_document " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "legal_name " + dir + ", id"
	}
}
