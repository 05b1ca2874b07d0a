package purchasing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/petcare/internal/inventory"
	"github.com/odyssey-erp/petcare/internal/shared"
	"github.com/odyssey-erp/petcare/internal/suppliers"
)

type memState struct {
	products  map[int64]inventory.Product
	suppliers map[int64]suppliers.Supplier
	orders    map[int64]PurchaseOrder
	movements []inventory.Movement
	nextOrder int64
	nextLine  int64
}

func (s *memState) clone() *memState {
	out := &memState{
		products:  make(map[int64]inventory.Product, len(s.products)),
		suppliers: make(map[int64]suppliers.Supplier, len(s.suppliers)),
		orders:    make(map[int64]PurchaseOrder, len(s.orders)),
		movements: append([]inventory.Movement(nil), s.movements...),
		nextOrder: s.nextOrder,
		nextLine:  s.nextLine,
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.suppliers {
		out.suppliers[k] = v
	}
	for k, v := range s.orders {
		v.Lines = append([]LineItem(nil), v.Lines...)
		out.orders[k] = v
	}
	return out
}

// memoryRepo commits a transaction by swapping in the working copy, so a
// failed callback leaves the committed state untouched.
type memoryRepo struct {
	mu         sync.Mutex
	state      *memState
	commitErr  error
	summaryHit int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memState{
		products:  map[int64]inventory.Product{},
		suppliers: map[int64]suppliers.Supplier{},
		orders:    map[int64]PurchaseOrder{},
	}}
}

func (r *memoryRepo) addProduct(p inventory.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ConversionFactor.IsZero() {
		p.ConversionFactor = decimal.NewFromInt(1)
	}
	if p.UnitOfMeasure == "" {
		p.UnitOfMeasure = "UNIT"
	}
	r.state.products[p.ID] = p
}

func (r *memoryRepo) addSupplier(s suppliers.Supplier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Status == "" {
		s.Status = suppliers.StatusActive
	}
	r.state.suppliers[s.ID] = s
}

func (r *memoryRepo) stock(id int64) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.products[id].Stock
}

func (r *memoryRepo) setStock(id int64, v decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.state.products[id]
	p.Stock = v
	r.state.products[id] = p
}

func (r *memoryRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.orders)
}

func (r *memoryRepo) movements() []inventory.Movement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]inventory.Movement(nil), r.state.movements...)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	work := r.state.clone()
	if err := fn(ctx, &memoryTx{s: work}); err != nil {
		return err
	}
	if r.commitErr != nil {
		return fmt.Errorf("%w: commit: %w", shared.ErrStorage, r.commitErr)
	}
	r.state = work
	return nil
}

func (r *memoryRepo) GetOrder(_ context.Context, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.state.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	po.Lines = append([]LineItem(nil), po.Lines...)
	return po, nil
}

func (r *memoryRepo) ListOrders(_ context.Context, f ListFilter) ([]PurchaseOrder, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []PurchaseOrder
	for _, po := range r.state.orders {
		if f.SupplierID > 0 && po.SupplierID != f.SupplierID {
			continue
		}
		if !f.From.IsZero() && po.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && po.Date.After(f.To) {
			continue
		}
		if f.Status != "" && po.Status != f.Status {
			continue
		}
		po.Lines = nil
		out = append(out, po)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	total := len(out)
	if f.Window.Offset < len(out) {
		out = out[f.Window.Offset:]
	} else {
		out = nil
	}
	if f.Window.Limit > 0 && len(out) > f.Window.Limit {
		out = out[:f.Window.Limit]
	}
	return out, total, nil
}

func (r *memoryRepo) SupplierSummary(_ context.Context, f SummaryFilter) ([]SupplierSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaryHit++
	bySupplier := map[int64]*SupplierSummary{}
	for _, po := range r.state.orders {
		if po.Status != StatusEffective {
			continue
		}
		if (!f.From.IsZero() && po.Date.Before(f.From)) || (!f.To.IsZero() && po.Date.After(f.To)) {
			continue
		}
		row, ok := bySupplier[po.SupplierID]
		if !ok {
			sup := r.state.suppliers[po.SupplierID]
			row = &SupplierSummary{SupplierID: sup.ID, LegalName: sup.LegalName, TaxDocument: sup.TaxDocument}
			bySupplier[po.SupplierID] = row
		}
		row.OrderCount++
		row.Subtotal = row.Subtotal.Add(po.Subtotal)
		row.TaxTotal = row.TaxTotal.Add(po.TaxTotal)
		row.TotalWithTax = row.TotalWithTax.Add(po.TotalWithTax)
	}
	out := make([]SupplierSummary, 0, len(bySupplier))
	for _, row := range bySupplier {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out, nil
}

type memoryTx struct {
	s *memState
}

func (t *memoryTx) GetProduct(_ context.Context, id int64) (inventory.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return inventory.Product{}, fmt.Errorf("%w: id %d", inventory.ErrProductNotFound, id)
	}
	return p, nil
}

func (t *memoryTx) AddStock(_ context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	p, ok := t.s.products[id]
	if !ok {
		return decimal.Zero, inventory.ErrProductNotFound
	}
	p.Stock = p.Stock.Add(delta)
	t.s.products[id] = p
	return p.Stock, nil
}

func (t *memoryTx) InsertMovement(_ context.Context, m inventory.Movement) (int64, error) {
	m.ID = int64(len(t.s.movements) + 1)
	t.s.movements = append(t.s.movements, m)
	return m.ID, nil
}

func (t *memoryTx) GetSupplierForShare(_ context.Context, id int64) (suppliers.Supplier, error) {
	s, ok := t.s.suppliers[id]
	if !ok {
		return suppliers.Supplier{}, suppliers.ErrSupplierNotFound
	}
	return s, nil
}

func (t *memoryTx) LockOrder(_ context.Context, id int64) (PurchaseOrder, error) {
	po, ok := t.s.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	po.Lines = append([]LineItem(nil), po.Lines...)
	return po, nil
}

func (t *memoryTx) InsertOrder(_ context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	for _, existing := range t.s.orders {
		if existing.Number == po.Number {
			return PurchaseOrder{}, ErrDuplicateNumber
		}
	}
	t.s.nextOrder++
	po.ID = t.s.nextOrder
	po.CreatedAt = time.Now()
	po.UpdatedAt = po.CreatedAt
	t.s.orders[po.ID] = po
	return po, nil
}

func (t *memoryTx) UpdateOrderHeader(_ context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	current, ok := t.s.orders[po.ID]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	po.CreatedAt = current.CreatedAt
	po.UpdatedAt = time.Now()
	po.Lines = current.Lines
	t.s.orders[po.ID] = po
	return po, nil
}

func (t *memoryTx) InsertLines(_ context.Context, orderID int64, lines []LineItem) ([]LineItem, error) {
	po, ok := t.s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	out := make([]LineItem, 0, len(lines))
	for _, l := range lines {
		t.s.nextLine++
		l.ID = t.s.nextLine
		l.PurchaseOrderID = orderID
		out = append(out, l)
	}
	po.Lines = append(po.Lines, out...)
	t.s.orders[orderID] = po
	return out, nil
}

func (t *memoryTx) DeleteLines(_ context.Context, orderID int64) error {
	po, ok := t.s.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	po.Lines = nil
	t.s.orders[orderID] = po
	return nil
}

func (t *memoryTx) SetStatus(_ context.Context, id int64, status Status, at time.Time) error {
	po, ok := t.s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	po.Status = status
	if !at.IsZero() {
		po.CancelledAt = &at
	}
	t.s.orders[id] = po
	return nil
}

func (t *memoryTx) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := t.s.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(t.s.orders, id)
	return nil
}

type memoryIdempotency struct {
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

type countingMetrics struct {
	ok, failed map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{ok: map[string]int{}, failed: map[string]int{}}
}

func (m *countingMetrics) ObservePurchaseOrder(op string, err error) {
	if err != nil {
		m.failed[op]++
		return
	}
	m.ok[op]++
}

type memoryAudit struct {
	actions []string
}

func (a *memoryAudit) Record(_ context.Context, log shared.AuditLog) error {
	if log.Action == "" {
		return errors.New("audit: action required")
	}
	a.actions = append(a.actions, log.Action)
	return nil
}
