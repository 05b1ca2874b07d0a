package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxStore is the transaction-scoped persistence the ledger drives. NewTxStore
// implements it on an open pgx.Tx; modules that move stock embed it in their
// transactional repositories.
type TxStore interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	AddStock(ctx context.Context, productID int64, delta decimal.Decimal) (decimal.Decimal, error)
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// LedgerConfig groups optional ledger settings.
type LedgerConfig struct {
	AllowNegativeStock bool
}

// Ledger applies signed stock deltas inside the caller's transaction and
// journals each one as a movement.
type Ledger struct {
	store    TxStore
	allowNeg bool
	now      func() time.Time
}

// NewLedger binds a ledger to a transaction-scoped store.
func NewLedger(store TxStore, cfg LedgerConfig) *Ledger {
	return &Ledger{store: store, allowNeg: cfg.AllowNegativeStock, now: time.Now}
}

// GetProduct resolves a product or returns ErrProductNotFound.
func (l *Ledger) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	return l.store.GetProduct(ctx, id)
}

// ApplyStockDelta adds delta.Amount to the product's stock. A decrease that
// leaves stock below zero fails with ErrNegativeStock unless allowed. The
// caller must roll back its transaction when an error is returned.
func (l *Ledger) ApplyStockDelta(ctx context.Context, delta StockDelta, ref Reference) (Movement, error) {
	return l.apply(ctx, delta, ref, delta.Amount.IsNegative())
}

// ApplyAll applies deltas in order, stopping at the first failure.
func (l *Ledger) ApplyAll(ctx context.Context, deltas []StockDelta, ref Reference) error {
	for _, d := range deltas {
		if _, err := l.ApplyStockDelta(ctx, d, ref); err != nil {
			return err
		}
	}
	return nil
}

// Posting is a batch of deltas journalled under one reference.
type Posting struct {
	Deltas []StockDelta
	Ref    Reference
}

// ApplyPostings journals every posting in order, then checks the
// negative-stock guard once per product: only a product whose net change is
// a decrease and whose final balance is below zero fails.
func (l *Ledger) ApplyPostings(ctx context.Context, postings ...Posting) error {
	var order []int64
	net := make(map[int64]decimal.Decimal)
	final := make(map[int64]decimal.Decimal)
	for _, p := range postings {
		for _, d := range p.Deltas {
			m, err := l.apply(ctx, d, p.Ref, false)
			if err != nil {
				return err
			}
			if _, seen := net[d.ProductID]; !seen {
				order = append(order, d.ProductID)
			}
			net[d.ProductID] = net[d.ProductID].Add(d.Amount)
			final[d.ProductID] = m.BalanceAfter
		}
	}
	for _, id := range order {
		if net[id].IsNegative() {
			if err := l.guard(id, final[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Ledger) guard(productID int64, balance decimal.Decimal) error {
	if balance.IsNegative() && !l.allowNeg {
		return fmt.Errorf("%w: product %d would hold %s", ErrNegativeStock, productID, balance.String())
	}
	return nil
}

func (l *Ledger) apply(ctx context.Context, delta StockDelta, ref Reference, checkBalance bool) (Movement, error) {
	if delta.Amount.IsZero() {
		return Movement{}, ErrZeroDelta
	}
	balance, err := l.store.AddStock(ctx, delta.ProductID, delta.Amount)
	if err != nil {
		return Movement{}, err
	}
	if checkBalance {
		if err := l.guard(delta.ProductID, balance); err != nil {
			return Movement{}, err
		}
	}
	if ref.TraceID == uuid.Nil {
		ref.TraceID = uuid.New()
	}
	m := Movement{
		ProductID:    delta.ProductID,
		Delta:        delta.Amount,
		BalanceAfter: balance,
		RefModule:    ref.Module,
		RefID:        ref.ID,
		Reason:       ref.Reason,
		TraceID:      ref.TraceID,
		CreatedAt:    l.now(),
	}
	id, err := l.store.InsertMovement(ctx, m)
	if err != nil {
		return Movement{}, err
	}
	m.ID = id
	return m, nil
}
