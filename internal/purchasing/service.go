package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/petcare/internal/inventory"
	"github.com/odyssey-erp/petcare/internal/shared"
	"github.com/odyssey-erp/petcare/internal/suppliers"
)

// IdempotencyModule namespaces purchase order creation keys.
const IdempotencyModule = "purchasing.create"

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed create requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsPort counts engine operations by outcome.
type MetricsPort interface {
	ObservePurchaseOrder(operation string, err error)
}

// SummaryCache is the versioned cache behind the supplier summary.
type SummaryCache interface {
	BuildKey(ctx context.Context, parts ...string) (string, error)
	FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context) error
}

// Config groups engine settings read at startup.
type Config struct {
	AllowNegativeStock bool
}

// Deps carries the optional collaborators of Service. Nil members are skipped.
type Deps struct {
	Audit       AuditPort
	Idempotency IdempotencyPort
	Metrics     MetricsPort
	Cache       SummaryCache
}

// Service is the purchase order engine.
type Service struct {
	repo      RepositoryPort
	deps      Deps
	ledgerCfg inventory.LedgerConfig
	validate  *validator.Validate
	now       func() time.Time
}

// NewService constructs the engine.
func NewService(repo RepositoryPort, cfg Config, deps Deps) *Service {
	return &Service{
		repo:      repo,
		deps:      deps,
		ledgerCfg: inventory.LedgerConfig{AllowNegativeStock: cfg.AllowNegativeStock},
		validate:  shared.NewValidator(),
		now:       time.Now,
	}
}

// Create records a purchase order and applies its stock as one atomic unit.
// A non-empty idempotencyKey that was already processed is rejected.
func (s *Service) Create(ctx context.Context, in OrderInput, idempotencyKey string) (po PurchaseOrder, err error) {
	defer func() { s.observe("create", err) }()

	in, err = s.normalise(in)
	if err != nil {
		return PurchaseOrder{}, err
	}
	insertedKey := false
	if idempotencyKey != "" && s.deps.Idempotency != nil {
		if err := s.deps.Idempotency.CheckAndInsert(ctx, idempotencyKey, IdempotencyModule); err != nil {
			return PurchaseOrder{}, err
		}
		insertedKey = true
	}
	if in.Number == "" {
		in.Number = generateNumber("PO", s.now())
	}

	trace := uuid.New()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.requireSupplier(ctx, tx, in.SupplierID, true); err != nil {
			return err
		}
		ledger := inventory.NewLedger(tx, s.ledgerCfg)
		lines, deltas, totals, err := BuildLines(ctx, ledger, in.Lines)
		if err != nil {
			return err
		}
		created, err := tx.InsertOrder(ctx, PurchaseOrder{
			Number:       in.Number,
			SupplierID:   in.SupplierID,
			Date:         in.Date,
			Subtotal:     totals.Subtotal,
			TaxTotal:     totals.TaxTotal,
			TotalWithTax: totals.TotalWithTax,
			Status:       StatusEffective,
			Note:         in.Note,
		})
		if err != nil {
			return err
		}
		created.Lines, err = tx.InsertLines(ctx, created.ID, lines)
		if err != nil {
			return err
		}
		if err := ledger.ApplyAll(ctx, deltas, purchaseRef(created.ID, inventory.ReasonPurchaseCreate, trace)); err != nil {
			return err
		}
		po = created
		return nil
	})
	if err != nil {
		if insertedKey {
			_ = s.deps.Idempotency.Delete(ctx, idempotencyKey)
		}
		return PurchaseOrder{}, err
	}
	s.afterWrite(ctx, "PURCHASE_ORDER_CREATE", po.ID, map[string]any{
		"number":      po.Number,
		"supplier_id": po.SupplierID,
		"lines":       len(po.Lines),
		"total":       po.TotalWithTax.String(),
		"trace_id":    trace.String(),
	})
	return po, nil
}

// Update replaces the header and lines of an effective order. The previous
// lines' stock is reversed before the new lines are applied, so the net
// effect equals cancelling and recreating the order under the same id.
func (s *Service) Update(ctx context.Context, id int64, in OrderInput) (po PurchaseOrder, err error) {
	defer func() { s.observe("update", err) }()

	if id <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: invalid purchase order id", shared.ErrValidation)
	}
	in, err = s.normalise(in)
	if err != nil {
		return PurchaseOrder{}, err
	}

	trace := uuid.New()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusEffective {
			return ErrAlreadyCancelled
		}
		if err := s.requireSupplier(ctx, tx, in.SupplierID, in.SupplierID != current.SupplierID); err != nil {
			return err
		}
		ledger := inventory.NewLedger(tx, s.ledgerCfg)
		reversal := inventory.Posting{
			Deltas: ReversalDeltas(current.Lines),
			Ref:    purchaseRef(id, inventory.ReasonPurchaseUpdateReversal, trace),
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		lines, deltas, totals, err := BuildLines(ctx, ledger, in.Lines)
		if err != nil {
			return err
		}
		number := in.Number
		if number == "" {
			number = current.Number
		}
		updated, err := tx.UpdateOrderHeader(ctx, PurchaseOrder{
			ID:           id,
			Number:       number,
			SupplierID:   in.SupplierID,
			Date:         in.Date,
			Subtotal:     totals.Subtotal,
			TaxTotal:     totals.TaxTotal,
			TotalWithTax: totals.TotalWithTax,
			Status:       current.Status,
			Note:         in.Note,
		})
		if err != nil {
			return err
		}
		updated.Lines, err = tx.InsertLines(ctx, id, lines)
		if err != nil {
			return err
		}
		// The negative-stock guard sees the net change per product.
		if err := ledger.ApplyPostings(ctx, reversal, inventory.Posting{
			Deltas: deltas,
			Ref:    purchaseRef(id, inventory.ReasonPurchaseUpdate, trace),
		}); err != nil {
			return err
		}
		po = updated
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.afterWrite(ctx, "PURCHASE_ORDER_UPDATE", id, map[string]any{
		"lines":    len(po.Lines),
		"total":    po.TotalWithTax.String(),
		"trace_id": trace.String(),
	})
	return po, nil
}

// ChangeStatus performs the only legal transition, EFFECTIVE to CANCELLED,
// reversing every line's stock in the same transaction.
func (s *Service) ChangeStatus(ctx context.Context, id int64, target Status) (po PurchaseOrder, err error) {
	defer func() { s.observe("change_status", err) }()

	if id <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: invalid purchase order id", shared.ErrValidation)
	}
	trace := uuid.New()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusEffective || target != StatusCancelled {
			return fmt.Errorf("purchasing: %s to %q: %w", current.Status, target, shared.ErrInvalidTransition)
		}
		ledger := inventory.NewLedger(tx, s.ledgerCfg)
		if err := ledger.ApplyAll(ctx, ReversalDeltas(current.Lines), purchaseRef(id, inventory.ReasonPurchaseCancel, trace)); err != nil {
			return err
		}
		at := s.now().UTC()
		if err := tx.SetStatus(ctx, id, StatusCancelled, at); err != nil {
			return err
		}
		current.Status = StatusCancelled
		current.CancelledAt = &at
		current.UpdatedAt = at
		po = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.afterWrite(ctx, "PURCHASE_ORDER_CANCEL", id, map[string]any{"trace_id": trace.String()})
	return po, nil
}

// Delete removes an order and its lines, reversing its stock first when the
// order is still effective.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer func() { s.observe("delete", err) }()

	if id <= 0 {
		return fmt.Errorf("%w: invalid purchase order id", shared.ErrValidation)
	}
	trace := uuid.New()
	var was Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		was = current.Status
		if current.Status == StatusEffective {
			ledger := inventory.NewLedger(tx, s.ledgerCfg)
			if err := ledger.ApplyAll(ctx, ReversalDeltas(current.Lines), purchaseRef(id, inventory.ReasonPurchaseDelete, trace)); err != nil {
				return err
			}
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.afterWrite(ctx, "PURCHASE_ORDER_DELETE", id, map[string]any{"status": string(was), "trace_id": trace.String()})
	return nil
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	if id <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: invalid purchase order id", shared.ErrValidation)
	}
	return s.repo.GetOrder(ctx, id)
}

// List returns order headers matching every non-zero filter field.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, filter.Status)
	}
	if filter.SupplierID < 0 {
		return nil, 0, fmt.Errorf("%w: invalid supplier id", shared.ErrValidation)
	}
	if err := checkRange(filter.From, filter.To); err != nil {
		return nil, 0, err
	}
	filter.Window = shared.NewWindow(filter.Window.Limit, filter.Window.Offset)
	return s.repo.ListOrders(ctx, filter)
}

// ListBySupplier returns the orders of one supplier.
func (s *Service) ListBySupplier(ctx context.Context, supplierID int64, window shared.Window) ([]PurchaseOrder, error) {
	if supplierID <= 0 {
		return nil, fmt.Errorf("%w: invalid supplier id", shared.ErrValidation)
	}
	items, _, err := s.List(ctx, ListFilter{SupplierID: supplierID, Window: window})
	return items, err
}

// ListByDateRange returns orders dated within [from, to], both inclusive.
func (s *Service) ListByDateRange(ctx context.Context, from, to time.Time, window shared.Window) ([]PurchaseOrder, error) {
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("%w: from and to are required", shared.ErrValidation)
	}
	items, _, err := s.List(ctx, ListFilter{From: from, To: to, Window: window})
	return items, err
}

// ListByStatus returns orders in the given state.
func (s *Service) ListByStatus(ctx context.Context, status Status, window shared.Window) ([]PurchaseOrder, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	items, _, err := s.List(ctx, ListFilter{Status: status, Window: window})
	return items, err
}

func (s *Service) normalise(in OrderInput) (OrderInput, error) {
	in.Number = strings.TrimSpace(in.Number)
	in.Note = strings.TrimSpace(in.Note)
	if err := s.validate.Struct(in); err != nil {
		return OrderInput{}, shared.ValidationProblem(err)
	}
	in.Date = truncateDay(in.Date)
	return in, nil
}

// requireSupplier locks the supplier row in share mode. Only orders moving
// to a new supplier require it to be active.
func (s *Service) requireSupplier(ctx context.Context, tx TxRepository, id int64, mustBeActive bool) error {
	sup, err := tx.GetSupplierForShare(ctx, id)
	if err != nil {
		return err
	}
	if mustBeActive && sup.Status != suppliers.StatusActive {
		return fmt.Errorf("%w: id %d", ErrInactiveSupplier, id)
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.deps.Audit != nil {
		_ = s.deps.Audit.Record(ctx, shared.AuditLog{
			Action:   action,
			Entity:   "purchase_order",
			EntityID: strconv.FormatInt(id, 10),
			Meta:     meta,
		})
	}
	if s.deps.Cache != nil {
		_ = s.deps.Cache.Bump(ctx)
	}
}

func (s *Service) observe(operation string, err error) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObservePurchaseOrder(operation, err)
	}
}

func purchaseRef(id int64, reason inventory.Reason, trace uuid.UUID) inventory.Reference {
	return inventory.Reference{Module: inventory.RefModulePurchase, ID: id, Reason: reason, TraceID: trace}
}

func checkRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func generateNumber(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, at.UnixNano())
}

// IsRejected reports whether err is a business-rule rejection rather than an
// unexpected failure.
func IsRejected(err error) bool {
	return errors.Is(err, shared.ErrConflict) || errors.Is(err, shared.ErrInvalidTransition) ||
		errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrNotFound)
}
