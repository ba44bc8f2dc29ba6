package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/brisaerp/order-engine/internal/credit"
	"github.com/brisaerp/order-engine/internal/stock"
)

// Engine orchestrates order fulfillment: it creates orders under exclusive
// product row locks, gates high-risk orders behind manual credit approval,
// and runs compensating restocks on cancellation and deletion. Side effects
// (notifications, invoice issuance) happen strictly after commit and are
// best-effort.
type Engine struct {
	store  Store
	credit credit.Evaluator
	issuer Issuer
	disp   Dispatcher
	log    *zap.Logger

	sideEffectTimeout time.Duration
	wg                sync.WaitGroup
}

func NewEngine(store Store, ev credit.Evaluator, issuer Issuer, disp Dispatcher, log *zap.Logger) *Engine {
	return &Engine{
		store:             store,
		credit:            ev,
		issuer:            issuer,
		disp:              disp,
		log:               log,
		sideEffectTimeout: 10 * time.Second,
	}
}

// Wait blocks until in-flight post-commit side effects finish. Called on
// shutdown and by tests.
func (e *Engine) Wait() { e.wg.Wait() }

type LineInput struct {
	ProductID     string          `json:"product_id"`
	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	DiscountPct   decimal.Decimal `json:"discount_pct"`
	CommissionPct decimal.Decimal `json:"commission_pct"`
}

type CreateInput struct {
	ClientID    string          `json:"client_id"`
	SellerID    string          `json:"seller_id,omitempty"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Freight     decimal.Decimal `json:"freight"`
	Lines       []LineInput     `json:"lines"`
}

type lowStockAlert struct {
	productID string
	remaining int
	minStock  int
}

// CreateOrder validates the client, locks and checks stock for every line,
// consults the credit evaluator and persists the order atomically. On the
// allowed path stock is decremented in the same transaction; a soft block
// commits the order gated with no stock movement; a hard block aborts with
// no row written.
func (e *Engine) CreateOrder(ctx context.Context, tenant string, in CreateInput) (*Order, error) {
	if len(in.Lines) == 0 {
		return nil, ErrNoLines
	}
	for _, l := range in.Lines {
		if l.Qty <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrInvalidQty, l.ProductID)
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:            uuid.NewString(),
		TenantID:      tenant,
		ClientID:      in.ClientID,
		SellerID:      in.SellerID,
		Status:        StatusPending,
		CreditGate:    GateNone,
		DiscountPct:   in.DiscountPct,
		Freight:       in.Freight,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, l := range in.Lines {
		o.Lines = append(o.Lines, Line{
			ID:            uuid.NewString(),
			OrderID:       o.ID,
			ProductID:     l.ProductID,
			Qty:           l.Qty,
			UnitPrice:     l.UnitPrice,
			DiscountPct:   l.DiscountPct,
			CommissionPct: l.CommissionPct,
		})
	}
	o.ComputeTotals()

	var alerts []lowStockAlert
	err := e.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.GetClient(ctx, tenant, in.ClientID); err != nil {
			return err
		}

		// Lock every product up front; all availability checks happen
		// before any mutation.
		ledger := tx.Stock()
		locked := make(map[string]*stock.Product, len(o.Lines))
		for _, l := range o.Lines {
			p, err := ledger.Lock(ctx, tenant, l.ProductID)
			if err != nil {
				return err
			}
			if p.Stock < l.Qty {
				return fmt.Errorf("%w: product %s has %d, need %d",
					stock.ErrInsufficient, l.ProductID, p.Stock, l.Qty)
			}
			locked[l.ProductID] = p
		}

		decision, err := e.credit.Evaluate(ctx, tenant, in.ClientID, o.Total)
		if err != nil {
			return fmt.Errorf("credit evaluation: %w", err)
		}
		switch decision.Outcome {
		case credit.OutcomeBlocked:
			return fmt.Errorf("%w: %s", ErrCreditBlocked, decision.Message)
		case credit.OutcomePendingApproval:
			o.CreditGate = GateAwaitingApproval
		case credit.OutcomeAllowed:
			for _, l := range o.Lines {
				remaining, err := ledger.Decrement(ctx, tenant, l.ProductID, l.Qty, "order:"+o.ID)
				if err != nil {
					return err
				}
				if remaining <= locked[l.ProductID].MinStock {
					alerts = append(alerts, lowStockAlert{l.ProductID, remaining, locked[l.ProductID].MinStock})
				}
			}
			o.StockApplied = true
		}

		last, err := tx.LastOrderNumber(ctx, tenant)
		if err != nil {
			return err
		}
		o.Number = NextNumber(last)

		return tx.InsertOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	gated := o.CreditGate == GateAwaitingApproval
	e.afterCommit(o, alerts, !gated, !gated)
	return o, nil
}

// ReleaseCreditGate clears the awaiting-approval gate. Approval decrements
// stock now, issues the deferred invoice and sends the deferred created
// notification; rejection cancels the order leaving stock untouched.
func (e *Engine) ReleaseCreditGate(ctx context.Context, tenant, orderID string, approved bool, approver, reason string) (*Order, error) {
	var (
		o      *Order
		alerts []lowStockAlert
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		o, err = tx.GetOrderForUpdate(ctx, tenant, orderID)
		if err != nil {
			return err
		}
		if o.CreditGate != GateAwaitingApproval {
			return fmt.Errorf("%w: order %s is not awaiting approval", ErrNotFound, orderID)
		}
		if o.Status == StatusCanceled {
			return fmt.Errorf("%w: order %s is canceled", ErrInvalidTransition, orderID)
		}

		now := time.Now().UTC()
		o.CreditGate = GateNone
		o.ApprovedBy = approver
		o.ApprovalReason = reason
		o.ApprovedAt = &now
		o.UpdatedAt = now

		if !approved {
			o.Status = StatusCanceled
			return tx.UpdateOrder(ctx, o)
		}

		ledger := tx.Stock()
		for _, l := range o.Lines {
			p, err := ledger.Lock(ctx, tenant, l.ProductID)
			if err != nil {
				return err
			}
			remaining, err := ledger.Decrement(ctx, tenant, l.ProductID, l.Qty, "order:"+o.ID)
			if err != nil {
				return err
			}
			if remaining <= p.MinStock {
				alerts = append(alerts, lowStockAlert{l.ProductID, remaining, p.MinStock})
			}
		}
		o.StockApplied = true
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.sideEffectTimeout)
		defer cancel()
		e.disp.GateReleased(ctx, o, approved)
	}()
	if approved {
		e.afterCommit(o, alerts, true, true)
	}
	return o, nil
}

type UpdateInput struct {
	SellerID      *string          `json:"seller_id,omitempty"`
	DiscountPct   *decimal.Decimal `json:"discount_pct,omitempty"`
	Freight       *decimal.Decimal `json:"freight,omitempty"`
	PaymentStatus *PaymentStatus   `json:"payment_status,omitempty"`
}

// UpdateOrder mutates header fields and recomputes totals. Orders are
// editable only while pending or processing.
func (e *Engine) UpdateOrder(ctx context.Context, tenant, orderID string, in UpdateInput) (*Order, error) {
	var o *Order
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		o, err = tx.GetOrderForUpdate(ctx, tenant, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPending && o.Status != StatusProcessing {
			return fmt.Errorf("%w: order is %s", ErrInvalidTransition, o.Status)
		}
		if in.SellerID != nil {
			o.SellerID = *in.SellerID
		}
		if in.DiscountPct != nil {
			o.DiscountPct = *in.DiscountPct
		}
		if in.Freight != nil {
			o.Freight = *in.Freight
		}
		if in.PaymentStatus != nil {
			o.PaymentStatus = *in.PaymentStatus
		}
		o.ComputeTotals()
		o.UpdatedAt = time.Now().UTC()
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ChangeStatus applies a lifecycle transition. Moving to canceled runs the
// compensating restock for orders whose stock effect already happened.
func (e *Engine) ChangeStatus(ctx context.Context, tenant, orderID string, to Status) (*Order, error) {
	if !ValidStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	var o *Order
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		o, err = tx.GetOrderForUpdate(ctx, tenant, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
		}
		// A gated order has no committed stock effect yet; it can only be
		// canceled until the credit gate is released.
		if o.CreditGate == GateAwaitingApproval && to != StatusCanceled {
			return fmt.Errorf("%w: order %s awaits credit approval", ErrInvalidTransition, orderID)
		}
		if to == StatusCanceled {
			if err := e.restock(ctx, tx, o, "cancel:"+o.ID); err != nil {
				return err
			}
		}
		o.Status = to
		o.UpdatedAt = time.Now().UTC()
		return tx.UpdateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// CancelOrder is ChangeStatus to canceled.
func (e *Engine) CancelOrder(ctx context.Context, tenant, orderID string) (*Order, error) {
	return e.ChangeStatus(ctx, tenant, orderID, StatusCanceled)
}

// DeleteOrder restores every line's quantity onto its product, then removes
// line and order rows. Deletion is refused while a non-canceled invoice
// references the order; the invoice must be canceled first.
func (e *Engine) DeleteOrder(ctx context.Context, tenant, orderID string) error {
	return e.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, tenant, orderID)
		if err != nil {
			return err
		}
		open, err := tx.HasOpenInvoice(ctx, tenant, orderID)
		if err != nil {
			return err
		}
		if open {
			return fmt.Errorf("%w: cancel the invoice before deleting order %s", ErrHasInvoice, orderID)
		}
		if err := e.restock(ctx, tx, o, "delete:"+o.ID); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, tenant, orderID)
	})
}

func (e *Engine) GetOrder(ctx context.Context, tenant, id string) (*Order, error) {
	return e.store.GetOrder(ctx, tenant, id)
}

func (e *Engine) ListOrders(ctx context.Context, tenant string) ([]Order, error) {
	return e.store.ListOrders(ctx, tenant)
}

// restock returns each line's quantity to its product. No-op for orders
// whose stock effect never happened (gated, or already compensated).
func (e *Engine) restock(ctx context.Context, tx Tx, o *Order, reference string) error {
	if !o.StockApplied {
		return nil
	}
	ledger := tx.Stock()
	for _, l := range o.Lines {
		if err := ledger.Increment(ctx, o.TenantID, l.ProductID, l.Qty, stock.MovementIn, reference); err != nil {
			return err
		}
	}
	o.StockApplied = false
	return nil
}

// afterCommit runs the best-effort side effects strictly after the
// transaction resolved: low-stock alerts, the created notification and
// invoice issuance. Failures are logged and never surfaced.
func (e *Engine) afterCommit(o *Order, alerts []lowStockAlert, notifyCreated, issue bool) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.sideEffectTimeout)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			for _, a := range alerts {
				e.disp.LowStock(gctx, o.TenantID, a.productID, a.remaining, a.minStock)
			}
			return nil
		})
		if notifyCreated {
			g.Go(func() error {
				e.disp.OrderCreated(gctx, o)
				return nil
			})
		}
		if issue {
			g.Go(func() error {
				if err := e.issuer.IssueForOrder(gctx, o); err != nil {
					e.log.Error("invoice issuance failed",
						zap.String("order_id", o.ID),
						zap.String("tenant_id", o.TenantID),
						zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// NextNumber derives the next sequential order number from the last one
// issued for the tenant. Plain read-then-increment: two transactions racing
// here can mint the same number, which the unique index surfaces at commit.
func NextNumber(last string) string {
	const prefix = "PED-"
	if last == "" {
		return fmt.Sprintf("%s%06d", prefix, 1)
	}
	suffix := last
	if i := strings.LastIndex(last, "-"); i >= 0 {
		suffix = last[i+1:]
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return fmt.Sprintf("%s%06d", prefix, 1)
	}
	return fmt.Sprintf("%s%06d", prefix, n+1)
}
