package fiscal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brisaerp/order-engine/internal/orders"
	"github.com/brisaerp/order-engine/internal/stock"
)

// Store is the issuer's transactional boundary; each issue/cancel runs its
// own transaction, independent from the order's.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetByOrder(ctx context.Context, tenant, orderID string) (*Invoice, error)
	Get(ctx context.Context, tenant, id string) (*Invoice, error)
}

type Tx interface {
	// OpenInvoiceByOrder returns the non-canceled invoice referencing the
	// order, or ErrNotFound.
	OpenInvoiceByOrder(ctx context.Context, tenant, orderID string) (*Invoice, error)
	LastInvoiceNumber(ctx context.Context, tenant string) (string, error)
	InsertInvoice(ctx context.Context, inv *Invoice) error
	GetInvoiceForUpdate(ctx context.Context, tenant, id string) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	// OrderStockApplied reads the order's stock source-of-truth flag; false
	// when the order is gone or its effect was already compensated.
	OrderStockApplied(ctx context.Context, tenant, orderID string) (bool, error)
	// ClearOrderStockApplied resets the flag when an invoice cancellation
	// reverses the applied movements.
	ClearOrderStockApplied(ctx context.Context, tenant, orderID string) error
	Stock() stock.Ledger
}

// Issuer creates and cancels fiscal documents tied to orders.
//
// The stock effect of an order is applied exactly once, by the order engine,
// through the ledger. Issuance therefore only mirrors lines and never moves
// stock again; cancellation records the compensating movements and restores
// the counters.
type Issuer struct {
	store Store
	log   *zap.Logger
}

func NewIssuer(store Store, log *zap.Logger) *Issuer {
	return &Issuer{store: store, log: log}
}

// IssueForOrder is idempotent: when a non-canceled invoice already
// references the order it is returned unchanged.
func (i *Issuer) IssueForOrder(ctx context.Context, o *orders.Order) (*Invoice, error) {
	var inv *Invoice
	err := i.store.InTx(ctx, func(tx Tx) error {
		existing, err := tx.OpenInvoiceByOrder(ctx, o.TenantID, o.ID)
		if err == nil {
			inv = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		last, err := tx.LastInvoiceNumber(ctx, o.TenantID)
		if err != nil {
			return err
		}
		inv = &Invoice{
			ID:        uuid.NewString(),
			TenantID:  o.TenantID,
			OrderID:   o.ID,
			Number:    nextNumber(last),
			Status:    StatusIssued,
			Total:     o.Total,
			CreatedAt: time.Now().UTC(),
		}
		for _, l := range o.Lines {
			inv.Lines = append(inv.Lines, InvoiceLine{
				ID:        uuid.NewString(),
				InvoiceID: inv.ID,
				ProductID: l.ProductID,
				Qty:       l.Qty,
				UnitPrice: l.UnitPrice,
				Subtotal:  l.Subtotal,
			})
		}
		return tx.InsertInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// CancelInvoice records compensating "in" movements for every line,
// referencing the cancellation, then marks the invoice canceled. Canceling
// twice is an explicit error, never silently ignored.
func (i *Issuer) CancelInvoice(ctx context.Context, tenant, id string) (*Invoice, error) {
	var inv *Invoice
	err := i.store.InTx(ctx, func(tx Tx) error {
		var err error
		inv, err = tx.GetInvoiceForUpdate(ctx, tenant, id)
		if err != nil {
			return err
		}
		if inv.Status == StatusCanceled {
			return fmt.Errorf("%w: invoice %s", ErrAlreadyCanceled, id)
		}

		// Compensate only while the order's stock effect is still applied;
		// an order canceled beforehand has already been restocked.
		applied, err := tx.OrderStockApplied(ctx, tenant, inv.OrderID)
		if err != nil {
			return err
		}
		if applied {
			ledger := tx.Stock()
			ref := "invoice_cancel:" + inv.ID
			for _, l := range inv.Lines {
				if err := ledger.Increment(ctx, tenant, l.ProductID, l.Qty, stock.MovementIn, ref); err != nil {
					return err
				}
			}
			if err := tx.ClearOrderStockApplied(ctx, tenant, inv.OrderID); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		inv.Status = StatusCanceled
		inv.CanceledAt = &now
		return tx.UpdateInvoice(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (i *Issuer) GetByOrder(ctx context.Context, tenant, orderID string) (*Invoice, error) {
	return i.store.GetByOrder(ctx, tenant, orderID)
}

func (i *Issuer) Get(ctx context.Context, tenant, id string) (*Invoice, error) {
	return i.store.Get(ctx, tenant, id)
}

func nextNumber(last string) string {
	const prefix = "NF-"
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
