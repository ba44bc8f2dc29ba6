package orders

import (
	"context"

	"github.com/brisaerp/order-engine/internal/stock"
)

// Store is the transactional boundary of the engine. Everything inside the
// InTx closure commits or rolls back as one unit; row locks taken through
// Tx.Stock() are held until the closure returns.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, tenant, id string) (*Order, error)
	ListOrders(ctx context.Context, tenant string) ([]Order, error)
}

type Tx interface {
	GetClient(ctx context.Context, tenant, id string) (*Client, error)
	// LastOrderNumber returns the most recent order number for the tenant,
	// or "" when the tenant has no orders yet.
	LastOrderNumber(ctx context.Context, tenant string) (string, error)
	InsertOrder(ctx context.Context, o *Order) error
	GetOrderForUpdate(ctx context.Context, tenant, id string) (*Order, error)
	UpdateOrder(ctx context.Context, o *Order) error
	DeleteOrder(ctx context.Context, tenant, id string) error
	HasOpenInvoice(ctx context.Context, tenant, orderID string) (bool, error)
	// Stock returns the ledger bound to this transaction.
	Stock() stock.Ledger
}

// Issuer is the fiscal-document collaborator, called post-commit.
type Issuer interface {
	IssueForOrder(ctx context.Context, o *Order) error
}

// IssuerFunc adapts a closure to the Issuer interface.
type IssuerFunc func(ctx context.Context, o *Order) error

func (f IssuerFunc) IssueForOrder(ctx context.Context, o *Order) error { return f(ctx, o) }

// Dispatcher fans events out to interested users. Best-effort: every method
// is fire-and-forget and must never return control-flow errors to the engine.
type Dispatcher interface {
	OrderCreated(ctx context.Context, o *Order)
	LowStock(ctx context.Context, tenant, productID string, remaining, minStock int)
	GateReleased(ctx context.Context, o *Order, approved bool)
}
