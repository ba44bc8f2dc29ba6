package stock

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInsufficient    = errors.New("insufficient stock")
	ErrInvalidQty      = errors.New("quantity must be positive")
)

type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementTransfer   MovementType = "transfer"
	MovementAdjustment MovementType = "adjustment"
)

type Product struct {
	ID        string
	TenantID  string
	Name      string
	Stock     int
	MinStock  int
	UpdatedAt time.Time
}

// Movement is an append-only ledger entry. The product counter and its
// movement are always written in the same transaction, so
// stock == initial + sum(in) - sum(out) holds at every commit point.
type Movement struct {
	ID        string
	TenantID  string
	ProductID string
	Type      MovementType
	Qty       int
	UnitCost  *decimal.Decimal
	Reference string
	CreatedAt time.Time
}

// Ledger owns product stock counters and the movement log. All mutating
// operations run inside the caller's transaction; Lock takes the exclusive
// row lock that serializes concurrent orders on the same product.
type Ledger interface {
	Lock(ctx context.Context, tenant, productID string) (*Product, error)
	CheckAvailability(ctx context.Context, tenant, productID string, qty int) (bool, error)
	// Decrement locks the row, fails with ErrInsufficient when stock < qty,
	// otherwise applies the counter update plus one "out" movement
	// atomically. Returns the remaining stock.
	Decrement(ctx context.Context, tenant, productID string, qty int, reference string) (int, error)
	// Increment restores qty onto the product and records a movement of the
	// given type (compensation paths use "in").
	Increment(ctx context.Context, tenant, productID string, qty int, typ MovementType, reference string) error
	RecordMovement(ctx context.Context, m Movement) error
}
