package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool. The ledger is bound to
// whichever the caller hands it, so decrements join the order transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgLedger struct{ Q Querier }

func NewPgLedger(q Querier) *PgLedger { return &PgLedger{Q: q} }

func (l *PgLedger) Lock(ctx context.Context, tenant, productID string) (*Product, error) {
	var p Product
	err := l.Q.QueryRow(ctx, `
		SELECT id, tenant_id, name, stock, min_stock, updated_at
		FROM products WHERE tenant_id=$1 AND id=$2 FOR UPDATE`,
		tenant, productID,
	).Scan(&p.ID, &p.TenantID, &p.Name, &p.Stock, &p.MinStock, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (l *PgLedger) CheckAvailability(ctx context.Context, tenant, productID string, qty int) (bool, error) {
	var stock int
	err := l.Q.QueryRow(ctx, `SELECT stock FROM products WHERE tenant_id=$1 AND id=$2`,
		tenant, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrProductNotFound
	}
	if err != nil {
		return false, err
	}
	return stock >= qty, nil
}

func (l *PgLedger) Decrement(ctx context.Context, tenant, productID string, qty int, reference string) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidQty
	}
	p, err := l.Lock(ctx, tenant, productID)
	if err != nil {
		return 0, err
	}
	if p.Stock < qty {
		return p.Stock, fmt.Errorf("%w: product %s has %d, need %d", ErrInsufficient, productID, p.Stock, qty)
	}
	ct, err := l.Q.Exec(ctx, `
		UPDATE products SET stock = stock - $3, updated_at = NOW()
		WHERE tenant_id=$1 AND id=$2 AND stock >= $3`,
		tenant, productID, qty)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() != 1 {
		return p.Stock, fmt.Errorf("%w: product %s", ErrInsufficient, productID)
	}
	if err := l.RecordMovement(ctx, Movement{
		TenantID:  tenant,
		ProductID: productID,
		Type:      MovementOut,
		Qty:       qty,
		Reference: reference,
	}); err != nil {
		return 0, err
	}
	return p.Stock - qty, nil
}

func (l *PgLedger) Increment(ctx context.Context, tenant, productID string, qty int, typ MovementType, reference string) error {
	if qty <= 0 {
		return ErrInvalidQty
	}
	ct, err := l.Q.Exec(ctx, `
		UPDATE products SET stock = stock + $3, updated_at = NOW()
		WHERE tenant_id=$1 AND id=$2`,
		tenant, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrProductNotFound
	}
	return l.RecordMovement(ctx, Movement{
		TenantID:  tenant,
		ProductID: productID,
		Type:      typ,
		Qty:       qty,
		Reference: reference,
	})
}

func (l *PgLedger) RecordMovement(ctx context.Context, m Movement) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := l.Q.Exec(ctx, `
		INSERT INTO stock_movements(id, tenant_id, product_id, type, qty, unit_cost, reference, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		m.ID, m.TenantID, m.ProductID, string(m.Type), m.Qty, m.UnitCost, m.Reference)
	return err
}
