package fiscal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brisaerp/order-engine/internal/stock"
)

type PgStore struct{ DB *pgxpool.Pool }

func NewPgStore(db *pgxpool.Pool) *PgStore { return &PgStore{DB: db} }

func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) GetByOrder(ctx context.Context, tenant, orderID string) (*Invoice, error) {
	return getInvoice(ctx, s.DB, tenant, `order_id=$2 AND status <> 'canceled'`, orderID, false)
}

func (s *PgStore) Get(ctx context.Context, tenant, id string) (*Invoice, error) {
	return getInvoice(ctx, s.DB, tenant, `id=$2`, id, false)
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Stock() stock.Ledger { return stock.NewPgLedger(t.tx) }

func (t *pgTx) OpenInvoiceByOrder(ctx context.Context, tenant, orderID string) (*Invoice, error) {
	return getInvoice(ctx, t.tx, tenant, `order_id=$2 AND status <> 'canceled'`, orderID, false)
}

func (t *pgTx) GetInvoiceForUpdate(ctx context.Context, tenant, id string) (*Invoice, error) {
	return getInvoice(ctx, t.tx, tenant, `id=$2`, id, true)
}

func (t *pgTx) LastInvoiceNumber(ctx context.Context, tenant string) (string, error) {
	var number string
	// Numbers share the NF- prefix, so a longer number is always the larger
	// one; plain lexicographic order breaks once the suffix grows a digit.
	err := t.tx.QueryRow(ctx, `
		SELECT number FROM invoices WHERE tenant_id=$1
		ORDER BY length(number) DESC, number DESC LIMIT 1`, tenant).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (t *pgTx) InsertInvoice(ctx context.Context, inv *Invoice) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO invoices(id, tenant_id, order_id, number, status, total, created_at, canceled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		inv.ID, inv.TenantID, inv.OrderID, inv.Number, string(inv.Status), inv.Total, inv.CreatedAt, inv.CanceledAt)
	if err != nil {
		return err
	}
	for _, l := range inv.Lines {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO invoice_lines(id, invoice_id, product_id, qty, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			l.ID, l.InvoiceID, l.ProductID, l.Qty, l.UnitPrice, l.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) UpdateInvoice(ctx context.Context, inv *Invoice) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE invoices SET status=$3, canceled_at=$4 WHERE tenant_id=$1 AND id=$2`,
		inv.TenantID, inv.ID, string(inv.Status), inv.CanceledAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: invoice %s", ErrNotFound, inv.ID)
	}
	return nil
}

func (t *pgTx) OrderStockApplied(ctx context.Context, tenant, orderID string) (bool, error) {
	var applied bool
	err := t.tx.QueryRow(ctx, `
		SELECT stock_applied FROM orders WHERE tenant_id=$1 AND id=$2`,
		tenant, orderID).Scan(&applied)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return applied, err
}

func (t *pgTx) ClearOrderStockApplied(ctx context.Context, tenant, orderID string) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE orders SET stock_applied = FALSE, updated_at = NOW()
		WHERE tenant_id=$1 AND id=$2`, tenant, orderID)
	return err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getInvoice(ctx context.Context, q querier, tenant, where, arg string, forUpdate bool) (*Invoice, error) {
	sql := `
		SELECT id, tenant_id, COALESCE(order_id,''), number, status, total, created_at, canceled_at
		FROM invoices WHERE tenant_id=$1 AND ` + where
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var (
		inv    Invoice
		status string
	)
	err := q.QueryRow(ctx, sql, tenant, arg).Scan(
		&inv.ID, &inv.TenantID, &inv.OrderID, &inv.Number, &status,
		&inv.Total, &inv.CreatedAt, &inv.CanceledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, arg)
	}
	if err != nil {
		return nil, err
	}
	inv.Status = InvoiceStatus(status)

	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, product_id, qty, unit_price, subtotal
		FROM invoice_lines WHERE invoice_id=$1`, inv.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.Qty, &l.UnitPrice, &l.Subtotal); err != nil {
			return nil, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return &inv, rows.Err()
}
