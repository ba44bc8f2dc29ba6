package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/brisaerp/order-engine/internal/stock"
)

// PgStore implements Store on PostgreSQL. One InTx call is one database
// transaction; FOR UPDATE locks taken inside it are released at resolve.
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

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Stock() stock.Ledger { return stock.NewPgLedger(t.tx) }

func (t *pgTx) GetClient(ctx context.Context, tenant, id string) (*Client, error) {
	var c Client
	err := t.tx.QueryRow(ctx, `
		SELECT id, tenant_id, name, credit_limit, blocked
		FROM clients WHERE tenant_id=$1 AND id=$2`,
		tenant, id,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.CreditLimit, &c.Blocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: client %s", ErrClientNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) LastOrderNumber(ctx context.Context, tenant string) (string, error) {
	var number string
	// Numbers share the PED- prefix, so a longer number is always the larger
	// one; plain lexicographic order breaks once the suffix grows a digit.
	err := t.tx.QueryRow(ctx, `
		SELECT number FROM orders WHERE tenant_id=$1
		ORDER BY length(number) DESC, number DESC LIMIT 1`, tenant).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return number, err
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, tenant_id, number, client_id, seller_id, status, credit_gate,
			approved_by, approval_reason, approved_at, stock_applied,
			subtotal, discount_pct, freight, total, payment_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		o.ID, o.TenantID, o.Number, o.ClientID, nullable(o.SellerID), string(o.Status), string(o.CreditGate),
		nullable(o.ApprovedBy), nullable(o.ApprovalReason), o.ApprovedAt, o.StockApplied,
		o.Subtotal, o.DiscountPct, o.Freight, o.Total, string(o.PaymentStatus), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for _, l := range o.Lines {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_lines(id, order_id, product_id, qty, unit_price,
				discount_pct, commission_pct, subtotal, commission_value)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, l.OrderID, l.ProductID, l.Qty, l.UnitPrice,
			l.DiscountPct, l.CommissionPct, l.Subtotal, l.CommissionValue); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) GetOrderForUpdate(ctx context.Context, tenant, id string) (*Order, error) {
	o, err := scanOrder(ctx, t.tx, tenant, id, true)
	if err != nil {
		return nil, err
	}
	o.Lines, err = scanLines(ctx, t.tx, id)
	return o, err
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET seller_id=$3, status=$4, credit_gate=$5,
			approved_by=$6, approval_reason=$7, approved_at=$8, stock_applied=$9,
			subtotal=$10, discount_pct=$11, freight=$12, total=$13,
			payment_status=$14, updated_at=$15
		WHERE tenant_id=$1 AND id=$2`,
		o.TenantID, o.ID, nullable(o.SellerID), string(o.Status), string(o.CreditGate),
		nullable(o.ApprovedBy), nullable(o.ApprovalReason), o.ApprovedAt, o.StockApplied,
		o.Subtotal, o.DiscountPct, o.Freight, o.Total,
		string(o.PaymentStatus), o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: order %s", ErrNotFound, o.ID)
	}
	return nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, tenant, id string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id=$1`, id); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE tenant_id=$1 AND id=$2`, tenant, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return nil
}

func (t *pgTx) HasOpenInvoice(ctx context.Context, tenant, orderID string) (bool, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM invoices
		WHERE tenant_id=$1 AND order_id=$2 AND status <> 'canceled'`,
		tenant, orderID).Scan(&n)
	return n > 0, err
}

func (s *PgStore) GetOrder(ctx context.Context, tenant, id string) (*Order, error) {
	o, err := scanOrder(ctx, s.DB, tenant, id, false)
	if err != nil {
		return nil, err
	}
	o.Lines, err = scanLines(ctx, s.DB, id)
	return o, err
}

func (s *PgStore) ListOrders(ctx context.Context, tenant string) ([]Order, error) {
	rows, err := s.DB.Query(ctx, orderColumns+` FROM orders WHERE tenant_id=$1 ORDER BY number`, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	byID := map[string]int{}
	for rows.Next() {
		o, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		byID[o.ID] = len(out)
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	lrows, err := s.DB.Query(ctx, `
		SELECT l.id, l.order_id, l.product_id, l.qty, l.unit_price,
			l.discount_pct, l.commission_pct, l.subtotal, l.commission_value
		FROM order_lines l
		JOIN orders o ON o.id = l.order_id
		WHERE o.tenant_id=$1`, tenant)
	if err != nil {
		return nil, err
	}
	defer lrows.Close()
	for lrows.Next() {
		var l Line
		if err := lrows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Qty, &l.UnitPrice,
			&l.DiscountPct, &l.CommissionPct, &l.Subtotal, &l.CommissionValue); err != nil {
			return nil, err
		}
		if i, ok := byID[l.OrderID]; ok {
			out[i].Lines = append(out[i].Lines, l)
		}
	}
	return out, lrows.Err()
}

// ClientCredit satisfies credit.ClientCredit for the local limit evaluator.
func (s *PgStore) ClientCredit(ctx context.Context, tenant, clientID string) (decimal.Decimal, bool, error) {
	var (
		limit   decimal.Decimal
		blocked bool
	)
	err := s.DB.QueryRow(ctx, `
		SELECT credit_limit, blocked FROM clients WHERE tenant_id=$1 AND id=$2`,
		tenant, clientID).Scan(&limit, &blocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, fmt.Errorf("%w: client %s", ErrClientNotFound, clientID)
	}
	return limit, blocked, err
}

const orderColumns = `
	SELECT id, tenant_id, number, client_id, COALESCE(seller_id,''), status, credit_gate,
		COALESCE(approved_by,''), COALESCE(approval_reason,''), approved_at, stock_applied,
		subtotal, discount_pct, freight, total, payment_status, created_at, updated_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanOrderRow(row rowScanner) (*Order, error) {
	var (
		o       Order
		status  string
		gate    string
		payment string
	)
	err := row.Scan(&o.ID, &o.TenantID, &o.Number, &o.ClientID, &o.SellerID, &status, &gate,
		&o.ApprovedBy, &o.ApprovalReason, &o.ApprovedAt, &o.StockApplied,
		&o.Subtotal, &o.DiscountPct, &o.Freight, &o.Total, &payment, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.CreditGate = CreditGate(gate)
	o.PaymentStatus = PaymentStatus(payment)
	return &o, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanOrder(ctx context.Context, q querier, tenant, id string, forUpdate bool) (*Order, error) {
	sql := orderColumns + ` FROM orders WHERE tenant_id=$1 AND id=$2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrderRow(q.QueryRow(ctx, sql, tenant, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return o, err
}

func scanLines(ctx context.Context, q querier, orderID string) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, qty, unit_price,
			discount_pct, commission_pct, subtotal, commission_value
		FROM order_lines WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Qty, &l.UnitPrice,
			&l.DiscountPct, &l.CommissionPct, &l.Subtotal, &l.CommissionValue); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// nullable maps "" to SQL NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
