package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	Name        string          `json:"name"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Blocked     bool            `json:"blocked"`
}

type Order struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	// Number is human-readable and sequential per tenant, e.g. "PED-000042".
	Number   string `json:"number"`
	ClientID string `json:"client_id"`
	SellerID string `json:"seller_id,omitempty"`

	Status     Status     `json:"status"`
	CreditGate CreditGate `json:"credit_gate"`

	// Credit gate audit trail, filled on release.
	ApprovedBy     string     `json:"approved_by,omitempty"`
	ApprovalReason string     `json:"approval_reason,omitempty"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`

	// StockApplied is the single source of truth for whether this order's
	// stock effect has happened. Gated orders keep it false until release.
	StockApplied bool `json:"stock_applied"`

	Subtotal    decimal.Decimal `json:"subtotal"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Freight     decimal.Decimal `json:"freight"`
	Total       decimal.Decimal `json:"total"`

	PaymentStatus PaymentStatus `json:"payment_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Lines []Line `json:"lines"`
}

type Line struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	ProductID     string          `json:"product_id"`
	Qty           int             `json:"qty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	DiscountPct   decimal.Decimal `json:"discount_pct"`
	CommissionPct decimal.Decimal `json:"commission_pct"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	// CommissionValue = Subtotal * CommissionPct / 100.
	CommissionValue decimal.Decimal `json:"commission_value"`
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotals derives line subtotals/commissions and the order header
// amounts: subtotal = sum of line subtotals, total = subtotal discounted by
// DiscountPct plus freight, floored at zero.
func (o *Order) ComputeTotals() {
	subtotal := decimal.Zero
	for i := range o.Lines {
		l := &o.Lines[i]
		gross := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
		l.Subtotal = gross.Sub(gross.Mul(l.DiscountPct).Div(hundred))
		l.CommissionValue = l.Subtotal.Mul(l.CommissionPct).Div(hundred)
		subtotal = subtotal.Add(l.Subtotal)
	}
	o.Subtotal = subtotal
	total := subtotal.Sub(subtotal.Mul(o.DiscountPct).Div(hundred)).Add(o.Freight)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total
}

// TotalCommission sums the commission value of every line.
func (o *Order) TotalCommission() decimal.Decimal {
	sum := decimal.Zero
	for i := range o.Lines {
		sum = sum.Add(o.Lines[i].CommissionValue)
	}
	return sum
}

// TotalNet is the order total minus seller commissions.
func (o *Order) TotalNet() decimal.Decimal {
	return o.Total.Sub(o.TotalCommission())
}
