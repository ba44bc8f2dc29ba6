package fiscal

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("invoice not found")
	ErrAlreadyCanceled = errors.New("invoice already canceled")
)

type InvoiceStatus string

const (
	StatusPending  InvoiceStatus = "pending"
	StatusIssued   InvoiceStatus = "issued"
	StatusCanceled InvoiceStatus = "canceled"
)

// Invoice legally mirrors an order's line items. At most one non-canceled
// invoice exists per order.
type Invoice struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	OrderID    string          `json:"order_id"`
	Number     string          `json:"number"`
	Status     InvoiceStatus   `json:"status"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"created_at"`
	CanceledAt *time.Time      `json:"canceled_at,omitempty"`
	Lines      []InvoiceLine   `json:"lines"`
}

type InvoiceLine struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoice_id"`
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
