package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventLowStock           = "LowStock"
	EventCreditGateReleased = "CreditGateReleased"
	EventNotification       = "Notification"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TenantID      string          `json:"tenant_id"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID  string `json:"order_id"`
	Number   string `json:"number"`
	ClientID string `json:"client_id"`
	Total    string `json:"total"`
	Gated    bool   `json:"gated"`
}

type LowStockPayload struct {
	ProductID string `json:"product_id"`
	Remaining int    `json:"remaining"`
	MinStock  int    `json:"min_stock"`
}

type CreditGateReleasedPayload struct {
	OrderID    string `json:"order_id"`
	Approved   bool   `json:"approved"`
	ApprovedBy string `json:"approved_by"`
	Reason     string `json:"reason,omitempty"`
}
