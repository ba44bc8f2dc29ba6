package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/brisaerp/order-engine/internal/kafka"
	"github.com/brisaerp/order-engine/internal/orders"
	"github.com/brisaerp/order-engine/internal/redisx"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Permissions addressed by engine notifications. The notifier worker
// resolves each one to concrete user ids.
const (
	PermOrdersView  = "orders.view"
	PermStockManage = "stock.manage"
	PermCreditGate  = "credit.approve"
)

// Event is the wire payload on the notifications topic: addressed to a
// permission, not to users, so the fan-out cost is paid by the worker.
type Event struct {
	TenantID   string   `json:"tenant_id"`
	Permission string   `json:"permission"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Severity   Severity `json:"severity"`
	Priority   int      `json:"priority"`
}

// Publisher is the async fan-out sink (kafka producer in production).
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// KafkaDispatcher publishes notification intents post-commit, best-effort.
// It satisfies orders.Dispatcher. Created and Stock are optional extra
// producers for the raw domain events; downstream systems subscribe to
// those topics directly.
type KafkaDispatcher struct {
	Producer Publisher
	Created  Publisher
	Stock    Publisher
	Redis    *redis.Client
	Service  string
	Log      *zap.Logger
}

func (d *KafkaDispatcher) OrderCreated(ctx context.Context, o *orders.Order) {
	if d.Created != nil {
		d.emit(d.Created, orders.EventOrderCreated, o.TenantID, o.ID, orders.OrderCreatedPayload{
			OrderID:  o.ID,
			Number:   o.Number,
			ClientID: o.ClientID,
			Total:    o.Total.StringFixed(2),
			Gated:    o.CreditGate == orders.GateAwaitingApproval,
		})
	}
	title := fmt.Sprintf("Order %s created", o.Number)
	body := fmt.Sprintf("Client %s, total %s", o.ClientID, o.Total.StringFixed(2))
	d.publish(o.TenantID, o.ID, Event{
		TenantID:   o.TenantID,
		Permission: PermOrdersView,
		Title:      title,
		Body:       body,
		Severity:   SeverityInfo,
		Priority:   2,
	})
}

func (d *KafkaDispatcher) LowStock(ctx context.Context, tenant, productID string, remaining, minStock int) {
	// Dedup so a product sitting below its minimum does not alert on every
	// order. Redis failure degrades to re-alerting, never to dropping.
	if d.Redis != nil {
		key := fmt.Sprintf(redisx.KeyLowStockAlert, tenant, productID)
		ok, err := d.Redis.SetNX(ctx, key, "1", redisx.TTLLowStockAlert).Result()
		if err != nil {
			d.Log.Warn("low-stock dedup unavailable", zap.Error(err))
		} else if !ok {
			return
		}
	}
	if d.Stock != nil {
		d.emit(d.Stock, orders.EventLowStock, tenant, productID, orders.LowStockPayload{
			ProductID: productID,
			Remaining: remaining,
			MinStock:  minStock,
		})
	}
	d.publish(tenant, productID, Event{
		TenantID:   tenant,
		Permission: PermStockManage,
		Title:      "Low stock",
		Body:       fmt.Sprintf("Product %s is at %d (minimum %d)", productID, remaining, minStock),
		Severity:   SeverityWarning,
		Priority:   1,
	})
}

func (d *KafkaDispatcher) GateReleased(ctx context.Context, o *orders.Order, approved bool) {
	verdict := "approved"
	if !approved {
		verdict = "rejected"
	}
	if d.Created != nil {
		d.emit(d.Created, orders.EventCreditGateReleased, o.TenantID, o.ID, orders.CreditGateReleasedPayload{
			OrderID:    o.ID,
			Approved:   approved,
			ApprovedBy: o.ApprovedBy,
			Reason:     o.ApprovalReason,
		})
	}
	d.publish(o.TenantID, o.ID, Event{
		TenantID:   o.TenantID,
		Permission: PermCreditGate,
		Title:      fmt.Sprintf("Credit gate %s for order %s", verdict, o.Number),
		Body:       fmt.Sprintf("By %s: %s", o.ApprovedBy, o.ApprovalReason),
		Severity:   SeverityInfo,
		Priority:   2,
	})
}

func (d *KafkaDispatcher) publish(tenant, correlation string, ev Event) {
	d.emit(d.Producer, orders.EventNotification, tenant, correlation, ev)
}

func (d *KafkaDispatcher) emit(p Publisher, eventType, tenant, correlation string, payload any) {
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      d.Service,
		TenantID:      tenant,
		CorrelationID: correlation,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(correlation), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
