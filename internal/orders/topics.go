package orders

const (
	TopicOrderCreated  = "erp.order.created"
	TopicLowStock      = "erp.stock.low"
	TopicNotifications = "erp.notifications"
)

// Partition key = order_id so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
