package orders

const (
	TopicOrderCreated = "order.created"
	TopicOrderDeleted = "order.deleted"
)

// Partition key = order_id, so every event for one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
