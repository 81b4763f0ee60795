package orders

import "time"

type Product struct {
	ID           string  `bson:"_id" json:"id"`
	Name         string  `bson:"name" json:"name"`
	Price        float64 `bson:"price" json:"price"`
	Quantity     int     `bson:"quantity" json:"quantity"`
	ProductImage string  `bson:"productImage" json:"productImage"`
	Category     string  `bson:"category" json:"category"`
	Description  string  `bson:"description" json:"description"`
}

type Order struct {
	ID           string     `bson:"_id" json:"id"`
	UserID       string     `bson:"user" json:"user"`
	ProductID    string     `bson:"product" json:"product"`
	Quantity     int        `bson:"quantity" json:"quantity"`
	OrderNumber  string     `bson:"orderNumber" json:"orderNumber"`
	Status       Status     `bson:"status" json:"status"`
	CreatedOn    time.Time  `bson:"createdOn" json:"createdOn"`
	DeliveredOn  *time.Time `bson:"deliveredOn,omitempty" json:"deliveredOn,omitempty"`
	CancelledAt  *time.Time `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancelledBy  string     `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	CancelReason string     `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
}

// Caller identifies who is invoking an operation. Filled by the auth
// middleware from the decoded token, never inferred inside the engine.
type Caller struct {
	ID      string
	IsAdmin bool
}

// CanAccess reports whether the caller may act on the given order.
func (c Caller) CanAccess(o *Order) bool {
	return c.IsAdmin || o.UserID == c.ID
}
