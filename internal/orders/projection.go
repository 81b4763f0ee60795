package orders

import "time"

// ProductSnapshot embeds the product's state at projection time. Quantity is
// the product's current stock, not the ordered amount.
type ProductSnapshot struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	ProductImage string  `json:"productImage"`
	Quantity     int     `json:"quantity"`
	Category     string  `json:"category"`
	Description  string  `json:"description"`
}

// View is the order shape returned to clients and carried by the
// order-created realtime event.
type View struct {
	ID          string          `json:"id"`
	User        string          `json:"user"`
	Product     ProductSnapshot `json:"product"`
	Quantity    int             `json:"quantity"`
	OrderNumber string          `json:"orderNumber"`
	Status      Status          `json:"status"`
	CreatedOn   string          `json:"createdOn"`
	DeliveredOn *string         `json:"deliveredOn"`
}

func project(o *Order, p *Product) View {
	v := View{
		ID:          o.ID,
		User:        o.UserID,
		Quantity:    o.Quantity,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		CreatedOn:   formatDate(o.CreatedOn),
	}
	if o.DeliveredOn != nil {
		d := formatDate(*o.DeliveredOn)
		v.DeliveredOn = &d
	}
	if p != nil {
		v.Product = ProductSnapshot{
			ID:           p.ID,
			Name:         p.Name,
			Price:        p.Price,
			ProductImage: p.ProductImage,
			Quantity:     p.Quantity,
			Category:     p.Category,
			Description:  p.Description,
		}
	} else {
		// product removed after the order was placed; keep the reference
		v.Product = ProductSnapshot{ID: o.ProductID}
	}
	return v
}

func formatDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
