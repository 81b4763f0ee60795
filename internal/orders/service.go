package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	kafkax "github.com/shoplite/orders-api/internal/kafka"
)

// AdminRoom is the shared realtime room every admin joins.
const AdminRoom = "admin"

// DefaultCancelReason is recorded when a cancel request carries no reason.
const DefaultCancelReason = "User cancelled"

type ProductStore interface {
	Get(ctx context.Context, id string) (*Product, error)
	// SetStock writes the absolute stock level. Absolute, not a delta:
	// the engine owns the read-modify-write sequence.
	SetStock(ctx context.Context, id string, quantity int) error
	List(ctx context.Context) ([]Product, error)
}

type OrderStore interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
}

// Notifier delivers an event to a realtime room. Delivery is best-effort;
// the engine logs failures and moves on.
type Notifier interface {
	Emit(ctx context.Context, room, event string, payload any) error
}

// EventSink receives domain event envelopes for downstream consumers.
type EventSink interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Products        ProductStore
	Orders          OrderStore
	Notifier        Notifier
	ProducerCreated EventSink // publishes to order.created
	ProducerDeleted EventSink // publishes to order.deleted
	Name            string    // producer name stamped into envelopes
	Log             *slog.Logger
}

// List returns every order for an admin caller, otherwise only the
// caller's own orders. Each order carries a snapshot of its product.
func (s *Service) List(ctx context.Context, caller Caller) ([]View, error) {
	var (
		list []Order
		err  error
	)
	if caller.IsAdmin {
		list, err = s.Orders.List(ctx)
	} else {
		list, err = s.Orders.ListByUser(ctx, caller.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	products := map[string]*Product{}
	views := make([]View, 0, len(list))
	for i := range list {
		o := &list[i]
		p, seen := products[o.ProductID]
		if !seen {
			p, err = s.Products.Get(ctx, o.ProductID)
			if err != nil && !errors.Is(err, ErrProductNotFound) {
				return nil, fmt.Errorf("load product %s: %w", o.ProductID, err)
			}
			products[o.ProductID] = p
		}
		views = append(views, project(o, p))
	}
	return views, nil
}

// Get returns a single order projection. The product snapshot is left
// empty (id only) if the product has since been removed.
func (s *Service) Get(ctx context.Context, caller Caller, orderID string) (View, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return View{}, err
	}
	p, err := s.Products.Get(ctx, o.ProductID)
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		return View{}, fmt.Errorf("load product %s: %w", o.ProductID, err)
	}
	return project(o, p), nil
}

// Create reserves stock and records the order. The stock write and the
// order insert are two separate single-document writes; if the insert
// fails after stock was deducted there is no compensation.
func (s *Service) Create(ctx context.Context, caller Caller, productID string, quantity int) (View, error) {
	if quantity < 1 {
		return View{}, ErrInvalidQuantity
	}

	p, err := s.Products.Get(ctx, productID)
	if err != nil {
		return View{}, err
	}
	if quantity > p.Quantity {
		return View{}, ErrInsufficientStock
	}

	p.Quantity -= quantity
	if err := s.Products.SetStock(ctx, p.ID, p.Quantity); err != nil {
		return View{}, fmt.Errorf("update product stock: %w", err)
	}

	o := &Order{
		ID:          uuid.NewString(),
		UserID:      caller.ID,
		ProductID:   p.ID,
		Quantity:    quantity,
		OrderNumber: newOrderNumber(),
		Status:      StatusProcessing,
		CreatedOn:   time.Now().UTC(),
	}
	if err := s.Orders.Insert(ctx, o); err != nil {
		return View{}, fmt.Errorf("insert order: %w", err)
	}

	view := project(o, p)
	s.emit(ctx, o.UserID, RoomEventOrderCreated, view)
	s.emit(ctx, AdminRoom, RoomEventOrderCreated, view)
	s.publishEvent(s.ProducerCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		ProductID:   o.ProductID,
		Quantity:    o.Quantity,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
	})
	return view, nil
}

// UpdateStatus moves an order between the working states. Admin only,
// no stock side effects. A cancelled order cannot be revived.
func (s *Service) UpdateStatus(ctx context.Context, caller Caller, orderID string, newStatus Status) (*Order, error) {
	if !caller.IsAdmin {
		return nil, ErrForbidden
	}
	if !ValidUpdate(newStatus) {
		return nil, ErrInvalidStatus
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, newStatus) {
		return nil, ErrAlreadyCancelled
	}
	o.Status = newStatus
	if err := s.Orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

// AmendQuantity sets the line item quantity. Product stock is not
// reconciled against the delta.
func (s *Service) AmendQuantity(ctx context.Context, caller Caller, orderID, productID string, newQuantity int) (*Order, error) {
	if productID == "" || newQuantity < 1 {
		return nil, ErrInvalidQuantity
	}
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(o) {
		return nil, ErrForbidden
	}
	if o.ProductID != productID {
		return nil, ErrProductNotInOrder
	}
	o.Quantity = newQuantity
	if err := s.Orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

// Cancel marks the order Cancelled and records who, when and why.
// Reserved stock stays deducted; only Delete restores it.
func (s *Service) Cancel(ctx context.Context, caller Caller, orderID, reason string) (*Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !caller.CanAccess(o) {
		return nil, ErrForbidden
	}
	if reason == "" {
		reason = DefaultCancelReason
	}
	now := time.Now().UTC()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancelledBy = caller.ID
	o.CancelReason = reason
	if err := s.Orders.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

// Delete restores the reserved quantity onto the product (skipped if the
// product is gone) and removes the order. Returns the snapshot taken
// before deletion.
func (s *Service) Delete(ctx context.Context, caller Caller, orderID string) (*Order, error) {
	o, err := s.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(o) {
		return nil, ErrForbidden
	}

	restored := false
	p, err := s.Products.Get(ctx, o.ProductID)
	switch {
	case err == nil:
		if err := s.Products.SetStock(ctx, p.ID, p.Quantity+o.Quantity); err != nil {
			return nil, fmt.Errorf("restore product stock: %w", err)
		}
		restored = true
	case errors.Is(err, ErrProductNotFound):
		// product removed since the order was placed; nothing to restore
	default:
		return nil, fmt.Errorf("load product %s: %w", o.ProductID, err)
	}

	if err := s.Orders.Delete(ctx, o.ID); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}

	notice := struct {
		ID string `json:"id"`
	}{ID: o.ID}
	s.emit(ctx, o.UserID, RoomEventOrderDeleted, notice)
	s.emit(ctx, AdminRoom, RoomEventOrderDeleted, notice)
	s.publishEvent(s.ProducerDeleted, EventOrderDeleted, o.ID, OrderDeletedPayload{
		OrderID:       o.ID,
		UserID:        o.UserID,
		ProductID:     o.ProductID,
		Quantity:      o.Quantity,
		StockRestored: restored,
	})
	return o, nil
}

func (s *Service) emit(ctx context.Context, room, event string, payload any) {
	if err := s.Notifier.Emit(ctx, room, event, payload); err != nil {
		s.Log.Warn("realtime emit failed", "room", room, "event", event, "err", err)
	}
}

func (s *Service) publishEvent(sink EventSink, eventType, orderID string, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Name,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	sink.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}
