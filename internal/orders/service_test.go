package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	kafkax "github.com/shoplite/orders-api/internal/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProducts struct {
	m map[string]Product
}

func (s *memProducts) Get(_ context.Context, id string) (*Product, error) {
	p, ok := s.m[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := p
	return &cp, nil
}

func (s *memProducts) SetStock(_ context.Context, id string, quantity int) error {
	p, ok := s.m[id]
	if !ok {
		return ErrProductNotFound
	}
	p.Quantity = quantity
	s.m[id] = p
	return nil
}

func (s *memProducts) List(_ context.Context) ([]Product, error) {
	out := make([]Product, 0, len(s.m))
	for _, p := range s.m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memOrders struct {
	m         map[string]Order
	insertErr error
}

func (s *memOrders) Insert(_ context.Context, o *Order) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.m[o.ID] = *o
	return nil
}

func (s *memOrders) Get(_ context.Context, id string) (*Order, error) {
	o, ok := s.m[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := o
	return &cp, nil
}

func (s *memOrders) List(_ context.Context) ([]Order, error) {
	out := make([]Order, 0, len(s.m))
	for _, o := range s.m {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedOn.Before(out[j].CreatedOn) })
	return out, nil
}

func (s *memOrders) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	all, _ := s.List(ctx)
	out := make([]Order, 0, len(all))
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrders) Update(_ context.Context, o *Order) error {
	if _, ok := s.m[o.ID]; !ok {
		return ErrOrderNotFound
	}
	s.m[o.ID] = *o
	return nil
}

func (s *memOrders) Delete(_ context.Context, id string) error {
	if _, ok := s.m[id]; !ok {
		return ErrOrderNotFound
	}
	delete(s.m, id)
	return nil
}

type emitted struct {
	room    string
	event   string
	payload any
}

type recNotifier struct {
	emits []emitted
}

func (n *recNotifier) Emit(_ context.Context, room, event string, payload any) error {
	n.emits = append(n.emits, emitted{room: room, event: event, payload: payload})
	return nil
}

type recSink struct {
	msgs []Envelope
}

func (r *recSink) Publish(_, value []byte, _ ...kafkago.Header) {
	var ev Envelope
	if err := kafkax.UnmarshalEnvelope(value, &ev); err != nil {
		panic(err)
	}
	r.msgs = append(r.msgs, ev)
}

type fixture struct {
	svc      *Service
	products *memProducts
	orders   *memOrders
	notifier *recNotifier
	created  *recSink
	deleted  *recSink
}

func newFixture() *fixture {
	products := &memProducts{m: map[string]Product{
		"p1": {ID: "p1", Name: "Turmeric 1kg", Price: 240, Quantity: 10, Category: "spices"},
	}}
	ordersStore := &memOrders{m: map[string]Order{}}
	notifier := &recNotifier{}
	created := &recSink{}
	deleted := &recSink{}
	svc := &Service{
		Products:        products,
		Orders:          ordersStore,
		Notifier:        notifier,
		ProducerCreated: created,
		ProducerDeleted: deleted,
		Name:            "orders-api-test",
		Log:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return &fixture{svc: svc, products: products, orders: ordersStore, notifier: notifier, created: created, deleted: deleted}
}

var (
	buyer = Caller{ID: "u1"}
	other = Caller{ID: "u2"}
	admin = Caller{ID: "a1", IsAdmin: true}
)

func TestCreate_ReservesStock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, buyer.ID, view.User)
	assert.NotEmpty(t, view.OrderNumber)
	assert.Equal(t, StatusProcessing, view.Status)
	assert.Equal(t, 3, view.Quantity)
	assert.Equal(t, 7, view.Product.Quantity, "snapshot carries post-deduction stock")
	assert.Nil(t, view.DeliveredOn)

	assert.Equal(t, 7, f.products.m["p1"].Quantity)

	o, err := f.orders.Get(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, "p1", o.ProductID)
}

func TestCreate_EmitsToOwnerAndAdmins(t *testing.T) {
	f := newFixture()

	view, err := f.svc.Create(context.Background(), buyer, "p1", 2)
	require.NoError(t, err)

	require.Len(t, f.notifier.emits, 2)
	assert.Equal(t, "u1", f.notifier.emits[0].room)
	assert.Equal(t, AdminRoom, f.notifier.emits[1].room)
	for _, e := range f.notifier.emits {
		assert.Equal(t, RoomEventOrderCreated, e.event)
		assert.Equal(t, view, e.payload)
	}

	require.Len(t, f.created.msgs, 1)
	ev := f.created.msgs[0]
	assert.Equal(t, EventOrderCreated, ev.EventType)
	assert.Equal(t, view.ID, ev.CorrelationID)
	p, err := kafkax.UnwrapPayload[OrderCreatedPayload](ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, view.ID, p.OrderID)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, 2, p.Quantity)
	assert.Empty(t, f.deleted.msgs)
}

func TestCreate_InsufficientStock(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), buyer, "p1", 11)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 10, f.products.m["p1"].Quantity, "stock untouched on failure")
	assert.Empty(t, f.notifier.emits)
	assert.Empty(t, f.created.msgs)
}

func TestCreate_ProductNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), buyer, "nope", 1)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestCreate_QuantityFloor(t *testing.T) {
	f := newFixture()

	for _, q := range []int{0, -3} {
		_, err := f.svc.Create(context.Background(), buyer, "p1", q)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Equal(t, 10, f.products.m["p1"].Quantity)
}

func TestCreate_InsertFailureLeavesStockDeducted(t *testing.T) {
	// Known gap: stock write and order insert are not one transaction.
	f := newFixture()
	f.orders.insertErr = errors.New("write concern failed")

	_, err := f.svc.Create(context.Background(), buyer, "p1", 4)
	require.Error(t, err)
	assert.Equal(t, 6, f.products.m["p1"].Quantity)
	assert.Empty(t, f.notifier.emits, "no event for a failed create")
}

func TestDelete_RestoresStockRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 3)
	require.NoError(t, err)
	require.Equal(t, 7, f.products.m["p1"].Quantity)

	snap, err := f.svc.Delete(ctx, buyer, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, snap.ID)
	assert.Equal(t, 10, f.products.m["p1"].Quantity, "stock restored to pre-create level")

	_, err = f.orders.Get(ctx, view.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestDelete_EmitsDeletedEvent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 3)
	require.NoError(t, err)
	f.notifier.emits = nil

	_, err = f.svc.Delete(ctx, buyer, view.ID)
	require.NoError(t, err)

	require.Len(t, f.notifier.emits, 2)
	assert.Equal(t, "u1", f.notifier.emits[0].room)
	assert.Equal(t, AdminRoom, f.notifier.emits[1].room)
	for _, e := range f.notifier.emits {
		assert.Equal(t, RoomEventOrderDeleted, e.event)
	}

	require.Len(t, f.deleted.msgs, 1)
	ev := f.deleted.msgs[0]
	assert.Equal(t, EventOrderDeleted, ev.EventType)
	p, err := kafkax.UnwrapPayload[OrderDeletedPayload](ev.Payload)
	require.NoError(t, err)
	assert.Equal(t, view.ID, p.OrderID)
	assert.True(t, p.StockRestored)
}

func TestDelete_ProductGoneSkipsRestitution(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 3)
	require.NoError(t, err)
	delete(f.products.m, "p1")

	_, err = f.svc.Delete(ctx, buyer, view.ID)
	require.NoError(t, err)

	_, err = f.orders.Get(ctx, view.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	require.Len(t, f.deleted.msgs, 1)
	p, err := kafkax.UnwrapPayload[OrderDeletedPayload](f.deleted.msgs[0].Payload)
	require.NoError(t, err)
	assert.False(t, p.StockRestored)
}

func TestDelete_Authorization(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, other, view.ID)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Delete(ctx, admin, view.ID)
	require.NoError(t, err, "admin may delete any order")

	_, err = f.svc.Delete(ctx, buyer, "missing")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancel_RecordsMetadata(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 2)
	require.NoError(t, err)

	o, err := f.svc.Cancel(ctx, buyer, view.ID, "ordered twice")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "u1", o.CancelledBy)
	assert.Equal(t, "ordered twice", o.CancelReason)
	require.NotNil(t, o.CancelledAt)

	// cancelling keeps the reservation; only delete restores stock
	assert.Equal(t, 8, f.products.m["p1"].Quantity)
}

func TestCancel_DefaultReason(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)

	o, err := f.svc.Cancel(ctx, admin, view.ID, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCancelReason, o.CancelReason)
	assert.Equal(t, "a1", o.CancelledBy)
}

func TestCancel_Terminality(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, buyer, view.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, buyer, view.ID, "")
	require.ErrorIs(t, err, ErrAlreadyCancelled)

	_, err = f.svc.UpdateStatus(ctx, admin, view.ID, StatusProcessing)
	require.ErrorIs(t, err, ErrAlreadyCancelled, "cancelled orders cannot be revived")
}

func TestCancel_Authorization(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, other, view.ID, "")
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Cancel(ctx, buyer, "missing", "")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancel_EmitsNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)
	f.notifier.emits = nil

	_, err = f.svc.Cancel(ctx, buyer, view.ID, "")
	require.NoError(t, err)
	assert.Empty(t, f.notifier.emits)
	assert.Empty(t, f.deleted.msgs)
}

func TestUpdateStatus_AdminMovesFreely(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)
	f.notifier.emits = nil

	for _, to := range []Status{StatusCompleted, StatusFailed, StatusProcessing, StatusCompleted} {
		o, err := f.svc.UpdateStatus(ctx, admin, view.ID, to)
		require.NoError(t, err)
		assert.Equal(t, to, o.Status)
	}

	// no stock side effects, no notifications
	assert.Equal(t, 9, f.products.m["p1"].Quantity)
	assert.Empty(t, f.notifier.emits)
	assert.Empty(t, f.deleted.msgs)
}

func TestUpdateStatus_NonAdminForbidden(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, buyer, view.ID, StatusCompleted)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestUpdateStatus_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, admin, view.ID, Status("Shipped"))
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, admin, view.ID, StatusCancelled)
	require.ErrorIs(t, err, ErrInvalidStatus, "cancel has its own operation")

	_, err = f.svc.UpdateStatus(ctx, admin, "missing", StatusCompleted)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAmendQuantity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 2)
	require.NoError(t, err)

	o, err := f.svc.AmendQuantity(ctx, buyer, view.ID, "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, o.Quantity)

	// stock is not reconciled against the delta
	assert.Equal(t, 8, f.products.m["p1"].Quantity)

	o, err = f.svc.AmendQuantity(ctx, admin, view.ID, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, o.Quantity)
}

func TestAmendQuantity_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 2)
	require.NoError(t, err)

	_, err = f.svc.AmendQuantity(ctx, buyer, view.ID, "p1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.AmendQuantity(ctx, buyer, view.ID, "", 3)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.AmendQuantity(ctx, buyer, view.ID, "p2", 3)
	require.ErrorIs(t, err, ErrProductNotInOrder)

	_, err = f.svc.AmendQuantity(ctx, buyer, "missing", "p1", 3)
	require.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.svc.AmendQuantity(ctx, other, view.ID, "p1", 3)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestAmendQuantity_EmitsNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 2)
	require.NoError(t, err)
	f.notifier.emits = nil

	_, err = f.svc.AmendQuantity(ctx, buyer, view.ID, "p1", 4)
	require.NoError(t, err)
	assert.Empty(t, f.notifier.emits)
}

func TestList_VisibilityScoping(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	v1, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)
	v2, err := f.svc.Create(ctx, other, "p1", 2)
	require.NoError(t, err)

	own, err := f.svc.List(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, v1.ID, own[0].ID)

	all, err := f.svc.List(ctx, admin)
	require.NoError(t, err)
	require.Len(t, all, 2)
	ids := []string{all[0].ID, all[1].ID}
	assert.Contains(t, ids, v1.ID)
	assert.Contains(t, ids, v2.ID)
}

func TestList_EmptyIsNotAnError(t *testing.T) {
	f := newFixture()

	views, err := f.svc.List(context.Background(), buyer)
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestList_ProductSnapshot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, buyer, "p1", 4)
	require.NoError(t, err)

	views, err := f.svc.List(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Turmeric 1kg", views[0].Product.Name)
	assert.Equal(t, 240.0, views[0].Product.Price)
	assert.Equal(t, 6, views[0].Product.Quantity, "snapshot shows current stock")
}

func TestList_ToleratesRemovedProduct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)
	delete(f.products.m, "p1")

	views, err := f.svc.List(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "p1", views[0].Product.ID)
	assert.Empty(t, views[0].Product.Name)
}

func TestGet(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.Create(ctx, buyer, "p1", 1)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, buyer, view.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ID, got.ID)
	assert.Equal(t, view.OrderNumber, got.OrderNumber)
	assert.NotEmpty(t, got.CreatedOn)

	_, err = f.svc.Get(ctx, buyer, "missing")
	require.ErrorIs(t, err, ErrOrderNotFound)
}
