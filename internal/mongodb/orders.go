package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/shoplite/orders-api/internal/orders"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderStore struct {
	collection *mongo.Collection
}

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{collection: db.Collection("orders")}
}

func (s *OrderStore) Insert(ctx context.Context, o *orders.Order) error {
	if _, err := s.collection.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*orders.Order, error) {
	var o orders.Order
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, orders.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (s *OrderStore) List(ctx context.Context) ([]orders.Order, error) {
	return s.find(ctx, bson.M{})
}

func (s *OrderStore) ListByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	return s.find(ctx, bson.M{"user": userID})
}

func (s *OrderStore) find(ctx context.Context, filter bson.M) ([]orders.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdOn", Value: 1}})
	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cur.Close(ctx)

	var out []orders.Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return out, nil
}

// Update replaces the whole document; orders are small single-item records.
func (s *OrderStore) Update(ctx context.Context, o *orders.Order) error {
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": o.ID}, o)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if res.MatchedCount == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (s *OrderStore) Delete(ctx context.Context, id string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}
