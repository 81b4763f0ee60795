package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/shoplite/orders-api/internal/orders"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ProductStore struct {
	collection *mongo.Collection
}

func NewProductStore(db *mongo.Database) *ProductStore {
	return &ProductStore{collection: db.Collection("products")}
}

func (s *ProductStore) Get(ctx context.Context, id string) (*orders.Product, error) {
	var p orders.Product
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, orders.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// SetStock writes the absolute stock level in a single document update.
// Deliberately not $inc: the engine owns the read-check-write sequence.
func (s *ProductStore) SetStock(ctx context.Context, id string, quantity int) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"quantity": quantity}},
	)
	if err != nil {
		return fmt.Errorf("set product stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return orders.ErrProductNotFound
	}
	return nil
}

func (s *ProductStore) List(ctx context.Context) ([]orders.Product, error) {
	cur, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer cur.Close(ctx)

	var out []orders.Product
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}
