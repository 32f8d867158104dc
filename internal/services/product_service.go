package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/models"
	"makerhub/b2b/internal/utils"
)

const productsCollection = "products"

// IProductService defines the catalog lookups the quote workflow needs. The
// catalog itself is written by a separate system; this service only reads.
type IProductService interface {
	FindProductByID(ctx context.Context, productID utils.ShortID) (*models.Product, error)
	// SearchProductIDs returns the IDs of live products whose name or SKU
	// matches the query, capped to keep the resulting $in filter small.
	SearchProductIDs(ctx context.Context, query string, limit int) ([]utils.ShortID, error)
}

type productService struct {
	db *mongo.Database
}

// NewProductService creates a new ProductService.
func NewProductService(db *mongo.Database) IProductService {
	return &productService{db: db}
}

func (s *productService) FindProductByID(ctx context.Context, productID utils.ShortID) (*models.Product, error) {
	var product models.Product
	collection := s.db.Collection(productsCollection)
	filter := bson.M{"_id": productID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("product %s: %w", productID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("error finding product by ID %s: %w", productID, err)
	}
	return &product, nil
}

func (s *productService) SearchProductIDs(ctx context.Context, query string, limit int) ([]utils.ShortID, error) {
	collection := s.db.Collection(productsCollection)
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"deleted": false,
		"$or": []bson.M{
			{"name": bson.M{"$regex": pattern}},
			{"sku": bson.M{"$regex": pattern}},
		},
	}

	findOpts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("error searching products for %q: %w", query, err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID utils.ShortID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("error decoding product search results: %w", err)
	}

	ids := make([]utils.ShortID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
