package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/models"
	"makerhub/b2b/internal/utils"
)

const quotesCollection = "quotes"

// QuoteListFilter narrows a quote listing. Nil ID pointers mean "any"; an
// empty Statuses slice means all statuses. Search matches free text against
// the request requirements and response notes, or resolves through ProductIDs
// when the caller pre-matched products by name.
type QuoteListFilter struct {
	BuyerID    *utils.ShortID
	SellerID   *utils.ShortID
	Statuses   []models.QuoteStatus
	Search     string
	ProductIDs []utils.ShortID
}

// IQuoteRepository is the persistence boundary for quote aggregates. All
// reads exclude soft-deleted documents.
type IQuoteRepository interface {
	FindByID(ctx context.Context, id utils.ShortID) (*models.Quote, error)
	Find(ctx context.Context, filter QuoteListFilter, limit, offset int) ([]models.Quote, int64, error)
	Insert(ctx context.Context, quote *models.Quote) error
	// UpdateVersioned persists the quote only if the stored version still
	// matches quote.Version, then bumps the version. It returns NotFound when
	// the document is gone and Conflict when another writer won.
	UpdateVersioned(ctx context.Context, quote *models.Quote) error
}

type mongoQuoteRepository struct {
	db *mongo.Database
}

// NewQuoteRepository creates a MongoDB-backed quote repository.
func NewQuoteRepository(db *mongo.Database) IQuoteRepository {
	return &mongoQuoteRepository{db: db}
}

func (r *mongoQuoteRepository) FindByID(ctx context.Context, id utils.ShortID) (*models.Quote, error) {
	var quote models.Quote
	collection := r.db.Collection(quotesCollection)
	filter := bson.M{"_id": id, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&quote)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("quote %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("error finding quote by ID %s: %w", id, err)
	}
	return &quote, nil
}

func (r *mongoQuoteRepository) buildFilter(f QuoteListFilter) bson.M {
	filter := bson.M{"deleted": false}
	if f.BuyerID != nil {
		filter["buyer_id"] = *f.BuyerID
	}
	if f.SellerID != nil {
		filter["seller_id"] = *f.SellerID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	var or []bson.M
	if f.Search != "" {
		quoted := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		or = append(or,
			bson.M{"request.requirements": bson.M{"$regex": quoted}},
			bson.M{"response.notes": bson.M{"$regex": quoted}},
		)
	}
	if len(f.ProductIDs) > 0 {
		or = append(or, bson.M{"product_id": bson.M{"$in": f.ProductIDs}})
	}
	if len(or) > 0 {
		filter["$or"] = or
	}
	return filter
}

func (r *mongoQuoteRepository) Find(ctx context.Context, f QuoteListFilter, limit, offset int) ([]models.Quote, int64, error) {
	collection := r.db.Collection(quotesCollection)
	filter := r.buildFilter(f)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("error counting quotes: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("error listing quotes: %w", err)
	}
	defer cursor.Close(ctx)

	quotes := []models.Quote{}
	if err := cursor.All(ctx, &quotes); err != nil {
		return nil, 0, fmt.Errorf("error decoding quotes: %w", err)
	}
	return quotes, total, nil
}

func (r *mongoQuoteRepository) Insert(ctx context.Context, quote *models.Quote) error {
	collection := r.db.Collection(quotesCollection)
	_, err := collection.InsertOne(ctx, quote)
	if err != nil {
		return fmt.Errorf("error inserting quote %s: %w", quote.ID, err)
	}
	return nil
}

func (r *mongoQuoteRepository) UpdateVersioned(ctx context.Context, quote *models.Quote) error {
	collection := r.db.Collection(quotesCollection)

	expectedVersion := quote.Version
	quote.Version = expectedVersion + 1
	quote.UpdatedAt = time.Now().UTC()

	filter := bson.M{"_id": quote.ID, "version": expectedVersion, "deleted": false}
	result, err := collection.ReplaceOne(ctx, filter, quote)
	if err != nil {
		quote.Version = expectedVersion
		return fmt.Errorf("error updating quote %s: %w", quote.ID, err)
	}
	if result.MatchedCount == 0 {
		quote.Version = expectedVersion
		// Distinguish a missing document from a lost race.
		count, countErr := collection.CountDocuments(ctx, bson.M{"_id": quote.ID, "deleted": false})
		if countErr != nil {
			return fmt.Errorf("error re-checking quote %s after update miss: %w", quote.ID, countErr)
		}
		if count == 0 {
			return fmt.Errorf("quote %s: %w", quote.ID, apperr.ErrNotFound)
		}
		return fmt.Errorf("quote %s version %d superseded: %w", quote.ID, expectedVersion, apperr.ErrConflict)
	}
	return nil
}
