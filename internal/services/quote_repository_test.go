package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/models"
	"makerhub/b2b/internal/utils"
)

func newTestQuote(buyerID, sellerID utils.ShortID, status models.QuoteStatus) *models.Quote {
	now := time.Now().UTC()
	q := &models.Quote{
		ID:        utils.NewShortID(),
		ProductID: utils.NewShortID(),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Status:    status,
		Request: models.QuoteRequest{
			Quantity:     100,
			CurrencyCode: "INR",
			Requirements: "100 units of anodized aluminium brackets",
		},
		History:   []models.QuoteHistoryEntry{},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return q
}

func TestQuoteRepository_InsertAndFind(t *testing.T) {
	db := utils.SetupTestDB(t, "makerhub_test", quotesCollection)
	repo := NewQuoteRepository(db)
	ctx := context.Background()

	buyerID := utils.NewShortID()
	sellerID := utils.NewShortID()
	q := newTestQuote(buyerID, sellerID, models.QuoteStatusPending)
	require.NoError(t, repo.Insert(ctx, q))

	found, err := repo.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, found.ID)
	assert.Equal(t, buyerID, found.BuyerID)
	assert.Equal(t, models.QuoteStatusPending, found.Status)
	assert.Equal(t, int64(1), found.Version)
	assert.Equal(t, int64(100), found.Request.Quantity)
}

func TestQuoteRepository_FindByID_NotFound(t *testing.T) {
	db := utils.SetupTestDB(t, "makerhub_test", quotesCollection)
	repo := NewQuoteRepository(db)

	_, err := repo.FindByID(context.Background(), utils.NewShortID())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestQuoteRepository_UpdateVersioned(t *testing.T) {
	db := utils.SetupTestDB(t, "makerhub_test", quotesCollection)
	repo := NewQuoteRepository(db)
	ctx := context.Background()

	q := newTestQuote(utils.NewShortID(), utils.NewShortID(), models.QuoteStatusPending)
	require.NoError(t, repo.Insert(ctx, q))

	q.Status = models.QuoteStatusQuoted
	require.NoError(t, repo.UpdateVersioned(ctx, q))
	assert.Equal(t, int64(2), q.Version)

	found, err := repo.FindByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusQuoted, found.Status)
	assert.Equal(t, int64(2), found.Version)
}

func TestQuoteRepository_UpdateVersioned_Conflict(t *testing.T) {
	db := utils.SetupTestDB(t, "makerhub_test", quotesCollection)
	repo := NewQuoteRepository(db)
	ctx := context.Background()

	q := newTestQuote(utils.NewShortID(), utils.NewShortID(), models.QuoteStatusPending)
	require.NoError(t, repo.Insert(ctx, q))

	// Simulate a second reader holding the same version.
	stale, err := repo.FindByID(ctx, q.ID)
	require.NoError(t, err)

	q.Status = models.QuoteStatusQuoted
	require.NoError(t, repo.UpdateVersioned(ctx, q))

	stale.Status = models.QuoteStatusCancelled
	err = repo.UpdateVersioned(ctx, stale)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	// The version is restored so a retry can re-read and reapply.
	assert.Equal(t, int64(1), stale.Version)
}

func TestQuoteRepository_UpdateVersioned_NotFound(t *testing.T) {
	db := utils.SetupTestDB(t, "makerhub_test", quotesCollection)
	repo := NewQuoteRepository(db)

	q := newTestQuote(utils.NewShortID(), utils.NewShortID(), models.QuoteStatusPending)
	err := repo.UpdateVersioned(context.Background(), q)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestQuoteRepository_Find_FiltersAndPagination(t *testing.T) {
	db := utils.SetupTestDB(t, "makerhub_test", quotesCollection)
	repo := NewQuoteRepository(db)
	ctx := context.Background()

	buyerID := utils.NewShortID()
	sellerID := utils.NewShortID()
	otherBuyer := utils.NewShortID()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, newTestQuote(buyerID, sellerID, models.QuoteStatusPending)))
	}
	quoted := newTestQuote(buyerID, sellerID, models.QuoteStatusQuoted)
	require.NoError(t, repo.Insert(ctx, quoted))
	require.NoError(t, repo.Insert(ctx, newTestQuote(otherBuyer, sellerID, models.QuoteStatusPending)))

	// All quotes for the buyer.
	quotes, total, err := repo.Find(ctx, QuoteListFilter{BuyerID: &buyerID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, quotes, 4)

	// Status filter.
	quotes, total, err = repo.Find(ctx, QuoteListFilter{
		BuyerID:  &buyerID,
		Statuses: []models.QuoteStatus{models.QuoteStatusQuoted},
	}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, quotes, 1)
	assert.Equal(t, quoted.ID, quotes[0].ID)

	// Pagination: total stays full while the page is clipped.
	quotes, total, err = repo.Find(ctx, QuoteListFilter{BuyerID: &buyerID}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, quotes, 2)

	// Seller view includes both buyers.
	_, total, err = repo.Find(ctx, QuoteListFilter{SellerID: &sellerID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
}

func TestQuoteRepository_Find_Search(t *testing.T) {
	db := utils.SetupTestDB(t, "makerhub_test", quotesCollection)
	repo := NewQuoteRepository(db)
	ctx := context.Background()

	buyerID := utils.NewShortID()
	sellerID := utils.NewShortID()

	q1 := newTestQuote(buyerID, sellerID, models.QuoteStatusPending)
	q1.Request.Requirements = "CNC machined titanium housings"
	require.NoError(t, repo.Insert(ctx, q1))

	q2 := newTestQuote(buyerID, sellerID, models.QuoteStatusPending)
	require.NoError(t, repo.Insert(ctx, q2))

	quotes, total, err := repo.Find(ctx, QuoteListFilter{BuyerID: &buyerID, Search: "titanium"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, quotes, 1)
	assert.Equal(t, q1.ID, quotes[0].ID)
}

func TestQuoteRepository_Find_ExcludesSoftDeleted(t *testing.T) {
	db := utils.SetupTestDB(t, "makerhub_test", quotesCollection)
	repo := NewQuoteRepository(db)
	ctx := context.Background()

	buyerID := utils.NewShortID()
	q := newTestQuote(buyerID, utils.NewShortID(), models.QuoteStatusPending)
	now := time.Now().UTC()
	q.Deleted = true
	q.DeletedAt = &now
	require.NoError(t, repo.Insert(ctx, q))

	_, err := repo.FindByID(ctx, q.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, total, err := repo.Find(ctx, QuoteListFilter{BuyerID: &buyerID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}
