package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/models"
	"makerhub/b2b/internal/utils"
)

// memQuoteRepository is an in-memory IQuoteRepository with the same version
// semantics as the Mongo implementation, so service tests run without a
// database.
type memQuoteRepository struct {
	mu     sync.Mutex
	quotes map[utils.ShortID]*models.Quote

	// failConflictOnce makes the next UpdateVersioned lose the race, to
	// exercise the retry path.
	failConflictOnce bool
}

func newMemQuoteRepository() *memQuoteRepository {
	return &memQuoteRepository{quotes: make(map[utils.ShortID]*models.Quote)}
}

func cloneQuote(q *models.Quote) *models.Quote {
	c := *q
	c.History = append([]models.QuoteHistoryEntry{}, q.History...)
	c.Attachments = append([]string{}, q.Attachments...)
	if q.Response != nil {
		r := *q.Response
		c.Response = &r
	}
	return &c
}

func (r *memQuoteRepository) FindByID(_ context.Context, id utils.ShortID) (*models.Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.quotes[id]
	if !ok || q.Deleted {
		return nil, fmt.Errorf("quote %s: %w", id, apperr.ErrNotFound)
	}
	return cloneQuote(q), nil
}

func (r *memQuoteRepository) matches(q *models.Quote, f QuoteListFilter) bool {
	if q.Deleted {
		return false
	}
	if f.BuyerID != nil && q.BuyerID != *f.BuyerID {
		return false
	}
	if f.SellerID != nil && q.SellerID != *f.SellerID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if q.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search == "" && len(f.ProductIDs) == 0 {
		return true
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if strings.Contains(strings.ToLower(q.Request.Requirements), needle) {
			return true
		}
		if q.Response != nil && strings.Contains(strings.ToLower(q.Response.Notes), needle) {
			return true
		}
	}
	for _, pid := range f.ProductIDs {
		if q.ProductID == pid {
			return true
		}
	}
	return false
}

func (r *memQuoteRepository) Find(_ context.Context, f QuoteListFilter, limit, offset int) ([]models.Quote, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*models.Quote
	for _, q := range r.quotes {
		if r.matches(q, f) {
			matched = append(matched, q)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []models.Quote{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	page := make([]models.Quote, 0, end-offset)
	for _, q := range matched[offset:end] {
		page = append(page, *cloneQuote(q))
	}
	return page, total, nil
}

func (r *memQuoteRepository) Insert(_ context.Context, quote *models.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.quotes[quote.ID]; exists {
		return fmt.Errorf("duplicate quote id %s", quote.ID)
	}
	r.quotes[quote.ID] = cloneQuote(quote)
	return nil
}

func (r *memQuoteRepository) UpdateVersioned(_ context.Context, quote *models.Quote) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.quotes[quote.ID]
	if !ok || stored.Deleted {
		return fmt.Errorf("quote %s: %w", quote.ID, apperr.ErrNotFound)
	}
	if r.failConflictOnce {
		r.failConflictOnce = false
		return fmt.Errorf("quote %s version %d superseded: %w", quote.ID, quote.Version, apperr.ErrConflict)
	}
	if stored.Version != quote.Version {
		return fmt.Errorf("quote %s version %d superseded: %w", quote.ID, quote.Version, apperr.ErrConflict)
	}
	quote.Version++
	quote.UpdatedAt = time.Now().UTC()
	r.quotes[quote.ID] = cloneQuote(quote)
	return nil
}

func (r *memQuoteRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.quotes)
}

// stubProductService serves products from a map.
type stubProductService struct {
	products map[utils.ShortID]*models.Product
}

func newStubProductService(products ...*models.Product) *stubProductService {
	m := make(map[utils.ShortID]*models.Product)
	for _, p := range products {
		m[p.ID] = p
	}
	return &stubProductService{products: m}
}

func (s *stubProductService) FindProductByID(_ context.Context, productID utils.ShortID) (*models.Product, error) {
	p, ok := s.products[productID]
	if !ok || p.Deleted {
		return nil, fmt.Errorf("product %s: %w", productID, apperr.ErrNotFound)
	}
	return p, nil
}

func (s *stubProductService) SearchProductIDs(_ context.Context, query string, limit int) ([]utils.ShortID, error) {
	needle := strings.ToLower(query)
	var ids []utils.ShortID
	for _, p := range s.products {
		if p.Deleted {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.SKU), needle) {
			ids = append(ids, p.ID)
			if len(ids) == limit {
				break
			}
		}
	}
	return ids, nil
}

// stubUserService serves users from a map.
type stubUserService struct {
	users map[utils.ShortID]*models.User
}

func newStubUserService(users ...*models.User) *stubUserService {
	m := make(map[utils.ShortID]*models.User)
	for _, u := range users {
		m[u.ID] = u
	}
	return &stubUserService{users: m}
}

func (s *stubUserService) FindByID(_ context.Context, userID utils.ShortID) (*models.User, error) {
	u, ok := s.users[userID]
	if !ok || u.Deleted {
		return nil, fmt.Errorf("user %s: %w", userID, apperr.ErrNotFound)
	}
	return u, nil
}

// stubAttachmentStore returns deterministic presigned URLs.
type stubAttachmentStore struct {
	presigned []string
}

func (s *stubAttachmentStore) PresignUpload(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	s.presigned = append(s.presigned, key)
	return "https://s3.test/upload/" + key, nil
}
