package services

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/config"
	"makerhub/b2b/internal/db"
	"makerhub/b2b/internal/models"
	"makerhub/b2b/internal/notify"
	"makerhub/b2b/internal/utils"
)

// ListMode scopes a quote listing to the caller's relationship.
type ListMode string

const (
	ListModeAsked    ListMode = "asked"    // caller is the buyer
	ListModeReceived ListMode = "received" // caller is the buyer, responded statuses only
	ListModeIncoming ListMode = "incoming" // caller is the seller
)

// respondedStatuses are the statuses a quote can hold once a seller has
// engaged with it. Used by the received listing mode.
var respondedStatuses = []models.QuoteStatus{
	models.QuoteStatusQuoted,
	models.QuoteStatusAccepted,
	models.QuoteStatusRejected,
	models.QuoteStatusExpired,
}

// Notification event keys.
const (
	EventQuoteRequested     = "quote.requested"
	EventQuoteResponded     = "quote.responded"
	EventQuoteStatusChanged = "quote.status_changed"
)

const requirementsMaxLen = 2000

// CreateQuoteInput carries a buyer's quote request.
type CreateQuoteInput struct {
	ProductID    utils.ShortID
	VariantID    *utils.ShortID
	Quantity     int64
	TargetPrice  *float64
	CurrencyCode string
	Requirements string
	RequiredBy   *time.Time
	Contact      *models.BuyerContact
}

// RespondInput carries a seller's pricing response.
type RespondInput struct {
	UnitPrice    float64
	CurrencyCode string
	MinOrderQty  *int64
	LeadTimeDays *int
	ValidUntil   *time.Time
	Notes        string
}

// ListQuotesInput narrows and paginates a listing. Status is the raw query
// value so the service owns its validation.
type ListQuotesInput struct {
	Mode   ListMode
	Status string
	Search string
	Limit  int
	Offset int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// PartySummary is the display shape of a quote participant.
type PartySummary struct {
	ID          utils.ShortID  `json:"id"`
	Name        string         `json:"name"`
	CompanyID   *utils.ShortID `json:"company_id,omitempty"`
	CompanyName string         `json:"company_name,omitempty"`
}

// ProductSummary is the display shape of the quoted product.
type ProductSummary struct {
	ID          utils.ShortID  `json:"id"`
	Name        string         `json:"name"`
	SKU         string         `json:"sku,omitempty"`
	VariantID   *utils.ShortID `json:"variant_id,omitempty"`
	VariantName string         `json:"variant_name,omitempty"`
	VariantSKU  string         `json:"variant_sku,omitempty"`
}

// QuoteView is a quote shaped for callers, with participant and product
// summaries denormalized. Summaries are best-effort; a reference that no
// longer resolves leaves the summary nil rather than failing the read.
type QuoteView struct {
	models.Quote
	Product *ProductSummary `json:"product,omitempty"`
	Buyer   *PartySummary   `json:"buyer,omitempty"`
	Seller  *PartySummary   `json:"seller,omitempty"`
}

// QuoteListResult is one page of shaped quotes.
type QuoteListResult struct {
	Quotes     []QuoteView `json:"quotes"`
	Pagination Pagination  `json:"pagination"`
}

// AttachmentUpload is a presigned upload slot for a quote attachment.
type AttachmentUpload struct {
	Key       string `json:"key"`
	UploadURL string `json:"upload_url"`
}

// IAttachmentStore issues presigned upload URLs for quote attachments.
type IAttachmentStore interface {
	PresignUpload(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
}

// IQuoteService defines the quote workflow operations.
type IQuoteService interface {
	Create(ctx context.Context, p models.Principal, input CreateQuoteInput) (*QuoteView, error)
	GetByID(ctx context.Context, p models.Principal, quoteID utils.ShortID) (*QuoteView, error)
	List(ctx context.Context, p models.Principal, input ListQuotesInput) (*QuoteListResult, error)
	Respond(ctx context.Context, p models.Principal, quoteID utils.ShortID, input RespondInput) (*QuoteView, error)
	UpdateStatus(ctx context.Context, p models.Principal, quoteID utils.ShortID, target, note string) (*QuoteView, error)
	RequestAttachmentUpload(ctx context.Context, p models.Principal, quoteID utils.ShortID, filename, contentType string) (*AttachmentUpload, error)
	// RegisterAttachment records a processed attachment key on the quote.
	// Called by the background worker after the object has been verified.
	RegisterAttachment(ctx context.Context, quoteID, actorID utils.ShortID, key string) error
}

type quoteService struct {
	repo       IQuoteRepository
	products   IProductService
	users      IUserService
	dispatcher notify.Dispatcher
	store      IAttachmentStore
	cfg        *config.Config
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(repo IQuoteRepository, products IProductService, users IUserService, dispatcher notify.Dispatcher, store IAttachmentStore, cfg *config.Config) IQuoteService {
	return &quoteService{
		repo:       repo,
		products:   products,
		users:      users,
		dispatcher: dispatcher,
		store:      store,
		cfg:        cfg,
	}
}

func (s *quoteService) Create(ctx context.Context, p models.Principal, input CreateQuoteInput) (*QuoteView, error) {
	if p.IsZero() {
		return nil, fmt.Errorf("quote creation requires a principal: %w", apperr.ErrUnauthenticated)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d: %w", input.Quantity, apperr.ErrInvalidArgument)
	}
	requirements := strings.TrimSpace(input.Requirements)
	if requirements == "" {
		return nil, fmt.Errorf("requirements must not be empty: %w", apperr.ErrInvalidArgument)
	}
	if len(requirements) > requirementsMaxLen {
		return nil, fmt.Errorf("requirements exceed %d characters: %w", requirementsMaxLen, apperr.ErrInvalidArgument)
	}
	if input.TargetPrice != nil && *input.TargetPrice < 0 {
		return nil, fmt.Errorf("target price must not be negative: %w", apperr.ErrInvalidArgument)
	}
	currency, err := normalizeCurrency(input.CurrencyCode, s.cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}

	product, err := s.products.FindProductByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	if product.SellerID.IsZero() {
		return nil, fmt.Errorf("product %s has no seller: %w", product.ID, apperr.ErrInvalidState)
	}
	var variant *models.ProductVariant
	if input.VariantID != nil {
		variant = product.Variant(*input.VariantID)
		if variant == nil {
			return nil, fmt.Errorf("variant %s not found on product %s: %w", input.VariantID, product.ID, apperr.ErrNotFound)
		}
	}

	// Self-dealing: the buyer may not quote their own product, directly or
	// through the same company.
	if p.UserID == product.SellerID {
		return nil, fmt.Errorf("user %s owns product %s: %w", p.UserID, product.ID, apperr.ErrForbidden)
	}
	if p.CompanyID != nil && product.SellerCompanyID != nil && *p.CompanyID == *product.SellerCompanyID {
		return nil, fmt.Errorf("company %s owns product %s: %w", p.CompanyID, product.ID, apperr.ErrForbidden)
	}

	now := time.Now().UTC()
	var quote *models.Quote
	operation := func() error {
		quote = &models.Quote{
			ID:              utils.NewShortID(),
			ProductID:       product.ID,
			VariantID:       input.VariantID,
			BuyerID:         p.UserID,
			BuyerCompanyID:  p.CompanyID,
			SellerID:        product.SellerID,
			SellerCompanyID: product.SellerCompanyID,
			Request: models.QuoteRequest{
				Quantity:     input.Quantity,
				TargetPrice:  input.TargetPrice,
				CurrencyCode: currency,
				Requirements: requirements,
				RequiredBy:   input.RequiredBy,
				Contact:      input.Contact,
			},
			Status:      models.QuoteStatusPending,
			History:     []models.QuoteHistoryEntry{},
			Attachments: []string{},
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		quote.AppendHistory(models.QuoteHistoryEntry{
			Actor:     p.UserID,
			Action:    models.QuoteActionRequested,
			StatusTo:  models.QuoteStatusPending,
			Timestamp: now,
		})
		return s.repo.Insert(ctx, quote)
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to create quote for product %s: %w", product.ID, err)
	}

	s.notifyParty(ctx, quote.SellerID, "New quote request",
		fmt.Sprintf("You received a quote request for %s (qty %d).", product.Name, quote.Request.Quantity),
		EventQuoteRequested, quote)

	return s.shapeQuote(ctx, quote), nil
}

func (s *quoteService) GetByID(ctx context.Context, p models.Principal, quoteID utils.ShortID) (*QuoteView, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if err := CanReadQuote(p, quote); err != nil {
		return nil, err
	}
	return s.shapeQuote(ctx, quote), nil
}

func (s *quoteService) List(ctx context.Context, p models.Principal, input ListQuotesInput) (*QuoteListResult, error) {
	if p.IsZero() {
		return nil, fmt.Errorf("quote listing requires a principal: %w", apperr.ErrUnauthenticated)
	}

	mode := input.Mode
	if mode == "" {
		mode = ListModeAsked
	}

	var statusFilter *models.QuoteStatus
	if input.Status != "" {
		status := models.QuoteStatus(input.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", input.Status, apperr.ErrInvalidArgument)
		}
		statusFilter = &status
	}

	filter := QuoteListFilter{}
	switch mode {
	case ListModeAsked:
		buyerID := p.UserID
		filter.BuyerID = &buyerID
		if statusFilter != nil {
			filter.Statuses = []models.QuoteStatus{*statusFilter}
		}
	case ListModeReceived:
		buyerID := p.UserID
		filter.BuyerID = &buyerID
		if statusFilter != nil {
			if !isRespondedStatus(*statusFilter) {
				return nil, fmt.Errorf("status %s is not a responded status: %w", *statusFilter, apperr.ErrInvalidArgument)
			}
			filter.Statuses = []models.QuoteStatus{*statusFilter}
		} else {
			filter.Statuses = respondedStatuses
		}
	case ListModeIncoming:
		sellerID := p.UserID
		filter.SellerID = &sellerID
		if statusFilter != nil {
			filter.Statuses = []models.QuoteStatus{*statusFilter}
		}
	default:
		return nil, fmt.Errorf("unknown list mode %q: %w", mode, apperr.ErrInvalidArgument)
	}

	if search := strings.TrimSpace(input.Search); search != "" {
		filter.Search = search
		productIDs, err := s.products.SearchProductIDs(ctx, search, 50)
		if err != nil {
			// Degrade to text-only search rather than failing the listing.
			log.Printf("Product search for quote listing failed (query %q): %v", search, err)
		} else {
			filter.ProductIDs = productIDs
		}
	}

	limit := input.Limit
	if limit <= 0 {
		limit = s.cfg.QuoteListDefaultLimit
	}
	if limit > s.cfg.QuoteListMaxLimit {
		limit = s.cfg.QuoteListMaxLimit
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	quotes, total, err := s.repo.Find(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]QuoteView, 0, len(quotes))
	for i := range quotes {
		views = append(views, *s.shapeQuote(ctx, &quotes[i]))
	}

	return &QuoteListResult{
		Quotes: views,
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+len(quotes)) < total,
		},
	}, nil
}

func (s *quoteService) Respond(ctx context.Context, p models.Principal, quoteID utils.ShortID, input RespondInput) (*QuoteView, error) {
	if input.UnitPrice < 0 {
		return nil, fmt.Errorf("unit price must not be negative: %w", apperr.ErrInvalidArgument)
	}
	if input.MinOrderQty != nil && *input.MinOrderQty <= 0 {
		return nil, fmt.Errorf("minimum order quantity must be positive: %w", apperr.ErrInvalidArgument)
	}
	if input.LeadTimeDays != nil && *input.LeadTimeDays < 0 {
		return nil, fmt.Errorf("lead time must not be negative: %w", apperr.ErrInvalidArgument)
	}

	var quote *models.Quote
	operation := func() error {
		var err error
		quote, err = s.repo.FindByID(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := CanRespond(p, quote); err != nil {
			return err
		}
		if quote.Status != models.QuoteStatusPending && quote.Status != models.QuoteStatusQuoted {
			return fmt.Errorf("quote %s is %s and cannot be responded to: %w", quote.ID, quote.Status, apperr.ErrInvalidState)
		}

		currency := input.CurrencyCode
		if currency == "" {
			currency = quote.Request.CurrencyCode
		}
		currency, err = normalizeCurrency(currency, s.cfg.DefaultCurrency)
		if err != nil {
			return err
		}

		if err := ValidateTransition(quote.Status, models.QuoteStatusQuoted); err != nil {
			return err
		}

		action := models.QuoteActionResponded
		if quote.Response != nil {
			action = models.QuoteActionResponseUpdated
		}

		now := time.Now().UTC()
		statusFrom := quote.Status
		quote.Response = &models.QuoteResponse{
			UnitPrice:    input.UnitPrice,
			CurrencyCode: currency,
			MinOrderQty:  input.MinOrderQty,
			LeadTimeDays: input.LeadTimeDays,
			ValidUntil:   input.ValidUntil,
			Notes:        input.Notes,
			RespondedAt:  now,
			RespondedBy:  p.UserID,
		}
		quote.Status = models.QuoteStatusQuoted
		quote.AppendHistory(models.QuoteHistoryEntry{
			Actor:      p.UserID,
			Action:     action,
			StatusFrom: statusFrom,
			StatusTo:   models.QuoteStatusQuoted,
			Timestamp:  now,
		})
		return s.repo.UpdateVersioned(ctx, quote)
	}
	if err := db.TryCAS(operation); err != nil {
		return nil, err
	}

	s.notifyParty(ctx, quote.BuyerID, "Quote received",
		fmt.Sprintf("Your quote request %s has been priced at %.2f %s per unit.", quote.ID, input.UnitPrice, quote.Response.CurrencyCode),
		EventQuoteResponded, quote)

	return s.shapeQuote(ctx, quote), nil
}

func (s *quoteService) UpdateStatus(ctx context.Context, p models.Principal, quoteID utils.ShortID, target, note string) (*QuoteView, error) {
	targetStatus := models.QuoteStatus(target)
	if !targetStatus.Valid() || !targetStatus.Terminal() {
		return nil, fmt.Errorf("unsupported target status %q: %w", target, apperr.ErrInvalidArgument)
	}

	var quote *models.Quote
	var changed bool
	operation := func() error {
		var err error
		quote, err = s.repo.FindByID(ctx, quoteID)
		if err != nil {
			return err
		}
		if err := CanSetStatus(p, quote, targetStatus); err != nil {
			return err
		}
		if quote.Status == targetStatus {
			// Idempotent repeat: no history, no write.
			changed = false
			return nil
		}
		if err := ValidateTransition(quote.Status, targetStatus); err != nil {
			return err
		}

		statusFrom := quote.Status
		quote.Status = targetStatus
		quote.AppendHistory(models.QuoteHistoryEntry{
			Actor:      p.UserID,
			Action:     models.StatusChangeAction(targetStatus),
			StatusFrom: statusFrom,
			StatusTo:   targetStatus,
			Note:       note,
			Timestamp:  time.Now().UTC(),
		})
		changed = true
		return s.repo.UpdateVersioned(ctx, quote)
	}
	if err := db.TryCAS(operation); err != nil {
		return nil, err
	}

	if changed {
		counterparty := quote.SellerID
		if RelationshipTo(p, quote) != RelationshipBuyer {
			counterparty = quote.BuyerID
		}
		s.notifyParty(ctx, counterparty, "Quote "+string(targetStatus),
			fmt.Sprintf("Quote %s is now %s.", quote.ID, targetStatus),
			EventQuoteStatusChanged, quote)
	}

	return s.shapeQuote(ctx, quote), nil
}

func (s *quoteService) RequestAttachmentUpload(ctx context.Context, p models.Principal, quoteID utils.ShortID, filename, contentType string) (*AttachmentUpload, error) {
	if s.store == nil {
		return nil, fmt.Errorf("attachment storage is not configured: %w", apperr.ErrInvalidState)
	}
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if err := CanReadQuote(p, quote); err != nil {
		return nil, err
	}
	if quote.Status.Terminal() {
		return nil, fmt.Errorf("quote %s is %s and no longer accepts attachments: %w", quote.ID, quote.Status, apperr.ErrInvalidState)
	}

	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("quotes/%s/%s%s", quote.ID, uuid.New().String(), ext)
	url, err := s.store.PresignUpload(ctx, key, contentType, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to presign attachment upload for quote %s: %w", quote.ID, err)
	}
	return &AttachmentUpload{Key: key, UploadURL: url}, nil
}

func (s *quoteService) RegisterAttachment(ctx context.Context, quoteID, actorID utils.ShortID, key string) error {
	operation := func() error {
		quote, err := s.repo.FindByID(ctx, quoteID)
		if err != nil {
			return err
		}
		for _, existing := range quote.Attachments {
			if existing == key {
				return nil // already registered, worker retried
			}
		}
		quote.Attachments = append(quote.Attachments, key)
		quote.AppendHistory(models.QuoteHistoryEntry{
			Actor:      actorID,
			Action:     models.QuoteActionAttachmentAdded,
			StatusFrom: quote.Status,
			StatusTo:   quote.Status,
			Note:       key,
			Timestamp:  time.Now().UTC(),
		})
		return s.repo.UpdateVersioned(ctx, quote)
	}
	return db.TryCAS(operation)
}

// notifyParty dispatches best-effort; failures are logged, never surfaced.
func (s *quoteService) notifyParty(ctx context.Context, userID utils.ShortID, title, body, eventKey string, quote *models.Quote) {
	if s.dispatcher == nil {
		return
	}
	n := notify.Notification{
		UserID:   userID,
		Title:    title,
		Body:     body,
		EventKey: eventKey,
		Data: map[string]string{
			"quote_id":   quote.ID.String(),
			"product_id": quote.ProductID.String(),
			"status":     string(quote.Status),
		},
	}
	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		log.Printf("Failed to dispatch %s notification for quote %s: %v", eventKey, quote.ID, err)
	}
}

func (s *quoteService) shapeQuote(ctx context.Context, quote *models.Quote) *QuoteView {
	view := &QuoteView{Quote: *quote}

	if product, err := s.products.FindProductByID(ctx, quote.ProductID); err != nil {
		log.Printf("Could not shape product %s for quote %s: %v", quote.ProductID, quote.ID, err)
	} else {
		summary := &ProductSummary{ID: product.ID, Name: product.Name, SKU: product.SKU}
		if quote.VariantID != nil {
			if v := product.Variant(*quote.VariantID); v != nil {
				summary.VariantID = quote.VariantID
				summary.VariantName = v.Name
				summary.VariantSKU = v.SKU
			}
		}
		view.Product = summary
	}

	view.Buyer = s.partySummary(ctx, quote.BuyerID, quote.BuyerCompanyID)
	view.Seller = s.partySummary(ctx, quote.SellerID, quote.SellerCompanyID)
	return view
}

func (s *quoteService) partySummary(ctx context.Context, userID utils.ShortID, companyID *utils.ShortID) *PartySummary {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		log.Printf("Could not shape user %s: %v", userID, err)
		return &PartySummary{ID: userID, CompanyID: companyID}
	}
	summary := &PartySummary{ID: user.ID, Name: user.Name, CompanyID: companyID, CompanyName: user.CompanyName}
	if summary.CompanyID == nil {
		summary.CompanyID = user.CompanyID
	}
	return summary
}

func isRespondedStatus(status models.QuoteStatus) bool {
	for _, s := range respondedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// normalizeCurrency upper-cases a 3 to 5 letter currency code, applying the
// fallback when empty.
func normalizeCurrency(code, fallback string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = fallback
	}
	code = strings.ToUpper(code)
	if len(code) < 3 || len(code) > 5 {
		return "", fmt.Errorf("currency code %q must be 3 to 5 letters: %w", code, apperr.ErrInvalidArgument)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("currency code %q must be letters only: %w", code, apperr.ErrInvalidArgument)
		}
	}
	return code, nil
}
