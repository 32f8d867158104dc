package models

import (
	"time"

	"makerhub/b2b/internal/utils"
)

// QuoteStatus is the lifecycle state of a quote request.
type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "pending"
	QuoteStatusQuoted    QuoteStatus = "quoted"
	QuoteStatusAccepted  QuoteStatus = "accepted"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusCancelled QuoteStatus = "cancelled"
	QuoteStatusExpired   QuoteStatus = "expired"
)

// Valid reports whether s is one of the known quote statuses.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusQuoted, QuoteStatusAccepted,
		QuoteStatusRejected, QuoteStatusCancelled, QuoteStatusExpired:
		return true
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s QuoteStatus) Terminal() bool {
	switch s {
	case QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusCancelled, QuoteStatusExpired:
		return true
	}
	return false
}

// History entry actions.
const (
	QuoteActionRequested       = "requested"
	QuoteActionResponded       = "responded"
	QuoteActionResponseUpdated = "response_updated"
	QuoteActionAttachmentAdded = "attachment_added"
)

// StatusChangeAction returns the history action recorded for a transition to target.
func StatusChangeAction(target QuoteStatus) string {
	return "status_" + string(target)
}

// BuyerContact is a fixed-schema contact snapshot taken at request time.
type BuyerContact struct {
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

// QuoteRequest holds the buyer's side of the negotiation.
type QuoteRequest struct {
	Quantity     int64         `bson:"quantity" json:"quantity"`
	TargetPrice  *float64      `bson:"target_price,omitempty" json:"target_price,omitempty"`
	CurrencyCode string        `bson:"currency_code" json:"currency_code"`
	Requirements string        `bson:"requirements" json:"requirements"`
	RequiredBy   *time.Time    `bson:"required_by,omitempty" json:"required_by,omitempty"`
	Contact      *BuyerContact `bson:"contact,omitempty" json:"contact,omitempty"`
}

// QuoteResponse holds the seller's latest pricing/terms. Only the newest response
// is authoritative; prior terms survive in the history log.
type QuoteResponse struct {
	UnitPrice    float64       `bson:"unit_price" json:"unit_price"`
	CurrencyCode string        `bson:"currency_code" json:"currency_code"`
	MinOrderQty  *int64        `bson:"min_order_qty,omitempty" json:"min_order_qty,omitempty"`
	LeadTimeDays *int          `bson:"lead_time_days,omitempty" json:"lead_time_days,omitempty"`
	ValidUntil   *time.Time    `bson:"valid_until,omitempty" json:"valid_until,omitempty"`
	Notes        string        `bson:"notes,omitempty" json:"notes,omitempty"`
	RespondedAt  time.Time     `bson:"responded_at" json:"responded_at"`
	RespondedBy  utils.ShortID `bson:"responded_by" json:"responded_by"`
}

// QuoteHistoryEntry is one immutable audit record. Entries are only ever appended.
type QuoteHistoryEntry struct {
	Actor      utils.ShortID `bson:"actor" json:"actor"`
	Action     string        `bson:"action" json:"action"`
	StatusFrom QuoteStatus   `bson:"status_from,omitempty" json:"status_from,omitempty"`
	StatusTo   QuoteStatus   `bson:"status_to,omitempty" json:"status_to,omitempty"`
	Note       string        `bson:"note,omitempty" json:"note,omitempty"`
	Timestamp  time.Time     `bson:"timestamp" json:"timestamp"`
}

// Quote is the aggregate root for one buyer/seller negotiation over one product
// (optionally one variant).
type Quote struct {
	ID              utils.ShortID       `bson:"_id,omitempty" json:"id,omitempty"`
	ProductID       utils.ShortID       `bson:"product_id" json:"product_id"`
	VariantID       *utils.ShortID      `bson:"variant_id,omitempty" json:"variant_id,omitempty"`
	BuyerID         utils.ShortID       `bson:"buyer_id" json:"buyer_id"`
	BuyerCompanyID  *utils.ShortID      `bson:"buyer_company_id,omitempty" json:"buyer_company_id,omitempty"`
	SellerID        utils.ShortID       `bson:"seller_id" json:"seller_id"`
	SellerCompanyID *utils.ShortID      `bson:"seller_company_id,omitempty" json:"seller_company_id,omitempty"`
	Request         QuoteRequest        `bson:"request" json:"request"`
	Response        *QuoteResponse      `bson:"response,omitempty" json:"response,omitempty"`
	Status          QuoteStatus         `bson:"status" json:"status"`
	History         []QuoteHistoryEntry `bson:"history" json:"history"`
	Attachments     []string            `bson:"attachments,omitempty" json:"attachments,omitempty"` // S3 keys
	Version         int64               `bson:"version" json:"-"`                                   // CAS token for conditional updates
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at" json:"updated_at"`
	Deleted         bool                `bson:"deleted" json:"-"` // Soft delete flag
	DeletedAt       *time.Time          `bson:"deleted_at,omitempty" json:"-"`
}

// AppendHistory records one audit entry on the aggregate. It is a pure append:
// it performs no authorization and never rewrites existing entries. Timestamps
// are kept monotonically non-decreasing relative to the last entry.
func (q *Quote) AppendHistory(entry QuoteHistoryEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if n := len(q.History); n > 0 && entry.Timestamp.Before(q.History[n-1].Timestamp) {
		entry.Timestamp = q.History[n-1].Timestamp
	}
	q.History = append(q.History, entry)
}

// InvolvesCompany reports whether the given company is the quote's buyer or
// seller company.
func (q *Quote) InvolvesCompany(companyID utils.ShortID) bool {
	if q.BuyerCompanyID != nil && *q.BuyerCompanyID == companyID {
		return true
	}
	return q.SellerCompanyID != nil && *q.SellerCompanyID == companyID
}
