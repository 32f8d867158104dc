package services

import (
	"fmt"

	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/models"
)

// QuoteRelationship classifies a principal relative to a quote. Buyer wins
// over seller if a user somehow sits on both sides, and a direct party
// relationship wins over the admin role.
type QuoteRelationship string

const (
	RelationshipBuyer  QuoteRelationship = "buyer"
	RelationshipSeller QuoteRelationship = "seller"
	RelationshipAdmin  QuoteRelationship = "admin"
	RelationshipNone   QuoteRelationship = "none"
)

// RelationshipTo resolves the principal's relationship to a quote.
func RelationshipTo(p models.Principal, q *models.Quote) QuoteRelationship {
	if p.UserID == q.BuyerID {
		return RelationshipBuyer
	}
	if p.UserID == q.SellerID {
		return RelationshipSeller
	}
	if p.IsAdmin() {
		return RelationshipAdmin
	}
	return RelationshipNone
}

// statusChangeGrants is the authority table for status targets: which
// relationships may request each target status. Targets absent from the table
// are decided purely by the lifecycle transition check.
var statusChangeGrants = map[models.QuoteStatus]map[QuoteRelationship]bool{
	models.QuoteStatusAccepted:  {RelationshipBuyer: true},
	models.QuoteStatusRejected:  {RelationshipBuyer: true},
	models.QuoteStatusCancelled: {RelationshipBuyer: true},
	models.QuoteStatusExpired:   {RelationshipSeller: true, RelationshipAdmin: true},
}

// CanReadQuote returns Forbidden unless the principal is the buyer, the
// seller, or an admin.
func CanReadQuote(p models.Principal, q *models.Quote) error {
	if RelationshipTo(p, q) == RelationshipNone {
		return fmt.Errorf("user %s may not view quote %s: %w", p.UserID, q.ID, apperr.ErrForbidden)
	}
	return nil
}

// CanSetStatus checks the authority table for a status change. It does not
// check the lifecycle; callers validate the transition separately.
func CanSetStatus(p models.Principal, q *models.Quote, target models.QuoteStatus) error {
	grants, ok := statusChangeGrants[target]
	if !ok {
		return fmt.Errorf("status %s is not settable directly: %w", target, apperr.ErrForbidden)
	}
	if !grants[RelationshipTo(p, q)] {
		return fmt.Errorf("user %s may not set quote %s to %s: %w", p.UserID, q.ID, target, apperr.ErrForbidden)
	}
	return nil
}

// CanRespond allows the seller or an admin to attach or revise a response.
func CanRespond(p models.Principal, q *models.Quote) error {
	rel := RelationshipTo(p, q)
	if rel != RelationshipSeller && rel != RelationshipAdmin {
		return fmt.Errorf("user %s may not respond to quote %s: %w", p.UserID, q.ID, apperr.ErrForbidden)
	}
	return nil
}
