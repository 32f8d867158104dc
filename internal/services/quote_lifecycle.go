package services

import (
	"fmt"

	"makerhub/b2b/internal/apperr"
	"makerhub/b2b/internal/models"
)

// quoteTransitions is the full lifecycle table. A status maps to the set of
// statuses it may move to; terminal statuses have no entry. Same-status
// "transitions" are not listed here because they are treated as idempotent
// no-ops before this table is consulted.
var quoteTransitions = map[models.QuoteStatus]map[models.QuoteStatus]bool{
	models.QuoteStatusPending: {
		models.QuoteStatusQuoted:    true,
		models.QuoteStatusCancelled: true,
		models.QuoteStatusExpired:   true,
	},
	models.QuoteStatusQuoted: {
		models.QuoteStatusQuoted:    true, // re-quote with revised terms
		models.QuoteStatusAccepted:  true,
		models.QuoteStatusRejected:  true,
		models.QuoteStatusCancelled: true,
		models.QuoteStatusExpired:   true,
	},
}

// CanTransition reports whether the lifecycle allows moving from one status to
// another.
func CanTransition(from, to models.QuoteStatus) bool {
	return quoteTransitions[from][to]
}

// ValidateTransition returns an InvalidTransition error naming both statuses
// when the edge is not in the lifecycle table.
func ValidateTransition(from, to models.QuoteStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("cannot move quote from %s to %s: %w", from, to, apperr.ErrInvalidTransition)
	}
	return nil
}
