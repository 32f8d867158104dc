package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"makerhub/b2b/internal/apperr"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// Retryable reports whether an error is worth another attempt.
type Retryable func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation with default retry settings for duplicate key
// errors. Used by inserts that generate their own short IDs, where a collision
// is resolved by regenerating the ID.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// TryCAS executes an operation with default retry settings for optimistic
// concurrency conflicts. The operation must re-read the document each attempt
// so the retry sees the winner's state.
func TryCAS(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsVersionConflict)
}

// WithRetries executes an operation up to 1+maxRetries times, retrying only
// when retryable reports true, with a small incremental backoff between
// attempts.
func WithRetries(op Operation, maxRetries int, retryable Retryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if retryable(err) {
			time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
		} else {
			return err
		}
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// IsVersionConflict checks if an error is an optimistic concurrency conflict.
func IsVersionConflict(err error) bool {
	return errors.Is(err, apperr.ErrConflict)
}
