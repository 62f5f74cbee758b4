// Package store holds the progress record persistence. Every mutation goes
// through Store.WithTx so a precondition check and the write it guards commit
// together.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"casefile-progress/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Store runs units of work against the progress ledger.
type Store interface {
	// WithTx runs fn in one transaction. Writes made through tx are committed
	// only when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is a transactional view of the ledger. Records returned by Tx are
// copies owned by the caller; persist changes with Save*.
type Tx interface {
	// Now is the storage clock. Time windows are computed against it, never
	// against the caller's clock.
	Now() time.Time

	// GetProgress loads and locks the record for userID.
	GetProgress(userID string) (*models.UserProgress, error)
	// GetProgressByReferralCode loads and locks the record owning code.
	GetProgressByReferralCode(code string) (*models.UserProgress, error)
	// ListProgress loads and locks the given records, or every record when
	// userIDs is empty. Ids are trimmed and each record is returned once.
	ListProgress(userIDs []string) ([]*models.UserProgress, error)
	// CreateProgress inserts a new record. ErrDuplicate on id or referral
	// code collision.
	CreateProgress(p *models.UserProgress) error
	SaveProgress(p *models.UserProgress) error

	// GetReferral loads the ledger row for a referee.
	GetReferral(referredID string) (*models.Referral, error)
	// ListPendingReferrals returns up to limit rows whose referrer credit is
	// still pending, oldest first. The rows are not locked; settling one
	// re-reads it under lock.
	ListPendingReferrals(limit int) ([]*models.Referral, error)
	// CreateReferral inserts a ledger row. ErrDuplicate when the referee
	// already has one.
	CreateReferral(r *models.Referral) error
	SaveReferral(r *models.Referral) error
}

// uniqueIDs trims ids and drops blanks and repeats, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
