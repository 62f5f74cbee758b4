package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"casefile-progress/models"
)

// Memory is an in-process Store. Transactions are serialized by a single
// mutex and writes are staged until commit, so a failed unit of work leaves
// nothing behind.
type Memory struct {
	mu sync.Mutex

	progress  map[string]*models.UserProgress
	referrals map[string]*models.Referral // keyed by referred id
	now       func() time.Time
	fault     error
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock replaces the storage clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		progress:  make(map[string]*models.UserProgress),
		referrals: make(map[string]*models.Referral),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InjectFault makes the next transaction fail at commit time with err.
func (m *Memory) InjectFault(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = err
}

// Snapshot returns a copy of the committed record, for tests and debugging.
func (m *Memory) Snapshot(userID string) (*models.UserProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[strings.TrimSpace(userID)]
	return p.Clone(), ok
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:     m,
		now:       m.now().UTC(),
		progress:  make(map[string]*models.UserProgress),
		referrals: make(map[string]*models.Referral),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if m.fault != nil {
		err := m.fault
		m.fault = nil
		return fmt.Errorf("commit: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for id, p := range tx.progress {
		m.progress[id] = p
	}
	for id, r := range tx.referrals {
		m.referrals[id] = r
	}
	return nil
}

type memoryTx struct {
	store *Memory
	now   time.Time

	// staged writes
	progress  map[string]*models.UserProgress
	referrals map[string]*models.Referral
}

func (tx *memoryTx) Now() time.Time {
	return tx.now
}

func (tx *memoryTx) lookup(userID string) (*models.UserProgress, bool) {
	if p, ok := tx.progress[userID]; ok {
		return p, true
	}
	p, ok := tx.store.progress[userID]
	return p, ok
}

func (tx *memoryTx) GetProgress(userID string) (*models.UserProgress, error) {
	p, ok := tx.lookup(strings.TrimSpace(userID))
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (tx *memoryTx) GetProgressByReferralCode(code string) (*models.UserProgress, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}
	for _, id := range tx.ids() {
		p, _ := tx.lookup(id)
		if p.ReferralCode == code {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (tx *memoryTx) ListProgress(userIDs []string) ([]*models.UserProgress, error) {
	ids := uniqueIDs(userIDs)
	if len(userIDs) == 0 {
		ids = tx.ids()
	}
	items := make([]*models.UserProgress, 0, len(ids))
	for _, id := range ids {
		if p, ok := tx.lookup(id); ok {
			items = append(items, p.Clone())
		}
	}
	return items, nil
}

// ids returns every record id visible in the transaction, sorted.
func (tx *memoryTx) ids() []string {
	seen := make(map[string]struct{}, len(tx.store.progress)+len(tx.progress))
	for id := range tx.store.progress {
		seen[id] = struct{}{}
	}
	for id := range tx.progress {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (tx *memoryTx) CreateProgress(p *models.UserProgress) error {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return fmt.Errorf("progress id is required")
	}
	if _, ok := tx.lookup(id); ok {
		return ErrDuplicate
	}
	if _, err := tx.GetProgressByReferralCode(p.ReferralCode); err == nil {
		return ErrDuplicate
	}
	row := p.Clone()
	row.ID = id
	row.RecomputeLevel()
	row.CreatedAt = tx.now
	row.UpdatedAt = tx.now
	tx.progress[id] = row
	p.CreatedAt, p.UpdatedAt, p.Level = row.CreatedAt, row.UpdatedAt, row.Level
	return nil
}

func (tx *memoryTx) SaveProgress(p *models.UserProgress) error {
	id := strings.TrimSpace(p.ID)
	if _, ok := tx.lookup(id); !ok {
		return ErrNotFound
	}
	row := p.Clone()
	row.RecomputeLevel()
	row.UpdatedAt = tx.now
	tx.progress[id] = row
	p.UpdatedAt, p.Level = row.UpdatedAt, row.Level
	return nil
}

func (tx *memoryTx) lookupReferral(referredID string) (*models.Referral, bool) {
	if r, ok := tx.referrals[referredID]; ok {
		return r, true
	}
	r, ok := tx.store.referrals[referredID]
	return r, ok
}

func (tx *memoryTx) GetReferral(referredID string) (*models.Referral, error) {
	r, ok := tx.lookupReferral(strings.TrimSpace(referredID))
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (tx *memoryTx) ListPendingReferrals(limit int) ([]*models.Referral, error) {
	seen := make(map[string]struct{})
	var items []*models.Referral
	collect := func(src map[string]*models.Referral) {
		for id := range src {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			r, _ := tx.lookupReferral(id)
			if !r.BonusAwarded {
				items = append(items, r.Clone())
			}
		}
	}
	collect(tx.referrals)
	collect(tx.store.referrals)

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ReferredID < items[j].ReferredID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (tx *memoryTx) CreateReferral(r *models.Referral) error {
	referredID := strings.TrimSpace(r.ReferredID)
	if _, ok := tx.lookupReferral(referredID); ok {
		return ErrDuplicate
	}
	row := r.Clone()
	row.ReferredID = referredID
	row.CreatedAt = tx.now
	row.UpdatedAt = tx.now
	tx.referrals[referredID] = row
	r.CreatedAt, r.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (tx *memoryTx) SaveReferral(r *models.Referral) error {
	referredID := strings.TrimSpace(r.ReferredID)
	if _, ok := tx.lookupReferral(referredID); !ok {
		return ErrNotFound
	}
	row := r.Clone()
	row.UpdatedAt = tx.now
	tx.referrals[referredID] = row
	r.UpdatedAt = row.UpdatedAt
	return nil
}
