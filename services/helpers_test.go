package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"casefile-progress/models"
	"casefile-progress/store"

	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequentialCodes hands out CODE01, CODE02, ... so tests can name unknown codes safely.
func sequentialCodes() func() (string, error) {
	var (
		mu sync.Mutex
		n  int
	)
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("CODE%02d", n), nil
	}
}

func newTestService(t *testing.T) (*ProgressionService, *store.Memory, *testClock) {
	t.Helper()
	clock := newTestClock()
	mem := store.NewMemory(store.WithClock(clock.Now))
	svc := NewProgressionService(mem, DefaultRewardWeights, nil)
	svc.Codes = sequentialCodes()
	return svc, mem, clock
}

func mustRegister(t *testing.T, svc *ProgressionService, userID, referralCode string) *models.UserProgress {
	t.Helper()
	res, err := svc.Register(context.Background(), RegisterInput{
		UserID:       userID,
		Email:        userID + "@example.com",
		ReferralCode: referralCode,
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	require.NotNil(t, res.Progress)
	return res.Progress
}

func snapshot(t *testing.T, mem *store.Memory, userID string) *models.UserProgress {
	t.Helper()
	p, ok := mem.Snapshot(userID)
	require.True(t, ok, "no record for %s", userID)
	return p
}

// mutate edits a committed record directly, for setting up edge states.
func mutate(t *testing.T, mem *store.Memory, userID string, fn func(p *models.UserProgress)) {
	t.Helper()
	require.NoError(t, mem.WithTx(context.Background(), func(tx store.Tx) error {
		p, err := tx.GetProgress(userID)
		if err != nil {
			return err
		}
		fn(p)
		return tx.SaveProgress(p)
	}))
}

// scriptedStore wraps a Memory store so a test can fail chosen steps.
type scriptedStore struct {
	*store.Memory

	mu             sync.Mutex
	beforeTx       func() error
	createProgress func(p *models.UserProgress) error
}

func (s *scriptedStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	hook := s.beforeTx
	s.mu.Unlock()
	if hook != nil {
		if err := hook(); err != nil {
			return err
		}
	}
	return s.Memory.WithTx(ctx, func(tx store.Tx) error {
		return fn(&scriptedTx{Tx: tx, owner: s})
	})
}

type scriptedTx struct {
	store.Tx
	owner *scriptedStore
}

func (tx *scriptedTx) CreateProgress(p *models.UserProgress) error {
	tx.owner.mu.Lock()
	hook := tx.owner.createProgress
	tx.owner.mu.Unlock()
	if hook != nil {
		if err := hook(p); err != nil {
			return err
		}
	}
	return tx.Tx.CreateProgress(p)
}

func newScriptedService(t *testing.T) (*ProgressionService, *scriptedStore, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(store.WithClock(newTestClock().Now))
	st := &scriptedStore{Memory: mem}
	svc := NewProgressionService(st, DefaultRewardWeights, nil)
	svc.Codes = sequentialCodes()
	return svc, st, mem
}
