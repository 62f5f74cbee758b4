package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"casefile-progress/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestMemory() *Memory {
	return NewMemory(WithClock(func() time.Time { return fixedNow }))
}

func seed(t *testing.T, m *Memory, records ...*models.UserProgress) {
	t.Helper()
	require.NoError(t, m.WithTx(context.Background(), func(tx Tx) error {
		for _, p := range records {
			if err := tx.CreateProgress(p); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestMemory_CreateAndGet(t *testing.T) {
	m := newTestMemory()
	seed(t, m, &models.UserProgress{ID: "u1", ReferralCode: "AAAAAA", TotalPoints: 2500})

	got, ok := m.Snapshot("u1")
	require.True(t, ok)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, fixedNow, got.CreatedAt)

	err := m.WithTx(context.Background(), func(tx Tx) error {
		assert.Equal(t, fixedNow, tx.Now())
		p, err := tx.GetProgressByReferralCode("AAAAAA")
		require.NoError(t, err)
		assert.Equal(t, "u1", p.ID)

		_, err = tx.GetProgress("nobody")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tx.GetProgressByReferralCode("ZZZZZZ")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemory_Duplicates(t *testing.T) {
	m := newTestMemory()
	seed(t, m, &models.UserProgress{ID: "u1", ReferralCode: "AAAAAA"})

	err := m.WithTx(context.Background(), func(tx Tx) error {
		return tx.CreateProgress(&models.UserProgress{ID: "u1", ReferralCode: "BBBBBB"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = m.WithTx(context.Background(), func(tx Tx) error {
		return tx.CreateProgress(&models.UserProgress{ID: "u2", ReferralCode: "AAAAAA"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = m.WithTx(context.Background(), func(tx Tx) error {
		if err := tx.CreateReferral(&models.Referral{ID: "r1", ReferrerID: "u1", ReferredID: "u2"}); err != nil {
			return err
		}
		return tx.CreateReferral(&models.Referral{ID: "r2", ReferrerID: "u1", ReferredID: "u2"})
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemory_RollbackOnError(t *testing.T) {
	m := newTestMemory()
	seed(t, m, &models.UserProgress{ID: "u1", ReferralCode: "AAAAAA"})

	boom := errors.New("boom")
	err := m.WithTx(context.Background(), func(tx Tx) error {
		p, err := tx.GetProgress("u1")
		require.NoError(t, err)
		p.TotalPoints = 999
		require.NoError(t, tx.SaveProgress(p))
		require.NoError(t, tx.CreateProgress(&models.UserProgress{ID: "u2", ReferralCode: "BBBBBB"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, _ := m.Snapshot("u1")
	assert.Zero(t, p.TotalPoints)
	_, ok := m.Snapshot("u2")
	assert.False(t, ok)
}

func TestMemory_InjectFault(t *testing.T) {
	m := newTestMemory()
	seed(t, m, &models.UserProgress{ID: "u1", ReferralCode: "AAAAAA"})

	disk := errors.New("disk full")
	m.InjectFault(disk)
	err := m.WithTx(context.Background(), func(tx Tx) error {
		p, _ := tx.GetProgress("u1")
		p.Hints = 10
		return tx.SaveProgress(p)
	})
	require.ErrorIs(t, err, disk)

	p, _ := m.Snapshot("u1")
	assert.Zero(t, p.Hints)

	// fault is one-shot
	require.NoError(t, m.WithTx(context.Background(), func(tx Tx) error { return nil }))
}

func TestMemory_ReadsAreIsolatedCopies(t *testing.T) {
	m := newTestMemory()
	seed(t, m, &models.UserProgress{ID: "u1", ReferralCode: "AAAAAA", CompletedCases: []string{"case-001"}})

	require.NoError(t, m.WithTx(context.Background(), func(tx Tx) error {
		p, _ := tx.GetProgress("u1")
		p.CompletedCases[0] = "mutated"
		return nil
	}))

	p, _ := m.Snapshot("u1")
	assert.Equal(t, "case-001", p.CompletedCases[0])
}

func TestMemory_SaveMissing(t *testing.T) {
	m := newTestMemory()
	err := m.WithTx(context.Background(), func(tx Tx) error {
		return tx.SaveProgress(&models.UserProgress{ID: "ghost"})
	})
	assert.ErrorIs(t, err, ErrNotFound)

	err = m.WithTx(context.Background(), func(tx Tx) error {
		return tx.SaveReferral(&models.Referral{ReferredID: "ghost"})
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ListProgress(t *testing.T) {
	m := newTestMemory()
	seed(t, m,
		&models.UserProgress{ID: "b", ReferralCode: "BBBBBB"},
		&models.UserProgress{ID: "a", ReferralCode: "AAAAAA"},
		&models.UserProgress{ID: "c", ReferralCode: "CCCCCC"},
	)

	require.NoError(t, m.WithTx(context.Background(), func(tx Tx) error {
		all, err := tx.ListProgress(nil)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "a", all[0].ID)

		some, err := tx.ListProgress([]string{"c", "missing"})
		require.NoError(t, err)
		require.Len(t, some, 1)
		assert.Equal(t, "c", some[0].ID)

		repeated, err := tx.ListProgress([]string{"a", "a", " a ", "b"})
		require.NoError(t, err)
		require.Len(t, repeated, 2)
		assert.Equal(t, "a", repeated[0].ID)
		assert.Equal(t, "b", repeated[1].ID)

		blank, err := tx.ListProgress([]string{" "})
		require.NoError(t, err)
		assert.Empty(t, blank)
		return nil
	}))
}

func TestMemory_ListPendingReferrals(t *testing.T) {
	now := fixedNow
	m := NewMemory(WithClock(func() time.Time { return now }))

	require.NoError(t, m.WithTx(context.Background(), func(tx Tx) error {
		return tx.CreateReferral(&models.Referral{ID: "r1", ReferrerID: "x", ReferredID: "u1"})
	}))
	now = now.Add(time.Minute)
	require.NoError(t, m.WithTx(context.Background(), func(tx Tx) error {
		if err := tx.CreateReferral(&models.Referral{ID: "r2", ReferrerID: "x", ReferredID: "u2"}); err != nil {
			return err
		}
		return tx.CreateReferral(&models.Referral{ID: "r3", ReferrerID: "x", ReferredID: "u3", BonusAwarded: true})
	}))

	require.NoError(t, m.WithTx(context.Background(), func(tx Tx) error {
		pending, err := tx.ListPendingReferrals(0)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "u1", pending[0].ReferredID)
		assert.Equal(t, "u2", pending[1].ReferredID)

		limited, err := tx.ListPendingReferrals(1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
		return nil
	}))
}

func TestMemory_CanceledContext(t *testing.T) {
	m := newTestMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := m.WithTx(ctx, func(tx Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
