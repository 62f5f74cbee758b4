package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"casefile-progress/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettler struct {
	mu     sync.Mutex
	calls  int
	limits []int
	err    error
}

func (f *fakeSettler) SettlePendingReferrals(_ context.Context, limit int) (services.SettleSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return services.SettleSummary{}, f.err
	}
	return services.SettleSummary{Scanned: 2, Credited: 1, Failed: 1}, nil
}

func (f *fakeSettler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestReferralReconciler_RunOnce(t *testing.T) {
	settler := &fakeSettler{}
	w := NewReferralReconciler(settler, time.Minute, 25, nil)

	summary, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.SettleSummary{Scanned: 2, Credited: 1, Failed: 1}, summary)
	assert.Equal(t, []int{25}, settler.limits)
}

func TestReferralReconciler_RunOnceError(t *testing.T) {
	settler := &fakeSettler{err: errors.New("db down")}
	w := NewReferralReconciler(settler, time.Minute, 25, nil)

	_, err := w.RunOnce(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestReferralReconciler_RunOnceCanceled(t *testing.T) {
	settler := &fakeSettler{}
	w := NewReferralReconciler(settler, time.Minute, 25, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, settler.callCount())
}

func TestReferralReconciler_Schedules(t *testing.T) {
	settler := &fakeSettler{}
	w := NewReferralReconciler(settler, 50*time.Millisecond, 10, nil)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })

	assert.Eventually(t, func() bool { return settler.callCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestReferralReconciler_StopWithoutStart(t *testing.T) {
	w := NewReferralReconciler(&fakeSettler{}, time.Minute, 1, nil)
	assert.NoError(t, w.Stop())
}
