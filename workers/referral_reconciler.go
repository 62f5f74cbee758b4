// workers/referral_reconciler.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"casefile-progress/services"

	"github.com/go-co-op/gocron/v2"
)

// ReferralSettler settles pending referrer credits in batches.
type ReferralSettler interface {
	SettlePendingReferrals(ctx context.Context, limit int) (services.SettleSummary, error)
}

// ReferralReconciler periodically credits referrers whose signup-time
// settlement did not complete.
type ReferralReconciler struct {
	settler  ReferralSettler
	interval time.Duration
	batch    int
	timeout  time.Duration
	logger   *slog.Logger

	sched gocron.Scheduler
}

func NewReferralReconciler(settler ReferralSettler, interval time.Duration, batch int, logger *slog.Logger) *ReferralReconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReferralReconciler{
		settler:  settler,
		interval: interval,
		batch:    batch,
		timeout:  max(interval/2, 10*time.Second),
		logger:   logger,
	}
}

// Start schedules the job. Runs never overlap.
func (w *ReferralReconciler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			_, _ = w.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("referral-reconciler"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule referral reconciler: %w", err)
	}
	sched.Start()
	w.sched = sched

	w.logger.Info("referral reconciler started",
		"event", "referral_reconciler_started",
		"module", "workers",
		"layer", "worker",
		"interval", w.interval.String(),
		"batch", w.batch,
	)
	return nil
}

// RunOnce settles one batch.
func (w *ReferralReconciler) RunOnce(ctx context.Context) (services.SettleSummary, error) {
	if err := ctx.Err(); err != nil {
		return services.SettleSummary{}, err
	}
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	summary, err := w.settler.SettlePendingReferrals(runCtx, w.batch)
	if err != nil {
		w.logger.Error("referral reconciliation failed",
			"event", "referral_reconcile_failed",
			"module", "workers",
			"layer", "worker",
			"error", err.Error(),
		)
		return summary, err
	}
	if summary.Scanned > 0 {
		w.logger.Info("referral reconciliation run",
			"event", "referral_reconcile_run",
			"module", "workers",
			"layer", "worker",
			"scanned", summary.Scanned,
			"credited", summary.Credited,
			"failed", summary.Failed,
		)
	}
	return summary, nil
}

func (w *ReferralReconciler) Stop() error {
	if w.sched == nil {
		return nil
	}
	return w.sched.Shutdown()
}
