package services

import (
	"context"
	"math"
	"time"

	"casefile-progress/models"
	"casefile-progress/store"
)

const (
	// ClaimCooldown is the minimum time between two daily claims.
	ClaimCooldown = 24 * time.Hour
	// StreakBreakAfter resets the streak when exceeded since the last claim.
	StreakBreakAfter = 48 * time.Hour
)

type ClaimAction string

const (
	ClaimStart    ClaimAction = "start"
	ClaimContinue ClaimAction = "continue"
	ClaimReset    ClaimAction = "reset"
	ClaimWait     ClaimAction = "wait"
)

// ClaimEvaluation is the eligibility verdict for a daily claim.
type ClaimEvaluation struct {
	Eligible       bool          `json:"eligible"`
	Action         ClaimAction   `json:"action"`
	Remaining      time.Duration `json:"-"`
	HoursRemaining int           `json:"hours_remaining,omitempty"`
	NextClaimAt    *time.Time    `json:"next_claim_at,omitempty"`
}

// EvaluateClaim decides what a claim at now would do given the last claim
// instant. Less than 24h elapsed is a wait, up to and including 48h
// continues the streak, anything longer resets it. A last claim in the future
// is treated as just claimed.
func EvaluateClaim(last *time.Time, now time.Time) ClaimEvaluation {
	if last == nil {
		return ClaimEvaluation{Eligible: true, Action: ClaimStart}
	}
	elapsed := now.Sub(*last)
	switch {
	case elapsed < 0:
		next := now.Add(ClaimCooldown)
		return ClaimEvaluation{
			Action:         ClaimWait,
			Remaining:      ClaimCooldown,
			HoursRemaining: hoursCeil(ClaimCooldown),
			NextClaimAt:    &next,
		}
	case elapsed < ClaimCooldown:
		remaining := ClaimCooldown - elapsed
		next := last.Add(ClaimCooldown)
		return ClaimEvaluation{
			Action:         ClaimWait,
			Remaining:      remaining,
			HoursRemaining: hoursCeil(remaining),
			NextClaimAt:    &next,
		}
	case elapsed <= StreakBreakAfter:
		return ClaimEvaluation{Eligible: true, Action: ClaimContinue}
	default:
		return ClaimEvaluation{Eligible: true, Action: ClaimReset}
	}
}

// NextStreak returns the streak after a claim with the given action.
func NextStreak(current int, action ClaimAction) int {
	switch action {
	case ClaimContinue:
		return min(current+1, models.MaxLoginStreak)
	case ClaimStart, ClaimReset:
		return 1
	default:
		return current
	}
}

func hoursCeil(d time.Duration) int {
	return max(int(math.Ceil(d.Hours())), 1)
}

type ClaimResult struct {
	Outcome
	Action         ClaimAction         `json:"action,omitempty"`
	Streak         int                 `json:"streak"`
	Reward         *models.DailyReward `json:"reward,omitempty"`
	TotalPoints    int64               `json:"total_points"`
	Hints          int                 `json:"hints"`
	HoursRemaining int                 `json:"hours_remaining,omitempty"`
	NextClaimAt    *time.Time          `json:"next_claim_at,omitempty"`
}

// ClaimDailyStreak grants today's login reward. The storage clock is the
// only time source, and the read-evaluate-write runs under the record lock so
// concurrent claims grant at most once.
func (s *ProgressionService) ClaimDailyStreak(ctx context.Context, userID string) (ClaimResult, error) {
	var (
		eval   ClaimEvaluation
		result ClaimResult
	)
	outcome, err := s.transact(ctx, "claim daily streak", func(tx store.Tx) error {
		p, err := loadProgress(tx, userID)
		if err != nil {
			return err
		}
		now := tx.Now()
		eval = EvaluateClaim(p.LastClaimDate, now)
		if !eval.Eligible {
			result.Streak = p.LoginStreak
			return ErrClaimTooSoon
		}

		streak := NextStreak(p.LoginStreak, eval.Action)
		reward := models.DailyRewardFor(streak)
		if p.TotalPoints, err = addBounded(p.TotalPoints, reward.Points); err != nil {
			return err
		}
		p.Hints += reward.Hints
		p.GrantAchievement(reward.Achievement)
		p.LoginStreak = streak
		p.LastClaimDate = &now
		p.Statistics.LongestLoginStreak = max(p.Statistics.LongestLoginStreak, streak)
		p.RecomputeLevel()
		if err := tx.SaveProgress(p); err != nil {
			return err
		}

		result.Streak = streak
		result.Reward = &reward
		result.TotalPoints = p.TotalPoints
		result.Hints = p.Hints
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}
	if !outcome.Success {
		result.Outcome = outcome
		result.Action = eval.Action
		result.HoursRemaining = eval.HoursRemaining
		result.NextClaimAt = eval.NextClaimAt
		result.Reward = nil
		return result, nil
	}

	s.logger().Info("daily reward claimed",
		"event", "streak_claimed",
		"module", "services/streak",
		"layer", "service",
		"user_id", userID,
		"action", string(eval.Action),
		"streak", result.Streak,
		"points", result.Reward.Points,
		"hints", result.Reward.Hints,
	)
	result.Outcome = succeeded(result.Reward.Label)
	result.Action = eval.Action
	return result, nil
}

type StreakStatusResult struct {
	Outcome
	Streak        int                `json:"streak"`
	LongestStreak int                `json:"longest_streak"`
	LastClaimDate *time.Time         `json:"last_claim_date,omitempty"`
	Evaluation    ClaimEvaluation    `json:"evaluation"`
	NextReward    models.DailyReward `json:"next_reward"`
}

// StreakStatus previews the next claim without changing anything.
func (s *ProgressionService) StreakStatus(ctx context.Context, userID string) (StreakStatusResult, error) {
	var result StreakStatusResult
	outcome, err := s.transact(ctx, "streak status", func(tx store.Tx) error {
		p, err := loadProgress(tx, userID)
		if err != nil {
			return err
		}
		result.Streak = p.LoginStreak
		result.LongestStreak = p.Statistics.LongestLoginStreak
		result.LastClaimDate = p.LastClaimDate
		result.Evaluation = EvaluateClaim(p.LastClaimDate, tx.Now())
		next := NextStreak(p.LoginStreak, result.Evaluation.Action)
		if result.Evaluation.Action == ClaimWait {
			next = NextStreak(p.LoginStreak, ClaimContinue)
		}
		result.NextReward = models.DailyRewardFor(next)
		return nil
	})
	if err != nil || !outcome.Success {
		return StreakStatusResult{Outcome: outcome}, err
	}
	result.Outcome = succeeded("")
	return result, nil
}
