package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"casefile-progress/models"
	"casefile-progress/store"

	"github.com/google/uuid"
)

// ReferralCodeLength is the length of every referral code.
const ReferralCodeLength = 6

// referralAlphabet drops 0/O and 1/I. Its 32 symbols divide 256 evenly.
const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReferralCode returns a random code from referralAlphabet.
func NewReferralCode() (string, error) {
	buf := make([]byte, ReferralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = referralAlphabet[int(b)%len(referralAlphabet)]
	}
	return string(buf), nil
}

func normalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateReferralCodeFormat(code string) error {
	if utf8.RuneCountInString(code) != ReferralCodeLength {
		return ErrInvalidReferralCode
	}
	return nil
}

func lookupReferrer(tx store.Tx, code string) (*models.UserProgress, error) {
	p, err := tx.GetProgressByReferralCode(code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownReferralCode
	}
	return p, err
}

type ReferralResult struct {
	Outcome
	Code          string `json:"code,omitempty"`
	ReferrerID    string `json:"referrer_id,omitempty"`
	PointsAwarded int64  `json:"points_awarded"`
	HintsAwarded  int    `json:"hints_awarded"`
}

// ValidateReferralCode checks a code on behalf of callerID without changing
// anything. Checks run in order: format, self-referral, existence.
func (s *ProgressionService) ValidateReferralCode(ctx context.Context, callerID, code string) (ReferralResult, error) {
	code = normalizeReferralCode(code)
	var referrerID string
	outcome, err := s.transact(ctx, "validate referral code", func(tx store.Tx) error {
		if err := validateReferralCodeFormat(code); err != nil {
			return err
		}
		caller, err := loadProgress(tx, callerID)
		if err != nil {
			return err
		}
		if caller.ReferralCode == code {
			return ErrSelfReferral
		}
		referrer, err := lookupReferrer(tx, code)
		if err != nil {
			return err
		}
		referrerID = referrer.ID
		return nil
	})
	if err != nil {
		return ReferralResult{}, err
	}
	if !outcome.Success {
		return ReferralResult{Outcome: outcome, Code: code}, nil
	}
	return ReferralResult{
		Outcome:       succeeded("referral code is valid"),
		Code:          code,
		ReferrerID:    referrerID,
		PointsAwarded: s.Weights.RefereeBonusPoints,
		HintsAwarded:  s.Weights.RefereeBonusHints,
	}, nil
}

// ApplyReferral credits both sides of a referral in one transaction. A user
// can be referred at most once.
func (s *ProgressionService) ApplyReferral(ctx context.Context, callerID, code string) (ReferralResult, error) {
	code = normalizeReferralCode(code)
	var result ReferralResult
	outcome, err := s.transact(ctx, "apply referral", func(tx store.Tx) error {
		if err := validateReferralCodeFormat(code); err != nil {
			return err
		}
		caller, err := loadProgress(tx, callerID)
		if err != nil {
			return err
		}
		if caller.ReferralCode == code {
			return ErrSelfReferral
		}
		if caller.ReferredBy != "" {
			return ErrAlreadyReferred
		}
		referrer, err := lookupReferrer(tx, code)
		if err != nil {
			return err
		}
		if referrer.ID == caller.ID {
			return ErrSelfReferral
		}
		if _, err := tx.GetReferral(caller.ID); err == nil {
			return ErrAlreadyReferred
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		now := tx.Now()
		caller.ReferredBy = code
		if caller.TotalPoints, err = addBounded(caller.TotalPoints, s.Weights.RefereeBonusPoints); err != nil {
			return err
		}
		caller.Hints += s.Weights.RefereeBonusHints
		if err := tx.SaveProgress(caller); err != nil {
			return err
		}

		credited, err := s.creditReferrer(referrer, caller.ID, code, now)
		if err != nil {
			return err
		}
		if credited {
			if err := tx.SaveProgress(referrer); err != nil {
				return err
			}
		}

		err = tx.CreateReferral(&models.Referral{
			ID:               uuid.NewString(),
			ReferrerID:       referrer.ID,
			ReferredID:       caller.ID,
			ReferralCodeUsed: code,
			Source:           models.ReferralSourceApply,
			RefereePoints:    s.Weights.RefereeBonusPoints,
			RefereeHints:     s.Weights.RefereeBonusHints,
			ReferrerPoints:   s.Weights.ReferrerBonusPoints,
			ReferrerHints:    s.Weights.ReferrerBonusHints,
			BonusAwarded:     true,
			AwardedAt:        &now,
		})
		if errors.Is(err, store.ErrDuplicate) {
			return ErrAlreadyReferred
		}
		if err != nil {
			return err
		}

		result.ReferrerID = referrer.ID
		return nil
	})
	if err != nil {
		return ReferralResult{}, err
	}
	if !outcome.Success {
		return ReferralResult{Outcome: outcome, Code: code}, nil
	}

	s.logger().Info("referral applied",
		"event", "referral_applied",
		"module", "services/referral",
		"layer", "service",
		"user_id", callerID,
		"referrer_id", result.ReferrerID,
		"code", code,
	)
	result.Outcome = succeeded(fmt.Sprintf("referral applied: +%d points, +%d hints",
		s.Weights.RefereeBonusPoints, s.Weights.RefereeBonusHints))
	result.Code = code
	result.PointsAwarded = s.Weights.RefereeBonusPoints
	result.HintsAwarded = s.Weights.RefereeBonusHints
	return result, nil
}

// creditReferrer adds the referrer-side bonus unless refereeID was already
// credited. It reports whether p changed.
func (s *ProgressionService) creditReferrer(p *models.UserProgress, refereeID, code string, now time.Time) (bool, error) {
	if p.HasReferralCredit(refereeID) {
		return false, nil
	}
	points, err := addBounded(p.TotalPoints, s.Weights.ReferrerBonusPoints)
	if err != nil {
		return false, err
	}
	rewards, err := addBounded(p.ReferralStats.TotalRewards, s.Weights.ReferrerBonusPoints)
	if err != nil {
		return false, err
	}
	p.TotalPoints = points
	p.Hints += s.Weights.ReferrerBonusHints
	p.ReferralStats.TotalReferrals++
	p.ReferralStats.SuccessfulReferrals++
	p.ReferralStats.TotalRewards = rewards
	p.ReferralStats.History = append(p.ReferralStats.History, models.ReferralHistoryEntry{
		RefereeID:  refereeID,
		Code:       code,
		Points:     s.Weights.ReferrerBonusPoints,
		Hints:      s.Weights.ReferrerBonusHints,
		CreditedAt: now,
	})
	return true, nil
}

type SettleResult struct {
	Outcome
	Credited bool `json:"credited"`
}

// SettleReferral credits the referrer for a pending signup referral. Calling
// it again after success changes nothing.
func (s *ProgressionService) SettleReferral(ctx context.Context, refereeID string) (SettleResult, error) {
	var credited bool
	outcome, err := s.transact(ctx, "settle referral", func(tx store.Tx) error {
		var err error
		credited, err = s.settle(tx, refereeID)
		return err
	})
	if err != nil {
		return SettleResult{}, err
	}
	if !outcome.Success {
		return SettleResult{Outcome: outcome}, nil
	}
	if credited {
		s.logger().Info("referrer credited",
			"event", "referral_settled",
			"module", "services/referral",
			"layer", "service",
			"referee_id", refereeID,
		)
	}
	return SettleResult{Outcome: succeeded("referral settled"), Credited: credited}, nil
}

func (s *ProgressionService) settle(tx store.Tx, refereeID string) (bool, error) {
	ref, err := tx.GetReferral(refereeID)
	if errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("%w: no referral recorded for %s", ErrNotFound, refereeID)
	}
	if err != nil {
		return false, err
	}
	if ref.BonusAwarded {
		return false, nil
	}
	referrer, err := loadProgress(tx, ref.ReferrerID)
	if err != nil {
		return false, err
	}

	now := tx.Now()
	credited, err := s.creditReferrer(referrer, ref.ReferredID, ref.ReferralCodeUsed, now)
	if err != nil {
		return false, err
	}
	if credited {
		if err := tx.SaveProgress(referrer); err != nil {
			return false, err
		}
	}
	ref.BonusAwarded = true
	ref.AwardedAt = &now
	if err := tx.SaveReferral(ref); err != nil {
		return false, err
	}
	return credited, nil
}

type SettleSummary struct {
	Scanned  int `json:"scanned"`
	Credited int `json:"credited"`
	Failed   int `json:"failed"`
}

// SettlePendingReferrals settles up to limit pending signup referrals. Each
// one runs in its own transaction so a bad row does not block the batch.
func (s *ProgressionService) SettlePendingReferrals(ctx context.Context, limit int) (SettleSummary, error) {
	var pending []*models.Referral
	if _, err := s.transact(ctx, "list pending referrals", func(tx store.Tx) error {
		var err error
		pending, err = tx.ListPendingReferrals(limit)
		return err
	}); err != nil {
		return SettleSummary{}, err
	}

	summary := SettleSummary{Scanned: len(pending)}
	for _, ref := range pending {
		if err := ctx.Err(); err != nil {
			return summary, storageError("settle pending referrals", err)
		}
		res, err := s.SettleReferral(ctx, ref.ReferredID)
		switch {
		case err != nil:
			summary.Failed++
		case !res.Success:
			summary.Failed++
			s.logger().Warn("pending referral not settled",
				"event", "referral_settle_rejected",
				"module", "services/referral",
				"layer", "service",
				"referee_id", ref.ReferredID,
				"reason", res.Message,
			)
		case res.Credited:
			summary.Credited++
		}
	}
	return summary, nil
}
