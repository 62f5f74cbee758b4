package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"casefile-progress/models"
	"casefile-progress/store"

	"github.com/google/uuid"
)

// RewardWeights define the fixed bonuses (tunable via config/env)
type RewardWeights struct {
	StartingHints       int
	RefereeBonusPoints  int64
	RefereeBonusHints   int
	ReferrerBonusPoints int64
	ReferrerBonusHints  int
}

var DefaultRewardWeights = RewardWeights{
	StartingHints:       3,
	RefereeBonusPoints:  100,
	RefereeBonusHints:   2,
	ReferrerBonusPoints: 200,
	ReferrerBonusHints:  1,
}

const (
	// MaxCasePoints is the most one completion may award.
	MaxCasePoints int64 = 1_000_000
	// MaxCaseTimeSpent is the longest time, in seconds, one completion may report.
	MaxCaseTimeSpent int64 = 7 * 24 * 60 * 60
)

// addBounded adds a non-negative delta to a running total, refusing to wrap.
func addBounded(total, delta int64) (int64, error) {
	if delta < 0 || total > math.MaxInt64-delta {
		return total, ErrTotalOverflow
	}
	return total + delta, nil
}

// maxCodeAttempts bounds referral code regeneration on collision.
const maxCodeAttempts = 8

var errCodeTaken = errors.New("generated referral code already in use")

// ProgressionService owns every mutation of the progress ledger: case
// completion, daily streak claims, referrals and the admin reset.
type ProgressionService struct {
	Store     store.Store
	Weights   RewardWeights
	Evaluator *Evaluator
	Evidence  EvidenceCatalog
	Archiver  Archiver // optional, snapshots records before a bulk reset
	Codes     func() (string, error)
	Logger    *slog.Logger
}

func NewProgressionService(st store.Store, weights RewardWeights, logger *slog.Logger) *ProgressionService {
	return &ProgressionService{
		Store:     st,
		Weights:   weights,
		Evaluator: NewEvaluator(DefaultLegendExemptionCount),
		Evidence:  DefaultEvidenceCatalog,
		Codes:     NewReferralCode,
		Logger:    logger,
	}
}

// RegisterInput carries the identity collaborator's view of a new user.
type RegisterInput struct {
	UserID       string
	Email        string
	ReferralCode string
}

type RegisterResult struct {
	Outcome
	Progress        *models.UserProgress `json:"progress,omitempty"`
	Created         bool                 `json:"created"`
	ReferralApplied bool                 `json:"referral_applied"`
}

// Register creates the progress record for a user. Calling it again for an
// existing user returns the stored record. A referral code is validated
// before the record is built and the referee bonus is part of the initial
// values; the referrer is credited afterwards by SettleReferral.
func (s *ProgressionService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return RegisterResult{Outcome: rejected(ErrMissingUserID)}, nil
	}
	code := normalizeReferralCode(in.ReferralCode)

	var existing *models.UserProgress
	if _, err := s.transact(ctx, "load progress", func(tx store.Tx) error {
		p, err := tx.GetProgress(userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		existing = p
		return err
	}); err != nil {
		return RegisterResult{}, err
	}
	if existing != nil {
		s.settleSignupReferral(ctx, existing)
		return RegisterResult{Outcome: succeeded("already registered"), Progress: existing}, nil
	}

	if code != "" {
		if err := validateReferralCodeFormat(code); err != nil {
			return RegisterResult{Outcome: rejected(err)}, nil
		}
		outcome, err := s.transact(ctx, "validate referral code", func(tx store.Tx) error {
			_, err := lookupReferrer(tx, code)
			return err
		})
		if err != nil {
			return RegisterResult{}, err
		}
		if !outcome.Success {
			return RegisterResult{Outcome: outcome}, nil
		}
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		ownCode, err := s.Codes()
		if err != nil {
			return RegisterResult{}, storageError("generate referral code", err)
		}

		var created *models.UserProgress
		err = s.Store.WithTx(ctx, func(tx store.Tx) error {
			if p, err := tx.GetProgress(userID); err == nil {
				existing = p
				return nil
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if _, err := tx.GetProgressByReferralCode(ownCode); err == nil {
				return errCodeTaken
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			p := s.newRecord(userID, in.Email, ownCode)
			var referrer *models.UserProgress
			if code != "" {
				r, err := lookupReferrer(tx, code)
				if err != nil {
					return err
				}
				referrer = r
				p.TotalPoints += s.Weights.RefereeBonusPoints
				p.Hints += s.Weights.RefereeBonusHints
				p.ReferredBy = code
			}
			p.RecomputeLevel()
			// A concurrent insert can take the code or the id after the checks
			// above. Either way the next attempt sorts it out.
			if err := tx.CreateProgress(p); errors.Is(err, store.ErrDuplicate) {
				return errCodeTaken
			} else if err != nil {
				return err
			}
			if referrer != nil {
				if err := tx.CreateReferral(&models.Referral{
					ID:               uuid.NewString(),
					ReferrerID:       referrer.ID,
					ReferredID:       userID,
					ReferralCodeUsed: code,
					Source:           models.ReferralSourceSignup,
					RefereePoints:    s.Weights.RefereeBonusPoints,
					RefereeHints:     s.Weights.RefereeBonusHints,
					ReferrerPoints:   s.Weights.ReferrerBonusPoints,
					ReferrerHints:    s.Weights.ReferrerBonusHints,
				}); err != nil {
					return err
				}
			}
			created = p
			return nil
		})
		switch {
		case errors.Is(err, errCodeTaken):
			s.logger().Warn("referral code collision, regenerating",
				"event", "progress_referral_code_collision",
				"module", "services/progression",
				"layer", "service",
				"user_id", userID,
				"attempt", attempt+1,
			)
			continue
		case err != nil && isRejection(err):
			return RegisterResult{Outcome: rejected(err)}, nil
		case err != nil:
			return RegisterResult{}, s.storageFailure("create progress", err, "user_id", userID)
		}

		if existing != nil {
			s.settleSignupReferral(ctx, existing)
			return RegisterResult{Outcome: succeeded("already registered"), Progress: existing}, nil
		}

		s.logger().Info("progress record created",
			"event", "progress_registered",
			"module", "services/progression",
			"layer", "service",
			"user_id", userID,
			"referred_by", created.ReferredBy,
		)
		referred := created.ReferredBy != ""
		if referred {
			s.settleSignupReferral(ctx, created)
		}
		return RegisterResult{
			Outcome:         succeeded("registered"),
			Progress:        created,
			Created:         true,
			ReferralApplied: referred,
		}, nil
	}
	return RegisterResult{}, storageError("create progress", errors.New("could not allocate a unique referral code"))
}

// settleSignupReferral credits the referrer of a freshly registered user. A
// failure leaves the ledger row pending for the reconciler.
func (s *ProgressionService) settleSignupReferral(ctx context.Context, p *models.UserProgress) {
	if p.ReferredBy == "" {
		return
	}
	if _, err := s.SettleReferral(ctx, p.ID); err != nil {
		s.logger().Warn("referrer credit deferred",
			"event", "referral_settle_deferred",
			"module", "services/progression",
			"layer", "service",
			"user_id", p.ID,
			"error", err.Error(),
		)
	}
}

func (s *ProgressionService) newRecord(userID, email, code string) *models.UserProgress {
	p := &models.UserProgress{
		ID:             userID,
		Email:          strings.TrimSpace(email),
		Hints:          s.Weights.StartingHints,
		ReferralCode:   code,
		CompletedCases: []string{},
		Evidence:       []models.Evidence{},
		Achievements:   []string{},
	}
	p.ReferralStats.History = []models.ReferralHistoryEntry{}
	p.RecomputeLevel()
	return p
}

// ProgressView is the record plus the badges unlocked from it.
type ProgressView struct {
	Outcome
	Progress     *models.UserProgress `json:"progress,omitempty"`
	Achievements []string             `json:"achievements,omitempty"`
}

func (s *ProgressionService) GetProgress(ctx context.Context, userID string) (ProgressView, error) {
	var p *models.UserProgress
	outcome, err := s.transact(ctx, "load progress", func(tx store.Tx) error {
		var err error
		p, err = loadProgress(tx, userID)
		return err
	})
	if err != nil || !outcome.Success {
		return ProgressView{Outcome: outcome}, err
	}
	return ProgressView{
		Outcome:      outcome,
		Progress:     p,
		Achievements: s.evaluator().Derive(p),
	}, nil
}

// CaseCompletion is one finished attempt at a case.
type CaseCompletion struct {
	CaseID    string
	Points    int64
	TimeSpent int64 // seconds
}

type CaseResult struct {
	Outcome
	PointsAwarded int64             `json:"points_awarded"`
	IsRepeat      bool              `json:"is_repeat"`
	NewEvidence   []models.Evidence `json:"new_evidence,omitempty"`
	TotalPoints   int64             `json:"total_points"`
	Level         int               `json:"level"`
}

// CompleteCase records a case completion.
//
// Points are granted only when the user had never completed any case before
// this call; every later completion awards 0, even for unseen case ids. This
// mirrors the policy observed in production and is pending confirmation with
// the product owner. Evidence has its own gate: the first completion of that
// specific case.
func (s *ProgressionService) CompleteCase(ctx context.Context, userID string, in CaseCompletion) (CaseResult, error) {
	caseID := strings.TrimSpace(in.CaseID)
	if caseID == "" ||
		in.Points < 0 || in.Points > MaxCasePoints ||
		in.TimeSpent < 0 || in.TimeSpent > MaxCaseTimeSpent {
		return CaseResult{Outcome: rejected(ErrInvalidCompletion)}, nil
	}

	var result CaseResult
	outcome, err := s.transact(ctx, "complete case", func(tx store.Tx) error {
		p, err := loadProgress(tx, userID)
		if err != nil {
			return err
		}
		now := tx.Now()

		result.IsRepeat = p.HasCompleted(caseID)
		if len(p.CompletedCases) == 0 {
			result.PointsAwarded = in.Points
		}
		if p.TotalPoints, err = addBounded(p.TotalPoints, result.PointsAwarded); err != nil {
			return err
		}

		stats := &p.Statistics
		if stats.TotalTimeSpent, err = addBounded(stats.TotalTimeSpent, in.TimeSpent); err != nil {
			return err
		}
		if p.AddCompletedCase(caseID) {
			stats.CasesCompleted++
			stats.CompletionStreak++
			stats.LongestCompletionStreak = max(stats.LongestCompletionStreak, stats.CompletionStreak)
			stats.LastCompletedAt = &now

			result.NewEvidence = s.evidenceCatalog().For(caseID, now)
			p.Evidence = append(p.Evidence, result.NewEvidence...)
		}
		stats.AverageCaseTime = float64(stats.TotalTimeSpent) / float64(max(stats.CasesCompleted, 1))
		p.RecomputeLevel()

		if err := tx.SaveProgress(p); err != nil {
			return err
		}
		result.TotalPoints = p.TotalPoints
		result.Level = p.Level
		return nil
	})
	if err != nil {
		return CaseResult{}, err
	}
	if !outcome.Success {
		return CaseResult{Outcome: outcome}, nil
	}

	s.logger().Info("case completion recorded",
		"event", "progress_case_completed",
		"module", "services/progression",
		"layer", "service",
		"user_id", userID,
		"case_id", caseID,
		"points_awarded", result.PointsAwarded,
		"is_repeat", result.IsRepeat,
		"total_points", result.TotalPoints,
	)
	result.Outcome = succeeded("case completed")
	return result, nil
}

type HintResult struct {
	Outcome
	HintsRemaining int `json:"hints_remaining"`
}

// ConsumeHint spends one hint.
func (s *ProgressionService) ConsumeHint(ctx context.Context, userID string) (HintResult, error) {
	var remaining int
	outcome, err := s.transact(ctx, "consume hint", func(tx store.Tx) error {
		p, err := loadProgress(tx, userID)
		if err != nil {
			return err
		}
		if p.Hints <= 0 {
			return ErrNoHints
		}
		p.Hints--
		remaining = p.Hints
		return tx.SaveProgress(p)
	})
	if err != nil {
		return HintResult{}, err
	}
	if !outcome.Success {
		return HintResult{Outcome: outcome}, nil
	}
	return HintResult{Outcome: succeeded("hint used"), HintsRemaining: remaining}, nil
}

// transact runs fn in a store transaction. Business rejections returned by fn
// come back as a failed Outcome; anything else is a storage error.
func (s *ProgressionService) transact(ctx context.Context, op string, fn func(tx store.Tx) error) (Outcome, error) {
	err := s.Store.WithTx(ctx, fn)
	switch {
	case err == nil:
		return succeeded(""), nil
	case isRejection(err):
		return rejected(err), nil
	default:
		return Outcome{}, s.storageFailure(op, err)
	}
}

func (s *ProgressionService) storageFailure(op string, err error, args ...any) error {
	attrs := append([]any{
		"event", "progress_storage_failed",
		"module", "services/progression",
		"layer", "service",
		"operation", op,
		"error", err.Error(),
	}, args...)
	s.logger().Error("progress ledger storage failure", attrs...)
	if errors.Is(err, ErrStorage) {
		return err
	}
	return storageError(op, err)
}

func loadProgress(tx store.Tx, userID string) (*models.UserProgress, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrMissingUserID
	}
	p, err := tx.GetProgress(userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProgressNotFound
	}
	return p, err
}

func (s *ProgressionService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *ProgressionService) evaluator() *Evaluator {
	if s.Evaluator == nil {
		return defaultEvaluator
	}
	return s.Evaluator
}

func (s *ProgressionService) evidenceCatalog() EvidenceCatalog {
	if s.Evidence == nil {
		return DefaultEvidenceCatalog
	}
	return s.Evidence
}
