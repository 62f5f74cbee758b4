package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PointsPerLevel is the number of points between two levels.
const PointsPerLevel = 1000

// MaxLoginStreak caps the daily-login streak.
const MaxLoginStreak = 30

// UserProgress is the single per-user progression record (source of truth for
// points, hints, cases, evidence, achievements, streak and referral state).
type UserProgress struct {
	ID    string `gorm:"primaryKey" json:"id"` // identity service user id
	Email string `json:"email,omitempty"`

	// Core progression
	TotalPoints int64 `json:"total_points" gorm:"not null;default:0"`
	Hints       int   `json:"hints" gorm:"not null;default:0"`
	Level       int   `json:"level" gorm:"not null;default:1"` // always derived from TotalPoints

	CompletedCases datatypes.JSONSlice[string]   `gorm:"not null;default:'[]'" json:"completed_cases"`
	Evidence       datatypes.JSONSlice[Evidence] `gorm:"not null;default:'[]'" json:"evidence"`
	Achievements   datatypes.JSONSlice[string]   `gorm:"not null;default:'[]'" json:"achievements"` // stored (non-derivable) badges only

	// Referral
	ReferralCode  string        `gorm:"uniqueIndex;size:6;not null" json:"referral_code"`
	ReferredBy    string        `gorm:"size:6" json:"referred_by,omitempty"` // write-once
	ReferralStats ReferralStats `gorm:"embedded;embeddedPrefix:referral_" json:"referral_stats"`

	// Daily streak
	LoginStreak   int        `json:"login_streak" gorm:"not null;default:0"`
	LastClaimDate *time.Time `json:"last_claim_date,omitempty"` // storage-issued

	Statistics Statistics `gorm:"embedded;embeddedPrefix:stats_" json:"statistics"`

	Timestamps
}

// TableName keeps the table singular like the rest of the ledger schema.
func (UserProgress) TableName() string {
	return "user_progress"
}

// Evidence is a narrative artifact unlocked by completing a case.
type Evidence struct {
	ID           string    `json:"id"`
	CaseID       string    `json:"case_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// ReferralStats aggregates what a user earned as a referrer.
type ReferralStats struct {
	TotalReferrals      int   `json:"total_referrals" gorm:"not null;default:0"`
	SuccessfulReferrals int   `json:"successful_referrals" gorm:"not null;default:0"`
	TotalRewards        int64 `json:"total_rewards" gorm:"not null;default:0"`

	// History is keyed by referee id; an entry means the referrer was already credited.
	History datatypes.JSONSlice[ReferralHistoryEntry] `gorm:"not null;default:'[]'" json:"history"`
}

// ReferralHistoryEntry records one referrer-side credit.
type ReferralHistoryEntry struct {
	RefereeID  string    `json:"referee_id"`
	Code       string    `json:"code"`
	Points     int64     `json:"points"`
	Hints      int       `json:"hints"`
	CreditedAt time.Time `json:"credited_at"`
}

// Statistics holds aggregate case and streak counters.
type Statistics struct {
	CasesCompleted          int        `json:"cases_completed" gorm:"not null;default:0"`
	TotalTimeSpent          int64      `json:"total_time_spent" gorm:"not null;default:0"` // seconds
	AverageCaseTime         float64    `json:"average_case_time" gorm:"not null;default:0"`
	CompletionStreak        int        `json:"completion_streak" gorm:"not null;default:0"`
	LongestCompletionStreak int        `json:"longest_completion_streak" gorm:"not null;default:0"`
	LongestLoginStreak      int        `json:"longest_login_streak" gorm:"not null;default:0"`
	LastCompletedAt         *time.Time `json:"last_completed_at,omitempty"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// LevelFor returns the level reached with the given points.
func LevelFor(points int64) int {
	if points < 0 {
		points = 0
	}
	return int(points/PointsPerLevel) + 1
}

// RecomputeLevel re-derives Level from TotalPoints.
func (p *UserProgress) RecomputeLevel() {
	p.Level = LevelFor(p.TotalPoints)
}

// BeforeSave keeps Level in sync with TotalPoints on every write.
func (p *UserProgress) BeforeSave(_ *gorm.DB) error {
	p.RecomputeLevel()
	return nil
}

// HasCompleted reports whether caseID is in the completed set.
func (p *UserProgress) HasCompleted(caseID string) bool {
	return slices.Contains(p.CompletedCases, caseID)
}

// AddCompletedCase adds caseID to the completed set. It returns false when the
// case was already present.
func (p *UserProgress) AddCompletedCase(caseID string) bool {
	if p.HasCompleted(caseID) {
		return false
	}
	p.CompletedCases = append(p.CompletedCases, caseID)
	return true
}

// HasAchievement reports whether code is stored on the record.
func (p *UserProgress) HasAchievement(code string) bool {
	return slices.Contains(p.Achievements, code)
}

// GrantAchievement stores code once. It returns false when already stored.
func (p *UserProgress) GrantAchievement(code string) bool {
	if code == "" || p.HasAchievement(code) {
		return false
	}
	p.Achievements = append(p.Achievements, code)
	return true
}

// HasReferralCredit reports whether the referee was already credited to this referrer.
func (p *UserProgress) HasReferralCredit(refereeID string) bool {
	return slices.ContainsFunc(p.ReferralStats.History, func(e ReferralHistoryEntry) bool {
		return e.RefereeID == refereeID
	})
}

// Clone returns a deep copy of the record.
func (p *UserProgress) Clone() *UserProgress {
	if p == nil {
		return nil
	}
	c := *p
	c.CompletedCases = slices.Clone(p.CompletedCases)
	c.Evidence = slices.Clone(p.Evidence)
	c.Achievements = slices.Clone(p.Achievements)
	c.ReferralStats.History = slices.Clone(p.ReferralStats.History)
	if p.LastClaimDate != nil {
		t := *p.LastClaimDate
		c.LastClaimDate = &t
	}
	if p.Statistics.LastCompletedAt != nil {
		t := *p.Statistics.LastCompletedAt
		c.Statistics.LastCompletedAt = &t
	}
	return &c
}
