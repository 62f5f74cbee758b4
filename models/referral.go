package models

import "time"

// ReferralSource tells which flow linked the referee to the referrer.
type ReferralSource string

const (
	ReferralSourceSignup ReferralSource = "signup"
	ReferralSourceApply  ReferralSource = "apply"
)

// Referral is the ledger row linking a referee to its referrer.
// BonusAwarded=false means the referrer-side credit is still pending.
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`
	ReferredID string `gorm:"uniqueIndex;not null" json:"referred_id"` // one referral per referee

	ReferralCodeUsed string         `gorm:"size:6;not null" json:"referral_code_used"`
	Source           ReferralSource `gorm:"size:16;not null" json:"source"`

	RefereePoints  int64 `json:"referee_points" gorm:"default:0"`
	RefereeHints   int   `json:"referee_hints" gorm:"default:0"`
	ReferrerPoints int64 `json:"referrer_points" gorm:"default:0"`
	ReferrerHints  int   `json:"referrer_hints" gorm:"default:0"`

	BonusAwarded bool       `json:"bonus_awarded" gorm:"default:false;index"`
	AwardedAt    *time.Time `json:"awarded_at,omitempty"`

	Timestamps
}

// Clone returns a copy that does not share the AwardedAt pointer.
func (r *Referral) Clone() *Referral {
	if r == nil {
		return nil
	}
	c := *r
	if r.AwardedAt != nil {
		t := *r.AwardedAt
		c.AwardedAt = &t
	}
	return &c
}
