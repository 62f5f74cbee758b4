package services

import (
	"casefile-progress/models"
)

// DefaultLegendExemptionCount is how many other achievements a user may be
// missing and still unlock the meta achievement.
const DefaultLegendExemptionCount = 2

// Evaluator derives unlocked achievements from a progress snapshot. It never
// mutates the record.
type Evaluator struct {
	Catalog        []models.AchievementDefinition
	ExemptionCount int
}

func NewEvaluator(exemptionCount int) *Evaluator {
	return &Evaluator{
		Catalog:        models.AchievementCatalog,
		ExemptionCount: max(exemptionCount, 0),
	}
}

var defaultEvaluator = NewEvaluator(DefaultLegendExemptionCount)

// DeriveAchievements runs the default evaluator.
func DeriveAchievements(p *models.UserProgress) []string {
	return defaultEvaluator.Derive(p)
}

// Derive returns stored ∪ derived achievement codes. Catalog codes come first
// in catalog order, followed by stored codes the catalog does not know.
func (e *Evaluator) Derive(p *models.UserProgress) []string {
	if p == nil {
		return []string{}
	}
	unlocked := e.unlocked(p)

	codes := make([]string, 0, len(unlocked)+len(p.Achievements))
	known := make(map[string]struct{}, len(e.Catalog))
	for _, def := range e.Catalog {
		known[def.Code] = struct{}{}
		if unlocked[def.Code] {
			codes = append(codes, def.Code)
		}
	}
	for _, code := range p.Achievements {
		if _, ok := known[code]; ok {
			continue
		}
		known[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// AchievementStatus is one catalog entry with its state for a user.
type AchievementStatus struct {
	models.AchievementDefinition
	Unlocked bool `json:"unlocked"`
}

// Describe lists the whole catalog with unlock state, for profile pages.
func (e *Evaluator) Describe(p *models.UserProgress) []AchievementStatus {
	var unlocked map[string]bool
	if p != nil {
		unlocked = e.unlocked(p)
	}
	out := make([]AchievementStatus, 0, len(e.Catalog))
	for _, def := range e.Catalog {
		out = append(out, AchievementStatus{AchievementDefinition: def, Unlocked: unlocked[def.Code]})
	}
	return out
}

func (e *Evaluator) unlocked(p *models.UserProgress) map[string]bool {
	unlocked := make(map[string]bool, len(e.Catalog))
	for _, def := range e.Catalog {
		switch def.Kind {
		case models.AchievementDerived:
			unlocked[def.Code] = p.HasAchievement(def.Code) || meetsThreshold(p, def.Threshold)
		default:
			unlocked[def.Code] = p.HasAchievement(def.Code)
		}
	}

	// meta achievements look at everything else, after the first pass
	for _, def := range e.Catalog {
		if def.Kind != models.AchievementMeta || unlocked[def.Code] {
			continue
		}
		others, have := 0, 0
		for _, other := range e.Catalog {
			if other.Code == def.Code {
				continue
			}
			others++
			if unlocked[other.Code] {
				have++
			}
		}
		required := max(others-e.ExemptionCount, 1)
		unlocked[def.Code] = have >= required
	}
	return unlocked
}

func meetsThreshold(p *models.UserProgress, req map[string]int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		switch key {
		case models.ThresholdCasesCompleted:
			if int64(len(p.CompletedCases)) < required {
				return false
			}
		case models.ThresholdEvidence:
			if int64(len(p.Evidence)) < required {
				return false
			}
		case models.ThresholdTotalPoints:
			if p.TotalPoints < required {
				return false
			}
		case models.ThresholdLevel:
			if int64(models.LevelFor(p.TotalPoints)) < required {
				return false
			}
		case models.ThresholdLongestLoginStreak:
			if int64(max(p.Statistics.LongestLoginStreak, p.LoginStreak)) < required {
				return false
			}
		case models.ThresholdSuccessfulReferrals:
			if int64(p.ReferralStats.SuccessfulReferrals) < required {
				return false
			}
		case models.ThresholdHints:
			if int64(p.Hints) < required {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// DescribeAchievements lists the catalog with unlock state for p.
func (s *ProgressionService) DescribeAchievements(p *models.UserProgress) []AchievementStatus {
	return s.evaluator().Describe(p)
}
