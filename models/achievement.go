package models

// AchievementKind tells how an achievement gets unlocked.
type AchievementKind string

const (
	// AchievementDerived is unlocked by a threshold predicate over progress fields.
	AchievementDerived AchievementKind = "derived"
	// AchievementManual is only unlocked when stored on the record (rewards,
	// per-attempt telemetry the ledger does not model).
	AchievementManual AchievementKind = "manual"
	// AchievementMeta is computed from the other achievements.
	AchievementMeta AchievementKind = "meta"
)

// Threshold keys understood by the evaluator.
const (
	ThresholdCasesCompleted      = "cases_completed"
	ThresholdEvidence            = "evidence"
	ThresholdTotalPoints         = "total_points"
	ThresholdLevel               = "level"
	ThresholdLongestLoginStreak  = "longest_login_streak"
	ThresholdSuccessfulReferrals = "successful_referrals"
	ThresholdHints               = "hints"
)

// Achievement codes referenced from code.
const (
	AchievementStreakMaster = "streak_master"
	AchievementLegend       = "legend"
)

// AchievementDefinition is static badge config.
type AchievementDefinition struct {
	Code        string           `json:"code"` // e.g., "first_case", "legend"
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Rarity      string           `json:"rarity"` // common, rare, epic, legendary
	Kind        AchievementKind  `json:"kind"`
	Threshold   map[string]int64 `json:"threshold,omitempty"` // e.g., {"cases_completed": 5}
}

// AchievementCatalog is the badge set shown on the profile, in display order.
var AchievementCatalog = []AchievementDefinition{
	{
		Code:        "first_case",
		Name:        "First Case Closed",
		Description: "Completed your first case",
		Rarity:      "common",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdCasesCompleted: 1},
	},
	{
		Code:        "caseworker",
		Name:        "Caseworker",
		Description: "Completed 5 cases",
		Rarity:      "common",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdCasesCompleted: 5},
	},
	{
		Code:        "senior_detective",
		Name:        "Senior Detective",
		Description: "Completed 10 cases",
		Rarity:      "rare",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdCasesCompleted: 10},
	},
	{
		Code:        "evidence_collector",
		Name:        "Evidence Collector",
		Description: "Collected 10 pieces of evidence",
		Rarity:      "rare",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdEvidence: 10},
	},
	{
		Code:        "rising_star",
		Name:        "Rising Star",
		Description: "Earned 1000 points",
		Rarity:      "common",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdTotalPoints: 1000},
	},
	{
		Code:        "level_5",
		Name:        "Inspector",
		Description: "Reached level 5",
		Rarity:      "epic",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdLevel: 5},
	},
	{
		Code:        "streak_3",
		Name:        "Regular",
		Description: "Reached a 3 day login streak",
		Rarity:      "common",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdLongestLoginStreak: 3},
	},
	{
		Code:        "streak_7",
		Name:        "Dedicated",
		Description: "Reached a 7 day login streak",
		Rarity:      "rare",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdLongestLoginStreak: 7},
	},
	{
		Code:        "recruiter",
		Name:        "Recruiter",
		Description: "Referred a friend",
		Rarity:      "common",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdSuccessfulReferrals: 1},
	},
	{
		Code:        "network_builder",
		Name:        "Network Builder",
		Description: "Referred 5 friends",
		Rarity:      "epic",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdSuccessfulReferrals: 5},
	},
	{
		Code:        "hint_hoarder",
		Name:        "Hint Hoarder",
		Description: "Holding 10 hints at once",
		Rarity:      "rare",
		Kind:        AchievementDerived,
		Threshold:   map[string]int64{ThresholdHints: 10},
	},
	{
		Code:        AchievementStreakMaster,
		Name:        "Streak Master",
		Description: "Claimed the day 30 login reward",
		Rarity:      "legendary",
		Kind:        AchievementManual,
	},
	{
		Code:        "no_hints",
		Name:        "Sharp Mind",
		Description: "Finished a case without using hints",
		Rarity:      "rare",
		Kind:        AchievementManual,
	},
	{
		Code:        "speed_demon",
		Name:        "Speed Demon",
		Description: "Finished a case in under 5 minutes",
		Rarity:      "epic",
		Kind:        AchievementManual,
	},
	{
		Code:        AchievementLegend,
		Name:        "Legend",
		Description: "Unlocked nearly every other achievement",
		Rarity:      "legendary",
		Kind:        AchievementMeta,
	},
}
