package models

// DailyReward is the grant for one day of the login streak.
type DailyReward struct {
	Day         int    `json:"day"`
	Points      int64  `json:"points,omitempty"`
	Hints       int    `json:"hints,omitempty"`
	Achievement string `json:"achievement,omitempty"` // one-time, stored on the record
	Label       string `json:"label"`
}

// DailyRewards is indexed by streak day - 1.
var DailyRewards = [MaxLoginStreak]DailyReward{
	{Day: 1, Points: 10, Label: "10 points"},
	{Day: 2, Points: 15, Label: "15 points"},
	{Day: 3, Hints: 1, Label: "1 hint"},
	{Day: 4, Points: 20, Label: "20 points"},
	{Day: 5, Points: 25, Label: "25 points"},
	{Day: 6, Hints: 1, Label: "1 hint"},
	{Day: 7, Points: 50, Hints: 1, Label: "Weekly bonus: 50 points + 1 hint"},
	{Day: 8, Points: 20, Label: "20 points"},
	{Day: 9, Points: 25, Label: "25 points"},
	{Day: 10, Hints: 2, Label: "2 hints"},
	{Day: 11, Points: 30, Label: "30 points"},
	{Day: 12, Points: 35, Label: "35 points"},
	{Day: 13, Hints: 1, Label: "1 hint"},
	{Day: 14, Points: 100, Hints: 1, Label: "Two weeks: 100 points + 1 hint"},
	{Day: 15, Points: 35, Label: "35 points"},
	{Day: 16, Points: 40, Label: "40 points"},
	{Day: 17, Hints: 2, Label: "2 hints"},
	{Day: 18, Points: 45, Label: "45 points"},
	{Day: 19, Points: 50, Label: "50 points"},
	{Day: 20, Hints: 2, Label: "2 hints"},
	{Day: 21, Points: 150, Hints: 2, Label: "Three weeks: 150 points + 2 hints"},
	{Day: 22, Points: 50, Label: "50 points"},
	{Day: 23, Points: 55, Label: "55 points"},
	{Day: 24, Hints: 2, Label: "2 hints"},
	{Day: 25, Points: 60, Label: "60 points"},
	{Day: 26, Points: 65, Label: "65 points"},
	{Day: 27, Hints: 3, Label: "3 hints"},
	{Day: 28, Points: 75, Label: "75 points"},
	{Day: 29, Points: 100, Label: "100 points"},
	{Day: 30, Points: 300, Hints: 3, Achievement: AchievementStreakMaster, Label: "Streak Master: 300 points + 3 hints"},
}

// DailyRewardFor returns the reward for the given streak day (clamped to 1..30).
func DailyRewardFor(day int) DailyReward {
	if day < 1 {
		day = 1
	}
	if day > MaxLoginStreak {
		day = MaxLoginStreak
	}
	return DailyRewards[day-1]
}
