package streak

import (
	"time"
)

// Streak is the per-user streak aggregate. It is a cache: CurrentStreak must
// always equal what a backward scan of the daily fact log derives, and the
// engine is the only writer. LongestStreak never decreases.
type Streak struct {
	CurrentStreak       int        `json:"current_streak" db:"current_streak"`
	LongestStreak       int        `json:"longest_streak" db:"longest_streak"`
	StreakStartDate     *string    `json:"streak_start_date,omitempty" db:"streak_start_date"`
	LastGoalMetDate     *string    `json:"last_goal_met_date,omitempty" db:"last_goal_met_date"`
	ConsecutiveGoalDays int        `json:"consecutive_goal_days" db:"consecutive_goal_days"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// LastGoalMet returns the last-goal-met day key, or "" if the user has never
// met a goal.
func (s *Streak) LastGoalMet() string {
	if s == nil || s.LastGoalMetDate == nil {
		return ""
	}
	return *s.LastGoalMetDate
}
