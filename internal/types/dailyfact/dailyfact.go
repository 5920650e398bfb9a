package dailyfact

import (
	"time"
)

// DailyFact is one calendar day's activity total and goal status.
// Date is the "2006-01-02" day key in the user's local calendar; there is at
// most one fact per date. GoalMet and ShieldUsed are one-way: once true they
// only go back to false through an explicit repair path.
type DailyFact struct {
	Date        string    `json:"date" db:"date"`
	StepCount   int       `json:"step_count" db:"step_count"`
	GoalMet     bool      `json:"goal_met" db:"goal_met"`
	GoalTarget  *int      `json:"goal_target,omitempty" db:"goal_target"`
	ShieldUsed  bool      `json:"shield_used" db:"shield_used"`
	ActivityIDs []string  `json:"activity_ids" db:"activity_ids"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Counts reports whether this day keeps a streak alive.
func (f *DailyFact) Counts() bool {
	return f != nil && (f.GoalMet || f.ShieldUsed)
}

// HasActivity reports whether the given tracked-activity id is already
// referenced by this fact.
func (f *DailyFact) HasActivity(id string) bool {
	for _, a := range f.ActivityIDs {
		if a == id {
			return true
		}
	}
	return false
}
