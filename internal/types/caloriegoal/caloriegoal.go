package caloriegoal

import (
	"time"
)

// Settings is the user's calorie goal configuration. Singleton per user,
// last-write-wins on ModifiedAt.
type Settings struct {
	DailyCalorieTarget int       `json:"daily_calorie_target" db:"daily_calorie_target"`
	ProteinPercent     int       `json:"protein_percent" db:"protein_percent"`
	CarbsPercent       int       `json:"carbs_percent" db:"carbs_percent"`
	FatPercent         int       `json:"fat_percent" db:"fat_percent"`
	ModifiedAt         time.Time `json:"modified_at" db:"modified_at"`
}
