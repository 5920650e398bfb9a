package stats

import (
	"strideSyncAPI/internal/types/dailyfact"
	"strideSyncAPI/internal/types/profile"
	"strideSyncAPI/internal/types/shield"
	"strideSyncAPI/internal/types/streak"
	"strideSyncAPI/utils"
)

// Summary is the aggregate step history view served by the stats endpoint.
// A day counts as a goal day when the goal was met or a shield covered it.
type Summary struct {
	TodayGoalMet       bool `json:"today_goal_met"`
	GoalDaysThisWeek   int  `json:"goal_days_this_week"`
	GoalDaysThisMonth  int  `json:"goal_days_this_month"`
	GoalDaysThisYear   int  `json:"goal_days_this_year"`
	TotalGoalDays      int  `json:"total_goal_days"`
	TotalSteps         int  `json:"total_steps"`
	CurrentStreak      int  `json:"current_streak"`
	LongestStreak      int  `json:"longest_streak"`
	ShieldsUsedAllTime int  `json:"shields_used_all_time"`
	BadgeCount         int  `json:"badge_count"`
}

// Compute derives the summary from the fact log and the cached aggregates.
// The week starts on Monday.
func Compute(facts []*dailyfact.DailyFact, st *streak.Streak, sh *shield.Shield, p *profile.Profile, today string) Summary {
	s := Summary{}
	if st != nil {
		s.CurrentStreak = st.CurrentStreak
		s.LongestStreak = st.LongestStreak
	}
	if sh != nil {
		s.ShieldsUsedAllTime = sh.UsedLifetime
	}
	if p != nil {
		s.BadgeCount = len(p.Badges)
	}

	weekStart := startOfWeek(today)
	monthStart := today[:8] + "01"
	yearStart := today[:5] + "01-01"

	for _, f := range facts {
		s.TotalSteps += f.StepCount
		if !f.Counts() {
			continue
		}
		s.TotalGoalDays++
		if f.Date == today {
			s.TodayGoalMet = true
		}
		if f.Date >= weekStart && f.Date <= today {
			s.GoalDaysThisWeek++
		}
		if f.Date >= monthStart && f.Date <= today {
			s.GoalDaysThisMonth++
		}
		if f.Date >= yearStart && f.Date <= today {
			s.GoalDaysThisYear++
		}
	}
	return s
}

func startOfWeek(today string) string {
	t, err := utils.ParseDayKey(today)
	if err != nil {
		return today
	}
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return utils.DayKey(t.AddDate(0, 0, -offset))
}
