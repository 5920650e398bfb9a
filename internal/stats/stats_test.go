package stats

import (
	"testing"

	"strideSyncAPI/internal/types/dailyfact"
	"strideSyncAPI/internal/types/profile"
	"strideSyncAPI/internal/types/shield"
	"strideSyncAPI/internal/types/streak"
)

func day(date string, steps int, goalMet, shieldUsed bool) *dailyfact.DailyFact {
	return &dailyfact.DailyFact{Date: date, StepCount: steps, GoalMet: goalMet, ShieldUsed: shieldUsed}
}

func TestComputeSummary(t *testing.T) {
	// 2025-06-15 is a Sunday, so the week runs 06-09 through 06-15.
	facts := []*dailyfact.DailyFact{
		day("2025-05-30", 9000, true, false),  // last month
		day("2025-06-08", 8500, true, false),  // last week
		day("2025-06-12", 7000, false, true),  // shielded day still counts
		day("2025-06-14", 8200, true, false),
		day("2025-06-15", 9100, true, false),
		day("2025-06-13", 2000, false, false), // missed day
	}
	st := &streak.Streak{CurrentStreak: 2, LongestStreak: 12}
	sh := &shield.Shield{UsedLifetime: 3}
	p := &profile.Profile{Badges: []profile.Badge{{ID: "streak_30"}}}

	s := Compute(facts, st, sh, p, "2025-06-15")

	if !s.TodayGoalMet {
		t.Fatal("today's goal not reported")
	}
	if s.GoalDaysThisWeek != 3 {
		t.Fatalf("goal days this week=%d, want 3", s.GoalDaysThisWeek)
	}
	if s.GoalDaysThisMonth != 4 {
		t.Fatalf("goal days this month=%d, want 4", s.GoalDaysThisMonth)
	}
	if s.GoalDaysThisYear != 5 || s.TotalGoalDays != 5 {
		t.Fatalf("year=%d total=%d, want 5/5", s.GoalDaysThisYear, s.TotalGoalDays)
	}
	if s.TotalSteps != 43800 {
		t.Fatalf("total steps=%d, want 43800", s.TotalSteps)
	}
	if s.CurrentStreak != 2 || s.LongestStreak != 12 || s.ShieldsUsedAllTime != 3 || s.BadgeCount != 1 {
		t.Fatalf("aggregate passthrough wrong: %+v", s)
	}
}

func TestComputeHandlesMissingAggregates(t *testing.T) {
	s := Compute(nil, nil, nil, nil, "2025-06-15")
	if s.TotalGoalDays != 0 || s.CurrentStreak != 0 || s.BadgeCount != 0 {
		t.Fatalf("empty inputs produced %+v", s)
	}
}
