package services

import (
	"testing"
	"time"

	"strideSyncAPI/internal/types/activity"
	"strideSyncAPI/internal/types/appsettings"
	"strideSyncAPI/internal/types/caloriegoal"
	"strideSyncAPI/internal/types/dailyfact"
	"strideSyncAPI/internal/types/foodlog"
	"strideSyncAPI/internal/types/profile"
	"strideSyncAPI/internal/types/shield"
	"strideSyncAPI/internal/types/streak"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestMergeDailyFactTakesMaxAndNeverDowngrades(t *testing.T) {
	local := &dailyfact.DailyFact{Date: "2025-06-10", StepCount: 3000, GoalMet: false}
	remote := &dailyfact.DailyFact{Date: "2025-06-10", StepCount: 8000, GoalMet: true}

	merged, changed := MergeDailyFact(local, remote)
	if !changed {
		t.Fatal("expected merge to report a change")
	}
	if merged.StepCount != 8000 || !merged.GoalMet {
		t.Fatalf("got steps=%d goalMet=%v, want 8000/true", merged.StepCount, merged.GoalMet)
	}

	// Applying the same remote snapshot again must be a no-op.
	again, changed := MergeDailyFact(merged, remote)
	if changed {
		t.Fatalf("second merge reported a change: %+v", again)
	}

	// The higher local count survives a stale remote.
	stale := &dailyfact.DailyFact{Date: "2025-06-10", StepCount: 100}
	merged2, changed := MergeDailyFact(merged, stale)
	if changed || merged2.StepCount != 8000 {
		t.Fatalf("stale remote downgraded steps to %d", merged2.StepCount)
	}
}

func TestMergeDailyFactUnionsActivityIDsAndFreezesTarget(t *testing.T) {
	local := &dailyfact.DailyFact{Date: "2025-06-10", GoalTarget: intPtr(8000), ActivityIDs: []string{"a"}}
	remote := &dailyfact.DailyFact{Date: "2025-06-10", GoalTarget: intPtr(10000), ActivityIDs: []string{"b", "a"}}

	merged, changed := MergeDailyFact(local, remote)
	if !changed {
		t.Fatal("expected merge to report a change")
	}
	if *merged.GoalTarget != 8000 {
		t.Fatalf("frozen goal target overwritten: got %d", *merged.GoalTarget)
	}
	if len(merged.ActivityIDs) != 2 {
		t.Fatalf("activity union has %d ids, want 2", len(merged.ActivityIDs))
	}
}

func TestMergeDailyFactAdoptsRemoteWhenLocalMissing(t *testing.T) {
	remote := &dailyfact.DailyFact{Date: "2025-06-10", StepCount: 5000, ShieldUsed: true}
	merged, changed := MergeDailyFact(nil, remote)
	if !changed || merged.StepCount != 5000 || !merged.ShieldUsed {
		t.Fatalf("remote not adopted: %+v", merged)
	}
}

func TestMergeStreakNewerLastGoalMetWins(t *testing.T) {
	local := &streak.Streak{
		CurrentStreak:   3,
		LongestStreak:   10,
		LastGoalMetDate: strPtr("2025-06-08"),
		StreakStartDate: strPtr("2025-06-06"),
	}
	remote := &streak.Streak{
		CurrentStreak:   5,
		LongestStreak:   7,
		LastGoalMetDate: strPtr("2025-06-10"),
		StreakStartDate: strPtr("2025-06-06"),
	}

	merged, changed := MergeStreak(local, remote)
	if !changed {
		t.Fatal("expected merge to report a change")
	}
	if merged.CurrentStreak != 5 || merged.LastGoalMet() != "2025-06-10" {
		t.Fatalf("remote positional fields not adopted: %+v", merged)
	}
	if merged.LongestStreak != 10 {
		t.Fatalf("longest streak regressed to %d", merged.LongestStreak)
	}

	if _, changed := MergeStreak(merged, remote); changed {
		t.Fatal("second merge was not a no-op")
	}
}

func TestMergeShieldAvailableTakesMin(t *testing.T) {
	local := &shield.Shield{Available: 2, UsedLifetime: 1, Initialized: true, Tier: shield.TierFree}
	remote := &shield.Shield{Available: 0, UsedLifetime: 3, Initialized: true, Tier: shield.TierFree}

	merged, changed := MergeShield(local, remote)
	if !changed {
		t.Fatal("expected merge to report a change")
	}
	if merged.Available != 0 {
		t.Fatalf("available=%d, want 0: a shield spent elsewhere must not reappear", merged.Available)
	}
	if merged.UsedLifetime != 3 {
		t.Fatalf("used lifetime=%d, want 3", merged.UsedLifetime)
	}

	if _, changed := MergeShield(merged, remote); changed {
		t.Fatal("second merge was not a no-op")
	}
}

func TestMergeShieldFreshInstallAdoptsRemote(t *testing.T) {
	local := &shield.Shield{Tier: shield.TierFree}
	remote := &shield.Shield{Available: 3, PurchasedLifetime: 5, Initialized: true, Tier: shield.TierPro}

	merged, changed := MergeShield(local, remote)
	if !changed || merged.Available != 3 || merged.Tier != shield.TierPro {
		t.Fatalf("fresh install did not adopt remote: %+v", merged)
	}
}

func TestMergeProfileUnionsBadgesAndKeepsEarlierCreation(t *testing.T) {
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	local := &profile.Profile{
		DisplayName: "Mira",
		CreatedAt:   late,
		Badges:      []profile.Badge{{ID: "streak_30"}},
	}
	remote := &profile.Profile{
		DisplayName:         "Mira on tablet",
		CreatedAt:           early,
		Badges:              []profile.Badge{{ID: "streak_30"}, {ID: "streak_60"}},
		OnboardingCompleted: true,
	}

	merged, changed := MergeProfile(local, remote)
	if !changed {
		t.Fatal("expected merge to report a change")
	}
	if merged.DisplayName != "Mira" {
		t.Fatalf("local display name overwritten: %q", merged.DisplayName)
	}
	if !merged.CreatedAt.Equal(early) {
		t.Fatalf("creation time not the earlier one: %v", merged.CreatedAt)
	}
	if len(merged.Badges) != 2 || !merged.OnboardingCompleted {
		t.Fatalf("badges/flags not merged: %+v", merged)
	}

	if _, changed := MergeProfile(merged, remote); changed {
		t.Fatal("second merge was not a no-op")
	}
}

func TestMergeProfileFreshAdoptsRemote(t *testing.T) {
	remote := &profile.Profile{DisplayName: "Mira", OnboardingCompleted: true}
	merged, changed := MergeProfile(nil, remote)
	if !changed || merged.DisplayName != "Mira" {
		t.Fatalf("fresh profile did not adopt remote: %+v", merged)
	}
}

func TestMergeActivityKeepsFirst(t *testing.T) {
	local := &activity.Activity{ID: "a1", Steps: 1000}
	remote := &activity.Activity{ID: "a1", Steps: 9999}

	merged, changed := MergeActivity(local, remote)
	if changed || merged.Steps != 1000 {
		t.Fatalf("existing activity was replaced: %+v", merged)
	}

	merged, changed = MergeActivity(nil, remote)
	if !changed || merged.Steps != 9999 {
		t.Fatalf("absent activity not inserted: %+v", merged)
	}
}

func TestMergeFoodLogLastWriteWins(t *testing.T) {
	older := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	local := &foodlog.Entry{ID: "f1", Name: "oats", ModifiedAt: older}
	remote := &foodlog.Entry{ID: "f1", Name: "oats with berries", ModifiedAt: newer}

	merged, changed := MergeFoodLog(local, remote)
	if !changed || merged.Name != "oats with berries" {
		t.Fatalf("newer remote did not win: %+v", merged)
	}

	merged, changed = MergeFoodLog(remote, local)
	if changed || merged.Name != "oats with berries" {
		t.Fatalf("older remote overwrote newer local: %+v", merged)
	}
}

func TestMergeCalorieGoalLastWriteWins(t *testing.T) {
	older := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	local := &caloriegoal.Settings{DailyCalorieTarget: 2000, ModifiedAt: older}
	remote := &caloriegoal.Settings{DailyCalorieTarget: 2200, ModifiedAt: older.Add(time.Hour)}

	merged, changed := MergeCalorieGoal(local, remote)
	if !changed || merged.DailyCalorieTarget != 2200 {
		t.Fatalf("newer remote did not win: %+v", merged)
	}
}

func TestMergeSettingsUsageCounterFollowsNewerPeriod(t *testing.T) {
	local := &appsettings.Settings{
		NotificationsEnabled: false,
		UsagePeriodStart:     "2025-06-01",
		UsageCount:           4,
		Initialized:          true,
	}
	remote := &appsettings.Settings{
		NotificationsEnabled: true,
		UsagePeriodStart:     "2025-06-08",
		UsageCount:           1,
		Initialized:          true,
	}

	merged, changed := MergeSettings(local, remote)
	if !changed {
		t.Fatal("expected merge to report a change")
	}
	if merged.UsagePeriodStart != "2025-06-08" || merged.UsageCount != 1 {
		t.Fatalf("usage counter did not follow newer period: %+v", merged)
	}
	if merged.NotificationsEnabled {
		t.Fatal("device preference adopted from remote on a non-fresh install")
	}

	// Same period: the count only rises.
	samePeriod := &appsettings.Settings{UsagePeriodStart: "2025-06-08", UsageCount: 7, Initialized: true}
	merged2, changed := MergeSettings(merged, samePeriod)
	if !changed || merged2.UsageCount != 7 {
		t.Fatalf("same-period count not maxed: %+v", merged2)
	}
	if _, changed := MergeSettings(merged2, samePeriod); changed {
		t.Fatal("second merge was not a no-op")
	}
}
