package services

import (
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

// Merge policies: one pure function per record kind, each taking
// (local, remote) and returning (merged, changed). changed reports whether
// the merged result differs from the local copy, i.e. whether the caller
// needs to write anything back. Every policy is idempotent: merging the same
// remote snapshot a second time returns changed=false.

// MergeDailyFact reconciles one day's fact. Counts take the max, the one-way
// booleans never downgrade, and the frozen goal target is only adopted when
// the local fact has none.
func MergeDailyFact(local, remote *dailyfact.DailyFact) (*dailyfact.DailyFact, bool) {
	if remote == nil {
		return local, false
	}
	if local == nil {
		cp := *remote
		cp.ActivityIDs = append([]string(nil), remote.ActivityIDs...)
		return &cp, true
	}

	merged := *local
	merged.ActivityIDs = append([]string(nil), local.ActivityIDs...)

	changed := false
	if remote.StepCount > merged.StepCount {
		merged.StepCount = remote.StepCount
		changed = true
	}
	if remote.GoalMet && !merged.GoalMet {
		merged.GoalMet = true
		changed = true
	}
	if remote.ShieldUsed && !merged.ShieldUsed {
		merged.ShieldUsed = true
		changed = true
	}
	if merged.GoalTarget == nil && remote.GoalTarget != nil {
		v := *remote.GoalTarget
		merged.GoalTarget = &v
		changed = true
	}
	for _, id := range remote.ActivityIDs {
		if !merged.HasActivity(id) {
			merged.ActivityIDs = append(merged.ActivityIDs, id)
			changed = true
		}
	}
	if changed {
		merged.UpdatedAt = laterTime(local.UpdatedAt, remote.UpdatedAt)
	}
	return &merged, changed
}

// MergeStreak lets the side with the more recent last-goal-met date win the
// positional fields; the monotonic counters take the max of both sides.
func MergeStreak(local, remote *streak.Streak) (*streak.Streak, bool) {
	if remote == nil {
		return local, false
	}
	if local == nil {
		cp := *remote
		return &cp, true
	}

	merged := *local
	changed := false

	if remote.LastGoalMet() > local.LastGoalMet() {
		merged.CurrentStreak = remote.CurrentStreak
		merged.StreakStartDate = copyStrPtr(remote.StreakStartDate)
		merged.LastGoalMetDate = copyStrPtr(remote.LastGoalMetDate)
		changed = true
	}
	if remote.LongestStreak > merged.LongestStreak {
		merged.LongestStreak = remote.LongestStreak
		changed = true
	}
	if remote.ConsecutiveGoalDays > merged.ConsecutiveGoalDays {
		merged.ConsecutiveGoalDays = remote.ConsecutiveGoalDays
		changed = true
	}
	if changed {
		merged.UpdatedAt = laterTime(local.UpdatedAt, remote.UpdatedAt)
	}
	return &merged, changed
}

// MergeShield reconciles the shield economy. A fresh install adopts remote
// verbatim. Otherwise available takes the min of both sides so a shield
// consumed on another device cannot reappear here, and the lifetime counters
// take the max.
func MergeShield(local, remote *shield.Shield) (*shield.Shield, bool) {
	if remote == nil {
		return local, false
	}
	if local == nil || !local.Initialized {
		cp := *remote
		cp.LastRefillDate = copyStrPtr(remote.LastRefillDate)
		return &cp, true
	}

	merged := *local
	merged.LastRefillDate = copyStrPtr(local.LastRefillDate)
	changed := false

	if remote.Available < merged.Available {
		merged.Available = remote.Available
		changed = true
	}
	if remote.PurchasedLifetime > merged.PurchasedLifetime {
		merged.PurchasedLifetime = remote.PurchasedLifetime
		changed = true
	}
	if remote.UsedLifetime > merged.UsedLifetime {
		merged.UsedLifetime = remote.UsedLifetime
		changed = true
	}
	if remote.UsedThisPeriod > merged.UsedThisPeriod {
		merged.UsedThisPeriod = remote.UsedThisPeriod
		changed = true
	}
	if strPtrVal(remote.LastRefillDate) > strPtrVal(merged.LastRefillDate) {
		merged.LastRefillDate = copyStrPtr(remote.LastRefillDate)
		changed = true
	}
	if changed {
		merged.UpdatedAt = laterTime(local.UpdatedAt, remote.UpdatedAt)
	}
	return &merged, changed
}

// MergeProfile keeps the local profile authoritative unless it is a fresh
// default, in which case remote is adopted verbatim. Badges union by id and
// the has-completed flags only ever flip to true. The earlier creation
// timestamp wins so account age survives reinstalls.
func MergeProfile(local, remote *profile.Profile) (*profile.Profile, bool) {
	if remote == nil {
		return local, false
	}
	if local.IsFresh() {
		cp := *remote
		cp.Badges = append([]profile.Badge(nil), remote.Badges...)
		return &cp, true
	}

	merged := *local
	merged.Badges = append([]profile.Badge(nil), local.Badges...)
	changed := false

	if !remote.CreatedAt.IsZero() && remote.CreatedAt.Before(merged.CreatedAt) {
		merged.CreatedAt = remote.CreatedAt
		changed = true
	}
	for _, b := range remote.Badges {
		if !merged.HasBadge(b.ID) {
			merged.Badges = append(merged.Badges, b)
			changed = true
		}
	}
	if remote.OnboardingCompleted && !merged.OnboardingCompleted {
		merged.OnboardingCompleted = true
		changed = true
	}
	if remote.FirstGoalCelebrated && !merged.FirstGoalCelebrated {
		merged.FirstGoalCelebrated = true
		changed = true
	}
	if changed {
		merged.UpdatedAt = laterTime(local.UpdatedAt, remote.UpdatedAt)
	}
	return &merged, changed
}

// MergeActivity is insert-if-absent with keep-first: an activity that already
// exists locally is never replaced, even if the remote bytes differ.
func MergeActivity(local, remote *activity.Activity) (*activity.Activity, bool) {
	if local != nil {
		return local, false
	}
	if remote == nil {
		return nil, false
	}
	cp := *remote
	return &cp, true
}

// MergeFoodLog is last-write-wins on the modified timestamp.
func MergeFoodLog(local, remote *foodlog.Entry) (*foodlog.Entry, bool) {
	if remote == nil {
		return local, false
	}
	if local == nil || remote.ModifiedAt.After(local.ModifiedAt) {
		cp := *remote
		return &cp, true
	}
	return local, false
}

// MergeCalorieGoal is last-write-wins on the modified timestamp.
func MergeCalorieGoal(local, remote *caloriegoal.Settings) (*caloriegoal.Settings, bool) {
	if remote == nil {
		return local, false
	}
	if local == nil || remote.ModifiedAt.After(local.ModifiedAt) {
		cp := *remote
		return &cp, true
	}
	return local, false
}

// MergeSettings merges the user-settings snapshot. The usage counter follows
// the newer period (max count within the same period); the preference
// booleans are device-specific and are only adopted on a fresh install.
func MergeSettings(local, remote *appsettings.Settings) (*appsettings.Settings, bool) {
	if remote == nil {
		return local, false
	}
	if local == nil || !local.Initialized {
		cp := *remote
		return &cp, true
	}

	merged := *local
	changed := false

	switch {
	case remote.UsagePeriodStart > merged.UsagePeriodStart:
		merged.UsagePeriodStart = remote.UsagePeriodStart
		merged.UsageCount = remote.UsageCount
		changed = true
	case remote.UsagePeriodStart == merged.UsagePeriodStart && remote.UsageCount > merged.UsageCount:
		merged.UsageCount = remote.UsageCount
		changed = true
	}
	if changed {
		merged.ModifiedAt = laterTime(local.ModifiedAt, remote.ModifiedAt)
	}
	return &merged, changed
}

func laterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func copyStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func strPtrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
