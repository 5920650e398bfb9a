package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"strideSyncAPI/internal/types/activity"
	"strideSyncAPI/internal/types/dailyfact"
	"strideSyncAPI/internal/types/profile"
	"strideSyncAPI/utils"
)

// Milestone thresholds for streak celebration pushes, and the tiers that earn
// a durable badge when a long streak finally breaks.
var (
	streakMilestones = []int{7, 14, 30, 60, 90, 100, 180, 365}
	badgeTiers       = []int{30, 60, 90, 180, 365}
)

var (
	ErrRepairOutOfWindow  = errors.New("repair date must be within the last 7 days, excluding today")
	ErrDayAlreadyCounts   = errors.New("day already counts toward the streak")
	ErrNoShieldsAvailable = errors.New("no shields available")
)

// Notifier delivers best-effort user-facing pushes for engine events. The
// engine never fails an operation because a notification could not be sent.
type Notifier interface {
	StreakMilestone(ctx context.Context, days int) error
	WeeklyReward(ctx context.Context, weeks int) error
	StreakBroken(ctx context.Context, days int) error
	ShieldDeployed(ctx context.Context, date string) error
}

// StreakService derives and mutates the streak and shield aggregates from the
// daily fact log. All derived state is recomputable: RecalculateStreak is the
// canonical source of truth and may be called at any time to repair drift.
type StreakService struct {
	store    AggregateStore
	notifier Notifier
	now      func() time.Time
}

func NewStreakService(store AggregateStore, notifier Notifier) *StreakService {
	return &StreakService{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *StreakService) today() string {
	return utils.DayKey(s.now())
}

// RecalculateStreak walks the fact log backward from today (or yesterday, if
// today does not yet count) while goal-met-or-shield-used holds, and rewrites
// the cached aggregate from that derivation. Running it twice in a row is a
// no-op the second time.
func (s *StreakService) RecalculateStreak(ctx context.Context) error {
	facts, err := s.store.LoadAllDailyFacts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load fact log: %w", err)
	}
	byDate := make(map[string]*dailyfact.DailyFact, len(facts))
	for _, f := range facts {
		byDate[f.Date] = f
	}

	day := s.today()
	if !byDate[day].Counts() {
		day = utils.AddDays(day, -1)
	}

	count := 0
	start := ""
	last := ""
	for byDate[day].Counts() {
		if last == "" {
			last = day
		}
		start = day
		count++
		day = utils.AddDays(day, -1)
	}

	st, err := s.store.LoadStreak(ctx)
	if err != nil {
		return fmt.Errorf("failed to load streak: %w", err)
	}

	changed := false
	if st.CurrentStreak != count {
		st.CurrentStreak = count
		changed = true
	}
	if count > 0 {
		if st.StreakStartDate == nil || *st.StreakStartDate != start {
			st.StreakStartDate = &start
			changed = true
		}
		if st.LastGoalMet() != last {
			st.LastGoalMetDate = &last
			changed = true
		}
	} else if st.StreakStartDate != nil {
		st.StreakStartDate = nil
		changed = true
	}
	if count > st.LongestStreak {
		st.LongestStreak = count
		changed = true
	}

	if !changed {
		return nil
	}
	st.UpdatedAt = s.now()
	if err := s.store.SaveStreak(ctx, st); err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}
	return nil
}

// RecordGoalMet marks the given day's goal as met and advances the streak.
// Idempotent per date: a day whose goal is already recorded is a no-op, even
// when it is not the latest goal day.
func (s *StreakService) RecordGoalMet(ctx context.Context, date string) error {
	fact, err := s.store.LoadDailyFact(ctx, date)
	if err != nil {
		return err
	}
	if fact != nil && fact.GoalMet {
		return nil
	}
	if fact == nil {
		fact = &dailyfact.DailyFact{Date: date}
	}
	fact.GoalMet = true
	fact.UpdatedAt = s.now()
	if err := s.store.SaveDailyFact(ctx, fact); err != nil {
		return fmt.Errorf("failed to save daily fact: %w", err)
	}

	st, err := s.store.LoadStreak(ctx)
	if err != nil {
		return fmt.Errorf("failed to load streak: %w", err)
	}

	yesterday := utils.AddDays(date, -1)
	if st.LastGoalMet() == yesterday && st.CurrentStreak > 0 {
		st.CurrentStreak++
		if st.StreakStartDate == nil {
			start := yesterday
			st.StreakStartDate = &start
		}
	} else {
		// Out-of-order or first-ever goal day: rederive from the log, which
		// now includes the fact saved above.
		if err := s.RecalculateStreak(ctx); err != nil {
			return err
		}
		st, err = s.store.LoadStreak(ctx)
		if err != nil {
			return fmt.Errorf("failed to reload streak: %w", err)
		}
	}

	// A backfilled older day never moves the last-goal-met marker backward.
	if date > st.LastGoalMet() {
		d := date
		st.LastGoalMetDate = &d
	}
	st.ConsecutiveGoalDays++
	if st.CurrentStreak > st.LongestStreak {
		st.LongestStreak = st.CurrentStreak
	}
	st.UpdatedAt = s.now()
	if err := s.store.SaveStreak(ctx, st); err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}

	s.fireMilestones(ctx, st.CurrentStreak, st.ConsecutiveGoalDays)
	return nil
}

func (s *StreakService) fireMilestones(ctx context.Context, current, consecutive int) {
	if s.notifier == nil {
		return
	}
	for _, m := range streakMilestones {
		if current == m {
			if err := s.notifier.StreakMilestone(ctx, m); err != nil {
				log.Printf("Streak: failed to send milestone notification: %v", err)
			}
			break
		}
	}
	if consecutive > 0 && consecutive%7 == 0 {
		if err := s.notifier.WeeklyReward(ctx, consecutive/7); err != nil {
			log.Printf("Streak: failed to send weekly reward notification: %v", err)
		}
	}
}

// BreakStreak resets the streak aggregate. A streak of 30 days or more earns
// a durable badge for the highest tier reached; badges are never duplicated.
func (s *StreakService) BreakStreak(ctx context.Context) error {
	st, err := s.store.LoadStreak(ctx)
	if err != nil {
		return fmt.Errorf("failed to load streak: %w", err)
	}
	return s.breakStreak(ctx, st.CurrentStreak)
}

// breakStreak resets the aggregate crediting a streak of broken days. The
// caller supplies the length because the cached CurrentStreak may already have
// been rewritten by a mid-walk recalculation (CheckAndDeployForMissedDays)
// before the break is decided.
func (s *StreakService) breakStreak(ctx context.Context, broken int) error {
	st, err := s.store.LoadStreak(ctx)
	if err != nil {
		return fmt.Errorf("failed to load streak: %w", err)
	}
	if broken == 0 && st.CurrentStreak == 0 && st.LastGoalMetDate == nil && st.ConsecutiveGoalDays == 0 {
		return nil
	}

	if broken >= badgeTiers[0] {
		if err := s.awardBreakBadge(ctx, broken); err != nil {
			log.Printf("Streak: failed to award break badge: %v", err)
		}
	}

	st.CurrentStreak = 0
	st.StreakStartDate = nil
	st.LastGoalMetDate = nil
	st.ConsecutiveGoalDays = 0
	st.UpdatedAt = s.now()
	if err := s.store.SaveStreak(ctx, st); err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}

	if s.notifier != nil && broken > 0 {
		if err := s.notifier.StreakBroken(ctx, broken); err != nil {
			log.Printf("Streak: failed to send streak broken notification: %v", err)
		}
	}
	return nil
}

func (s *StreakService) awardBreakBadge(ctx context.Context, days int) error {
	tier := 0
	for _, t := range badgeTiers {
		if days >= t {
			tier = t
		}
	}
	if tier == 0 {
		return nil
	}

	p, err := s.store.LoadProfile(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		return nil
	}
	id := fmt.Sprintf("streak_%d", tier)
	if p.HasBadge(id) {
		return nil
	}
	p.Badges = append(p.Badges, profile.Badge{ID: id, EarnedAt: s.now()})
	p.UpdatedAt = s.now()
	return s.store.SaveProfile(ctx, p)
}

// AutoDeployIfAvailable consumes one shield to cover the given missed day.
// A shielded day keeps the streak alive but is not a full goal day, so the
// 7-day reward counter resets. Returns whether a shield was actually used.
func (s *StreakService) AutoDeployIfAvailable(ctx context.Context, date string) (bool, error) {
	sh, err := s.store.LoadShield(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load shield: %w", err)
	}
	if sh.Available < 1 {
		return false, nil
	}

	sh.Available--
	sh.UsedThisPeriod++
	sh.UsedLifetime++
	sh.UpdatedAt = s.now()
	if err := s.store.SaveShield(ctx, sh); err != nil {
		return false, fmt.Errorf("failed to save shield: %w", err)
	}

	fact, err := s.store.LoadDailyFact(ctx, date)
	if err != nil {
		return false, err
	}
	if fact == nil {
		fact = &dailyfact.DailyFact{Date: date}
	}
	if !fact.ShieldUsed {
		fact.ShieldUsed = true
		fact.UpdatedAt = s.now()
		if err := s.store.SaveDailyFact(ctx, fact); err != nil {
			return false, fmt.Errorf("failed to save daily fact: %w", err)
		}
	}

	st, err := s.store.LoadStreak(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load streak: %w", err)
	}
	if date > st.LastGoalMet() {
		d := date
		st.LastGoalMetDate = &d
	}
	st.ConsecutiveGoalDays = 0
	st.UpdatedAt = s.now()
	if err := s.store.SaveStreak(ctx, st); err != nil {
		return false, fmt.Errorf("failed to save streak: %w", err)
	}
	if err := s.RecalculateStreak(ctx); err != nil {
		return false, err
	}

	if s.notifier != nil {
		if err := s.notifier.ShieldDeployed(ctx, date); err != nil {
			log.Printf("Streak: failed to send shield notification: %v", err)
		}
	}
	return true, nil
}

// CheckAndDeployForMissedDays walks every day strictly between the last
// goal-met date and today. Days already covered by a late-arriving correction
// are skipped; each remaining gap consumes a shield, and the first gap with
// no shield left breaks the streak and stops the walk. Returns the number of
// shields deployed and whether the streak broke.
func (s *StreakService) CheckAndDeployForMissedDays(ctx context.Context) (int, bool, error) {
	st, err := s.store.LoadStreak(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load streak: %w", err)
	}
	last := st.LastGoalMet()
	if last == "" {
		return 0, false, nil
	}

	// The walk mutates the aggregate day by day, so the streak that would
	// break is pinned here: its length at entry plus each day a shield kept
	// alive since.
	atRisk := st.CurrentStreak

	deployed := 0
	today := s.today()
	for d := utils.AddDays(last, 1); d < today; d = utils.AddDays(d, 1) {
		fact, err := s.store.LoadDailyFact(ctx, d)
		if err != nil {
			return deployed, false, err
		}
		if fact.Counts() {
			continue
		}
		used, err := s.AutoDeployIfAvailable(ctx, d)
		if err != nil {
			return deployed, false, err
		}
		if !used {
			if err := s.breakStreak(ctx, atRisk+deployed); err != nil {
				return deployed, false, err
			}
			return deployed, true, nil
		}
		deployed++
	}
	return deployed, false, nil
}

// RepairDate retroactively covers a missed day with a shield. Only legal for
// a date within the last 7 days (excluding today) that does not already
// count, and only once per date.
func (s *StreakService) RepairDate(ctx context.Context, date string) error {
	back := utils.DaysBetween(date, s.today())
	if back < 1 || back > 6 {
		return ErrRepairOutOfWindow
	}

	fact, err := s.store.LoadDailyFact(ctx, date)
	if err != nil {
		return err
	}
	if fact.Counts() {
		return ErrDayAlreadyCounts
	}

	sh, err := s.store.LoadShield(ctx)
	if err != nil {
		return fmt.Errorf("failed to load shield: %w", err)
	}
	if sh.Available < 1 {
		return ErrNoShieldsAvailable
	}
	sh.Available--
	sh.UsedThisPeriod++
	sh.UsedLifetime++
	sh.UpdatedAt = s.now()
	if err := s.store.SaveShield(ctx, sh); err != nil {
		return fmt.Errorf("failed to save shield: %w", err)
	}

	if fact == nil {
		fact = &dailyfact.DailyFact{Date: date}
	}
	fact.GoalMet = true
	fact.ShieldUsed = true
	fact.UpdatedAt = s.now()
	if err := s.store.SaveDailyFact(ctx, fact); err != nil {
		return fmt.Errorf("failed to save daily fact: %w", err)
	}

	return s.RecalculateStreak(ctx)
}

// ApplyMonthlyRefill tops Available up to the tier's monthly allocation on a
// month boundary. It never lowers Available and never exceeds the cap, and
// resets the per-period usage counter.
func (s *StreakService) ApplyMonthlyRefill(ctx context.Context) error {
	sh, err := s.store.LoadShield(ctx)
	if err != nil {
		return fmt.Errorf("failed to load shield: %w", err)
	}
	today := s.today()
	if sh.LastRefillDate != nil && utils.SameMonth(*sh.LastRefillDate, today) {
		return nil
	}

	target := sh.Tier.MonthlyAllocation()
	if target > sh.Tier.Cap() {
		target = sh.Tier.Cap()
	}
	if sh.Available < target {
		sh.Available = target
	}
	sh.UsedThisPeriod = 0
	sh.LastRefillDate = &today
	sh.Initialized = true
	sh.UpdatedAt = s.now()
	if err := s.store.SaveShield(ctx, sh); err != nil {
		return fmt.Errorf("failed to save shield: %w", err)
	}
	return nil
}

// RecordSteps applies a new step total for a day, freezing the goal target on
// first write and flipping goal-met when the frozen target is reached. Step
// totals only rise; a lower reading from a lagging source is ignored. A day
// with no frozen target never auto-completes (the target is unknown, not
// guessed).
func (s *StreakService) RecordSteps(ctx context.Context, date string, steps int) error {
	if steps < 0 {
		return fmt.Errorf("step count must not be negative")
	}

	fact, err := s.store.LoadDailyFact(ctx, date)
	if err != nil {
		return err
	}
	if fact == nil {
		fact = &dailyfact.DailyFact{Date: date}
		if p, err := s.store.LoadProfile(ctx); err == nil && p != nil && p.DailyStepTarget > 0 {
			target := p.DailyStepTarget
			fact.GoalTarget = &target
		}
	}

	if steps > fact.StepCount {
		fact.StepCount = steps
		fact.UpdatedAt = s.now()
		if err := s.store.SaveDailyFact(ctx, fact); err != nil {
			return fmt.Errorf("failed to save daily fact: %w", err)
		}
	}

	if !fact.GoalMet && fact.GoalTarget != nil && fact.StepCount >= *fact.GoalTarget {
		return s.RecordGoalMet(ctx, date)
	}
	return nil
}

// LogActivity stores an immutable tracked activity and references it from the
// day's fact.
func (s *StreakService) LogActivity(ctx context.Context, a *activity.Activity) error {
	if a.ID == "" {
		return fmt.Errorf("activity id is required")
	}
	if err := s.store.SaveActivity(ctx, a); err != nil {
		return err
	}

	date := utils.DayKey(a.StartTime)
	fact, err := s.store.LoadDailyFact(ctx, date)
	if err != nil {
		return err
	}
	if fact == nil {
		fact = &dailyfact.DailyFact{Date: date}
	}
	if !fact.HasActivity(a.ID) {
		fact.ActivityIDs = append(fact.ActivityIDs, a.ID)
		fact.UpdatedAt = s.now()
		if err := s.store.SaveDailyFact(ctx, fact); err != nil {
			return fmt.Errorf("failed to save daily fact: %w", err)
		}
	}
	return nil
}
