package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"strideSyncAPI/internal/types/activity"
	"strideSyncAPI/internal/types/appsettings"
	"strideSyncAPI/internal/types/caloriegoal"
	"strideSyncAPI/internal/types/dailyfact"
	"strideSyncAPI/internal/types/foodlog"
	"strideSyncAPI/internal/types/profile"
	"strideSyncAPI/internal/types/record"
	"strideSyncAPI/internal/types/shield"
	"strideSyncAPI/internal/types/streak"
)

// ChangeHandler receives the record kind whose local copy just changed.
type ChangeHandler func(kind record.Kind)

// AggregateStore is the local persistence boundary used by the sync
// coordinator and the streak engine. Loads return nil when no record exists
// (except streak/shield, which return a zero aggregate so callers never
// nil-check the singletons). Every successful save emits a change signal to
// registered handlers.
type AggregateStore interface {
	LoadProfile(ctx context.Context) (*profile.Profile, error)
	SaveProfile(ctx context.Context, p *profile.Profile) error

	LoadDailyFact(ctx context.Context, date string) (*dailyfact.DailyFact, error)
	SaveDailyFact(ctx context.Context, f *dailyfact.DailyFact) error
	LoadAllDailyFacts(ctx context.Context) ([]*dailyfact.DailyFact, error)

	LoadStreak(ctx context.Context) (*streak.Streak, error)
	SaveStreak(ctx context.Context, s *streak.Streak) error

	LoadShield(ctx context.Context) (*shield.Shield, error)
	SaveShield(ctx context.Context, s *shield.Shield) error

	LoadAllActivities(ctx context.Context) ([]*activity.Activity, error)
	SaveActivity(ctx context.Context, a *activity.Activity) error

	LoadAllFoodLogs(ctx context.Context) ([]*foodlog.Entry, error)
	SaveFoodLog(ctx context.Context, e *foodlog.Entry) error

	LoadCalorieGoal(ctx context.Context) (*caloriegoal.Settings, error)
	SaveCalorieGoal(ctx context.Context, s *caloriegoal.Settings) error

	LoadSettings(ctx context.Context) (*appsettings.Settings, error)
	SaveSettings(ctx context.Context, s *appsettings.Settings) error

	Subscribe(h ChangeHandler)
}

// LocalStore is the Postgres-backed AggregateStore, bound to a single user.
// It keeps an in-memory read cache per record kind; the cache entry is
// refreshed on every save and dropped when a load fails, so readers always
// see the last persisted state.
type LocalStore struct {
	db     *pgxpool.Pool
	userID string

	mu         sync.RWMutex
	handlers   []ChangeHandler
	facts      map[string]*dailyfact.DailyFact
	cachedStr  *streak.Streak
	cachedShd  *shield.Shield
	cachedProf *profile.Profile
}

func NewLocalStore(db *pgxpool.Pool, userID string) *LocalStore {
	return &LocalStore{
		db:     db,
		userID: userID,
		facts:  make(map[string]*dailyfact.DailyFact),
	}
}

// InitSchema creates the local tables if they do not exist yet.
func (s *LocalStore) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		clerk_id TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		daily_step_target INT NOT NULL DEFAULT 0,
		badges JSONB NOT NULL DEFAULT '[]',
		onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
		first_goal_celebrated BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS daily_facts (
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		step_count INT NOT NULL DEFAULT 0,
		goal_met BOOLEAN NOT NULL DEFAULT FALSE,
		goal_target INT,
		shield_used BOOLEAN NOT NULL DEFAULT FALSE,
		activity_ids TEXT[] NOT NULL DEFAULT '{}',
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, date)
	);
	CREATE TABLE IF NOT EXISTS streaks (
		user_id TEXT PRIMARY KEY,
		current_streak INT NOT NULL DEFAULT 0,
		longest_streak INT NOT NULL DEFAULT 0,
		streak_start_date TEXT,
		last_goal_met_date TEXT,
		consecutive_goal_days INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS shields (
		user_id TEXT PRIMARY KEY,
		available INT NOT NULL DEFAULT 0,
		purchased_lifetime INT NOT NULL DEFAULT 0,
		used_this_period INT NOT NULL DEFAULT 0,
		used_lifetime INT NOT NULL DEFAULT 0,
		last_refill_date TEXT,
		tier TEXT NOT NULL DEFAULT 'free',
		initialized BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS activities (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		start_time TIMESTAMPTZ NOT NULL,
		end_time TIMESTAMPTZ NOT NULL,
		steps INT NOT NULL DEFAULT 0,
		distance_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, id)
	);
	CREATE TABLE IF NOT EXISTS food_logs (
		user_id TEXT NOT NULL,
		id TEXT NOT NULL,
		date TEXT NOT NULL,
		meal_type TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		protein_g DOUBLE PRECISION NOT NULL DEFAULT 0,
		carbs_g DOUBLE PRECISION NOT NULL DEFAULT 0,
		fat_g DOUBLE PRECISION NOT NULL DEFAULT 0,
		modified_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, id)
	);
	CREATE TABLE IF NOT EXISTS calorie_goals (
		user_id TEXT PRIMARY KEY,
		daily_calorie_target INT NOT NULL DEFAULT 0,
		protein_percent INT NOT NULL DEFAULT 0,
		carbs_percent INT NOT NULL DEFAULT 0,
		fat_percent INT NOT NULL DEFAULT 0,
		modified_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS app_settings (
		user_id TEXT PRIMARY KEY,
		notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		haptics_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		usage_period_start TEXT NOT NULL DEFAULT '',
		usage_count INT NOT NULL DEFAULT 0,
		initialized BOOLEAN NOT NULL DEFAULT FALSE,
		modified_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS shield_purchases (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		quantity INT NOT NULL,
		granted INT NOT NULL,
		product_id TEXT NOT NULL DEFAULT '',
		purchased_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS device_tokens (
		user_id TEXT NOT NULL,
		token TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		registered_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, token)
	);
	`
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize local schema: %w", err)
	}
	return nil
}

// Subscribe registers a change handler. Handlers are invoked synchronously
// after the save that triggered them, in registration order.
func (s *LocalStore) Subscribe(h ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *LocalStore) emit(kind record.Kind) {
	s.mu.RLock()
	handlers := make([]ChangeHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(kind)
	}
}

// copyProfile and copyFact clone the slice fields too, so a cached entry and
// the copy handed to a caller never share a backing array. A caller appending
// into spare capacity must not be visible through the cache.
func copyProfile(p *profile.Profile) *profile.Profile {
	cp := *p
	cp.Badges = append([]profile.Badge(nil), p.Badges...)
	return &cp
}

func copyFact(f *dailyfact.DailyFact) *dailyfact.DailyFact {
	cp := *f
	cp.ActivityIDs = append([]string(nil), f.ActivityIDs...)
	return &cp
}

func (s *LocalStore) LoadProfile(ctx context.Context) (*profile.Profile, error) {
	s.mu.RLock()
	if s.cachedProf != nil {
		p := copyProfile(s.cachedProf)
		s.mu.RUnlock()
		return p, nil
	}
	s.mu.RUnlock()

	query := `
	SELECT user_id, clerk_id, display_name, daily_step_target, badges,
	       onboarding_completed, first_goal_celebrated, created_at, updated_at
	FROM profiles
	WHERE user_id = $1
	`

	p := &profile.Profile{}
	var badges []byte
	err := s.db.QueryRow(ctx, query, s.userID).Scan(
		&p.ID,
		&p.ClerkID,
		&p.DisplayName,
		&p.DailyStepTarget,
		&badges,
		&p.OnboardingCompleted,
		&p.FirstGoalCelebrated,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if err := json.Unmarshal(badges, &p.Badges); err != nil {
		return nil, fmt.Errorf("failed to decode badges: %w", err)
	}

	s.mu.Lock()
	s.cachedProf = copyProfile(p)
	s.mu.Unlock()
	return p, nil
}

func (s *LocalStore) SaveProfile(ctx context.Context, p *profile.Profile) error {
	badges, err := json.Marshal(p.Badges)
	if err != nil {
		return fmt.Errorf("failed to encode badges: %w", err)
	}
	if p.Badges == nil {
		badges = []byte("[]")
	}

	query := `
	INSERT INTO profiles (user_id, clerk_id, display_name, daily_step_target, badges,
	                      onboarding_completed, first_goal_celebrated, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (user_id) DO UPDATE SET
		clerk_id = EXCLUDED.clerk_id,
		display_name = EXCLUDED.display_name,
		daily_step_target = EXCLUDED.daily_step_target,
		badges = EXCLUDED.badges,
		onboarding_completed = EXCLUDED.onboarding_completed,
		first_goal_celebrated = EXCLUDED.first_goal_celebrated,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.Exec(ctx, query, s.userID, p.ClerkID, p.DisplayName, p.DailyStepTarget,
		badges, p.OnboardingCompleted, p.FirstGoalCelebrated, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.mu.Lock()
	cp := copyProfile(p)
	cp.ID = s.userID
	s.cachedProf = cp
	s.mu.Unlock()

	s.emit(record.KindProfile)
	return nil
}

func (s *LocalStore) LoadDailyFact(ctx context.Context, date string) (*dailyfact.DailyFact, error) {
	s.mu.RLock()
	if f, ok := s.facts[date]; ok {
		cp := copyFact(f)
		s.mu.RUnlock()
		return cp, nil
	}
	s.mu.RUnlock()

	query := `
	SELECT date, step_count, goal_met, goal_target, shield_used, activity_ids, updated_at
	FROM daily_facts
	WHERE user_id = $1 AND date = $2
	`

	f := &dailyfact.DailyFact{}
	err := s.db.QueryRow(ctx, query, s.userID, date).Scan(
		&f.Date,
		&f.StepCount,
		&f.GoalMet,
		&f.GoalTarget,
		&f.ShieldUsed,
		&f.ActivityIDs,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load daily fact %s: %w", date, err)
	}

	s.mu.Lock()
	s.facts[date] = copyFact(f)
	s.mu.Unlock()
	return f, nil
}

func (s *LocalStore) SaveDailyFact(ctx context.Context, f *dailyfact.DailyFact) error {
	ids := f.ActivityIDs
	if ids == nil {
		ids = []string{}
	}

	query := `
	INSERT INTO daily_facts (user_id, date, step_count, goal_met, goal_target, shield_used, activity_ids, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id, date) DO UPDATE SET
		step_count = EXCLUDED.step_count,
		goal_met = EXCLUDED.goal_met,
		goal_target = EXCLUDED.goal_target,
		shield_used = EXCLUDED.shield_used,
		activity_ids = EXCLUDED.activity_ids,
		updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.Exec(ctx, query, s.userID, f.Date, f.StepCount, f.GoalMet,
		f.GoalTarget, f.ShieldUsed, ids, f.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save daily fact %s: %w", f.Date, err)
	}

	s.mu.Lock()
	s.facts[f.Date] = copyFact(f)
	s.mu.Unlock()

	s.emit(record.KindDailyFact)
	return nil
}

func (s *LocalStore) LoadAllDailyFacts(ctx context.Context) ([]*dailyfact.DailyFact, error) {
	query := `
	SELECT date, step_count, goal_met, goal_target, shield_used, activity_ids, updated_at
	FROM daily_facts
	WHERE user_id = $1
	ORDER BY date ASC
	`

	rows, err := s.db.Query(ctx, query, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily facts: %w", err)
	}
	defer rows.Close()

	var facts []*dailyfact.DailyFact
	for rows.Next() {
		f := &dailyfact.DailyFact{}
		if err := rows.Scan(&f.Date, &f.StepCount, &f.GoalMet, &f.GoalTarget,
			&f.ShieldUsed, &f.ActivityIDs, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily fact: %w", err)
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily facts: %w", err)
	}

	s.mu.Lock()
	for _, f := range facts {
		s.facts[f.Date] = copyFact(f)
	}
	s.mu.Unlock()
	return facts, nil
}

func (s *LocalStore) LoadStreak(ctx context.Context) (*streak.Streak, error) {
	s.mu.RLock()
	if s.cachedStr != nil {
		cp := *s.cachedStr
		s.mu.RUnlock()
		return &cp, nil
	}
	s.mu.RUnlock()

	query := `
	SELECT current_streak, longest_streak, streak_start_date, last_goal_met_date, consecutive_goal_days, updated_at
	FROM streaks
	WHERE user_id = $1
	`

	st := &streak.Streak{}
	err := s.db.QueryRow(ctx, query, s.userID).Scan(
		&st.CurrentStreak,
		&st.LongestStreak,
		&st.StreakStartDate,
		&st.LastGoalMetDate,
		&st.ConsecutiveGoalDays,
		&st.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &streak.Streak{}, nil
		}
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}

	s.mu.Lock()
	cp := *st
	s.cachedStr = &cp
	s.mu.Unlock()
	return st, nil
}

func (s *LocalStore) SaveStreak(ctx context.Context, st *streak.Streak) error {
	query := `
	INSERT INTO streaks (user_id, current_streak, longest_streak, streak_start_date, last_goal_met_date, consecutive_goal_days, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id) DO UPDATE SET
		current_streak = EXCLUDED.current_streak,
		longest_streak = EXCLUDED.longest_streak,
		streak_start_date = EXCLUDED.streak_start_date,
		last_goal_met_date = EXCLUDED.last_goal_met_date,
		consecutive_goal_days = EXCLUDED.consecutive_goal_days,
		updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.Exec(ctx, query, s.userID, st.CurrentStreak, st.LongestStreak,
		st.StreakStartDate, st.LastGoalMetDate, st.ConsecutiveGoalDays, st.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}

	s.mu.Lock()
	cp := *st
	s.cachedStr = &cp
	s.mu.Unlock()

	s.emit(record.KindStreak)
	return nil
}

func (s *LocalStore) LoadShield(ctx context.Context) (*shield.Shield, error) {
	s.mu.RLock()
	if s.cachedShd != nil {
		cp := *s.cachedShd
		s.mu.RUnlock()
		return &cp, nil
	}
	s.mu.RUnlock()

	query := `
	SELECT available, purchased_lifetime, used_this_period, used_lifetime, last_refill_date, tier, initialized, updated_at
	FROM shields
	WHERE user_id = $1
	`

	sh := &shield.Shield{}
	err := s.db.QueryRow(ctx, query, s.userID).Scan(
		&sh.Available,
		&sh.PurchasedLifetime,
		&sh.UsedThisPeriod,
		&sh.UsedLifetime,
		&sh.LastRefillDate,
		&sh.Tier,
		&sh.Initialized,
		&sh.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &shield.Shield{Tier: shield.TierFree}, nil
		}
		return nil, fmt.Errorf("failed to load shield: %w", err)
	}

	s.mu.Lock()
	cp := *sh
	s.cachedShd = &cp
	s.mu.Unlock()
	return sh, nil
}

func (s *LocalStore) SaveShield(ctx context.Context, sh *shield.Shield) error {
	query := `
	INSERT INTO shields (user_id, available, purchased_lifetime, used_this_period, used_lifetime, last_refill_date, tier, initialized, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (user_id) DO UPDATE SET
		available = EXCLUDED.available,
		purchased_lifetime = EXCLUDED.purchased_lifetime,
		used_this_period = EXCLUDED.used_this_period,
		used_lifetime = EXCLUDED.used_lifetime,
		last_refill_date = EXCLUDED.last_refill_date,
		tier = EXCLUDED.tier,
		initialized = EXCLUDED.initialized,
		updated_at = EXCLUDED.updated_at
	`

	if _, err := s.db.Exec(ctx, query, s.userID, sh.Available, sh.PurchasedLifetime,
		sh.UsedThisPeriod, sh.UsedLifetime, sh.LastRefillDate, sh.Tier, sh.Initialized, sh.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save shield: %w", err)
	}

	s.mu.Lock()
	cp := *sh
	s.cachedShd = &cp
	s.mu.Unlock()

	s.emit(record.KindShield)
	return nil
}

func (s *LocalStore) LoadAllActivities(ctx context.Context) ([]*activity.Activity, error) {
	query := `
	SELECT id, kind, start_time, end_time, steps, distance_meters, created_at
	FROM activities
	WHERE user_id = $1
	ORDER BY start_time ASC
	`

	rows, err := s.db.Query(ctx, query, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	defer rows.Close()

	var out []*activity.Activity
	for rows.Next() {
		a := &activity.Activity{}
		if err := rows.Scan(&a.ID, &a.Kind, &a.StartTime, &a.EndTime, &a.Steps,
			&a.DistanceMeters, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read activities: %w", err)
	}
	return out, nil
}

// SaveActivity inserts a tracked activity. Activities are immutable: an id
// that already exists is left untouched (keep-first).
func (s *LocalStore) SaveActivity(ctx context.Context, a *activity.Activity) error {
	query := `
	INSERT INTO activities (user_id, id, kind, start_time, end_time, steps, distance_meters, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id, id) DO NOTHING
	`

	tag, err := s.db.Exec(ctx, query, s.userID, a.ID, a.Kind, a.StartTime, a.EndTime,
		a.Steps, a.DistanceMeters, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save activity %s: %w", a.ID, err)
	}
	if tag.RowsAffected() > 0 {
		s.emit(record.KindActivity)
	}
	return nil
}

func (s *LocalStore) LoadAllFoodLogs(ctx context.Context) ([]*foodlog.Entry, error) {
	query := `
	SELECT id, date, meal_type, name, calories, protein_g, carbs_g, fat_g, modified_at
	FROM food_logs
	WHERE user_id = $1
	ORDER BY date ASC, id ASC
	`

	rows, err := s.db.Query(ctx, query, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load food logs: %w", err)
	}
	defer rows.Close()

	var out []*foodlog.Entry
	for rows.Next() {
		e := &foodlog.Entry{}
		if err := rows.Scan(&e.ID, &e.Date, &e.MealType, &e.Name, &e.Calories,
			&e.ProteinG, &e.CarbsG, &e.FatG, &e.ModifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan food log: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read food logs: %w", err)
	}
	return out, nil
}

func (s *LocalStore) SaveFoodLog(ctx context.Context, e *foodlog.Entry) error {
	query := `
	INSERT INTO food_logs (user_id, id, date, meal_type, name, calories, protein_g, carbs_g, fat_g, modified_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (user_id, id) DO UPDATE SET
		date = EXCLUDED.date,
		meal_type = EXCLUDED.meal_type,
		name = EXCLUDED.name,
		calories = EXCLUDED.calories,
		protein_g = EXCLUDED.protein_g,
		carbs_g = EXCLUDED.carbs_g,
		fat_g = EXCLUDED.fat_g,
		modified_at = EXCLUDED.modified_at
	`

	if _, err := s.db.Exec(ctx, query, s.userID, e.ID, e.Date, e.MealType, e.Name,
		e.Calories, e.ProteinG, e.CarbsG, e.FatG, e.ModifiedAt); err != nil {
		return fmt.Errorf("failed to save food log %s: %w", e.ID, err)
	}

	s.emit(record.KindFoodLog)
	return nil
}

func (s *LocalStore) LoadCalorieGoal(ctx context.Context) (*caloriegoal.Settings, error) {
	query := `
	SELECT daily_calorie_target, protein_percent, carbs_percent, fat_percent, modified_at
	FROM calorie_goals
	WHERE user_id = $1
	`

	cg := &caloriegoal.Settings{}
	err := s.db.QueryRow(ctx, query, s.userID).Scan(
		&cg.DailyCalorieTarget,
		&cg.ProteinPercent,
		&cg.CarbsPercent,
		&cg.FatPercent,
		&cg.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load calorie goal: %w", err)
	}
	return cg, nil
}

func (s *LocalStore) SaveCalorieGoal(ctx context.Context, cg *caloriegoal.Settings) error {
	query := `
	INSERT INTO calorie_goals (user_id, daily_calorie_target, protein_percent, carbs_percent, fat_percent, modified_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (user_id) DO UPDATE SET
		daily_calorie_target = EXCLUDED.daily_calorie_target,
		protein_percent = EXCLUDED.protein_percent,
		carbs_percent = EXCLUDED.carbs_percent,
		fat_percent = EXCLUDED.fat_percent,
		modified_at = EXCLUDED.modified_at
	`

	if _, err := s.db.Exec(ctx, query, s.userID, cg.DailyCalorieTarget, cg.ProteinPercent,
		cg.CarbsPercent, cg.FatPercent, cg.ModifiedAt); err != nil {
		return fmt.Errorf("failed to save calorie goal: %w", err)
	}

	s.emit(record.KindCalorieGoal)
	return nil
}

func (s *LocalStore) LoadSettings(ctx context.Context) (*appsettings.Settings, error) {
	query := `
	SELECT notifications_enabled, haptics_enabled, usage_period_start, usage_count, initialized, modified_at
	FROM app_settings
	WHERE user_id = $1
	`

	as := &appsettings.Settings{}
	err := s.db.QueryRow(ctx, query, s.userID).Scan(
		&as.NotificationsEnabled,
		&as.HapticsEnabled,
		&as.UsagePeriodStart,
		&as.UsageCount,
		&as.Initialized,
		&as.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &appsettings.Settings{NotificationsEnabled: true, HapticsEnabled: true}, nil
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return as, nil
}

func (s *LocalStore) SaveSettings(ctx context.Context, as *appsettings.Settings) error {
	query := `
	INSERT INTO app_settings (user_id, notifications_enabled, haptics_enabled, usage_period_start, usage_count, initialized, modified_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (user_id) DO UPDATE SET
		notifications_enabled = EXCLUDED.notifications_enabled,
		haptics_enabled = EXCLUDED.haptics_enabled,
		usage_period_start = EXCLUDED.usage_period_start,
		usage_count = EXCLUDED.usage_count,
		initialized = EXCLUDED.initialized,
		modified_at = EXCLUDED.modified_at
	`

	if _, err := s.db.Exec(ctx, query, s.userID, as.NotificationsEnabled, as.HapticsEnabled,
		as.UsagePeriodStart, as.UsageCount, as.Initialized, as.ModifiedAt); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	s.emit(record.KindSettings)
	return nil
}

// InvalidateShield drops the cached shield aggregate and emits a change
// signal. Collaborators that write the shields table directly (the purchase
// grant path) call this so readers and the sync coordinator see the change.
func (s *LocalStore) InvalidateShield() {
	s.mu.Lock()
	s.cachedShd = nil
	s.mu.Unlock()
	s.emit(record.KindShield)
}

// DeviceTokens returns the registered push tokens for this user.
func (s *LocalStore) DeviceTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT token FROM device_tokens WHERE user_id = $1`, s.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan device token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// RegisterDeviceToken upserts a push token for this user.
func (s *LocalStore) RegisterDeviceToken(ctx context.Context, token, platform string) error {
	query := `
	INSERT INTO device_tokens (user_id, token, platform, registered_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (user_id, token) DO UPDATE SET
		platform = EXCLUDED.platform,
		registered_at = EXCLUDED.registered_at
	`
	if _, err := s.db.Exec(ctx, query, s.userID, token, platform, time.Now()); err != nil {
		return fmt.Errorf("failed to register device token: %w", err)
	}
	return nil
}
