package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

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

// fakeStore is an in-memory AggregateStore with the same load/save semantics
// as the Postgres implementation, plus save counters for assertions.
type fakeStore struct {
	mu          sync.Mutex
	profile     *profile.Profile
	facts       map[string]*dailyfact.DailyFact
	streak      *streak.Streak
	shield      *shield.Shield
	activities  map[string]*activity.Activity
	foodLogs    map[string]*foodlog.Entry
	calorieGoal *caloriegoal.Settings
	settings    *appsettings.Settings
	handlers    []ChangeHandler
	saves       map[record.Kind]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		facts:      make(map[string]*dailyfact.DailyFact),
		activities: make(map[string]*activity.Activity),
		foodLogs:   make(map[string]*foodlog.Entry),
		saves:      make(map[record.Kind]int),
	}
}

func (s *fakeStore) Subscribe(h ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *fakeStore) emit(kind record.Kind) {
	s.mu.Lock()
	s.saves[kind]++
	handlers := make([]ChangeHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()
	for _, h := range handlers {
		h(kind)
	}
}

func (s *fakeStore) saveCount(kind record.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[kind]
}

func (s *fakeStore) LoadProfile(ctx context.Context) (*profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, nil
	}
	cp := *s.profile
	cp.Badges = append([]profile.Badge(nil), s.profile.Badges...)
	return &cp, nil
}

func (s *fakeStore) SaveProfile(ctx context.Context, p *profile.Profile) error {
	s.mu.Lock()
	cp := *p
	cp.Badges = append([]profile.Badge(nil), p.Badges...)
	s.profile = &cp
	s.mu.Unlock()
	s.emit(record.KindProfile)
	return nil
}

func (s *fakeStore) LoadDailyFact(ctx context.Context, date string) (*dailyfact.DailyFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facts[date]
	if !ok {
		return nil, nil
	}
	cp := *f
	cp.ActivityIDs = append([]string(nil), f.ActivityIDs...)
	return &cp, nil
}

func (s *fakeStore) SaveDailyFact(ctx context.Context, f *dailyfact.DailyFact) error {
	s.mu.Lock()
	cp := *f
	cp.ActivityIDs = append([]string(nil), f.ActivityIDs...)
	s.facts[f.Date] = &cp
	s.mu.Unlock()
	s.emit(record.KindDailyFact)
	return nil
}

func (s *fakeStore) LoadAllDailyFacts(ctx context.Context) ([]*dailyfact.DailyFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dates := make([]string, 0, len(s.facts))
	for d := range s.facts {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := make([]*dailyfact.DailyFact, 0, len(dates))
	for _, d := range dates {
		cp := *s.facts[d]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) LoadStreak(ctx context.Context) (*streak.Streak, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streak == nil {
		return &streak.Streak{}, nil
	}
	cp := *s.streak
	return &cp, nil
}

func (s *fakeStore) SaveStreak(ctx context.Context, st *streak.Streak) error {
	s.mu.Lock()
	cp := *st
	s.streak = &cp
	s.mu.Unlock()
	s.emit(record.KindStreak)
	return nil
}

func (s *fakeStore) LoadShield(ctx context.Context) (*shield.Shield, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shield == nil {
		return &shield.Shield{Tier: shield.TierFree}, nil
	}
	cp := *s.shield
	return &cp, nil
}

func (s *fakeStore) SaveShield(ctx context.Context, sh *shield.Shield) error {
	s.mu.Lock()
	cp := *sh
	s.shield = &cp
	s.mu.Unlock()
	s.emit(record.KindShield)
	return nil
}

func (s *fakeStore) LoadAllActivities(ctx context.Context) ([]*activity.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.activities))
	for id := range s.activities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*activity.Activity, 0, len(ids))
	for _, id := range ids {
		cp := *s.activities[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) SaveActivity(ctx context.Context, a *activity.Activity) error {
	s.mu.Lock()
	if _, exists := s.activities[a.ID]; exists {
		s.mu.Unlock()
		return nil
	}
	cp := *a
	s.activities[a.ID] = &cp
	s.mu.Unlock()
	s.emit(record.KindActivity)
	return nil
}

func (s *fakeStore) LoadAllFoodLogs(ctx context.Context) ([]*foodlog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.foodLogs))
	for id := range s.foodLogs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*foodlog.Entry, 0, len(ids))
	for _, id := range ids {
		cp := *s.foodLogs[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) SaveFoodLog(ctx context.Context, e *foodlog.Entry) error {
	s.mu.Lock()
	cp := *e
	s.foodLogs[e.ID] = &cp
	s.mu.Unlock()
	s.emit(record.KindFoodLog)
	return nil
}

func (s *fakeStore) LoadCalorieGoal(ctx context.Context) (*caloriegoal.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calorieGoal == nil {
		return nil, nil
	}
	cp := *s.calorieGoal
	return &cp, nil
}

func (s *fakeStore) SaveCalorieGoal(ctx context.Context, cg *caloriegoal.Settings) error {
	s.mu.Lock()
	cp := *cg
	s.calorieGoal = &cp
	s.mu.Unlock()
	s.emit(record.KindCalorieGoal)
	return nil
}

func (s *fakeStore) LoadSettings(ctx context.Context) (*appsettings.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		return &appsettings.Settings{NotificationsEnabled: true, HapticsEnabled: true}, nil
	}
	cp := *s.settings
	return &cp, nil
}

func (s *fakeStore) SaveSettings(ctx context.Context, as *appsettings.Settings) error {
	s.mu.Lock()
	cp := *as
	s.settings = &cp
	s.mu.Unlock()
	s.emit(record.KindSettings)
	return nil
}

// fakeRemote is an in-memory RemoteStore with failure injection.
type fakeRemote struct {
	mu         sync.Mutex
	records    map[string]record.Record
	zoneExists bool
	saveCalls  int
	saveErr    error
	saveDelay  time.Duration
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{records: make(map[string]record.Record)}
}

func (r *fakeRemote) EnsureZone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zoneExists = true
	return nil
}

func (r *fakeRemote) SaveBatch(ctx context.Context, recs []record.Record) error {
	r.mu.Lock()
	r.saveCalls++
	err := r.saveErr
	delay := r.saveDelay
	if err == nil {
		for _, rec := range recs {
			r.records[rec.Key] = rec
		}
	}
	r.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (r *fakeRemote) Query(ctx context.Context, kind record.Kind, cursor string, limit int) ([]record.Record, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.records))
	for k, rec := range r.records {
		if rec.Kind == kind && k > cursor {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]record.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.records[k])
	}
	next := ""
	if len(keys) == limit && limit > 0 {
		next = keys[len(keys)-1]
	}
	return out, next, nil
}

func (r *fakeRemote) Fetch(ctx context.Context, key string) (*record.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *fakeRemote) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
	return nil
}

func (r *fakeRemote) saveBatchCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveCalls
}

func (r *fakeRemote) setSaveErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

func (r *fakeRemote) get(key string) (record.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	return rec, ok
}

func (r *fakeRemote) put(rec record.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Key] = rec
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
