package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"strideSyncAPI/internal/types/activity"
	"strideSyncAPI/internal/types/foodlog"
	"strideSyncAPI/internal/types/record"
)

// SyncState is the coordinator's zone lifecycle state.
type SyncState string

const (
	StateUninitialized SyncState = "uninitialized"
	StateZoneChecking  SyncState = "zone_checking"
	StateZoneReady     SyncState = "zone_ready"
)

// RemoteStore is the remote record service boundary. Fetch returns (nil, nil)
// when the key does not exist. SaveBatch has partial-success semantics: it
// returns an error only when the whole batch failed.
type RemoteStore interface {
	EnsureZone(ctx context.Context) error
	SaveBatch(ctx context.Context, recs []record.Record) error
	Query(ctx context.Context, kind record.Kind, cursor string, limit int) ([]record.Record, string, error)
	Fetch(ctx context.Context, key string) (*record.Record, error)
	Delete(ctx context.Context, key string) error
}

// criticalKinds push immediately, bypassing the debounce window: the
// append-only log and everything affecting streak/shield integrity.
var criticalKinds = map[record.Kind]bool{
	record.KindDailyFact: true,
	record.KindActivity:  true,
	record.KindStreak:    true,
	record.KindShield:    true,
}

// SyncStatus is a snapshot of coordinator health for the status endpoint.
type SyncStatus struct {
	State        SyncState  `json:"state"`
	Syncing      bool       `json:"syncing"`
	LastResult   string     `json:"last_result,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	RetryPending bool       `json:"retry_pending"`
	RetryCount   int        `json:"retry_count"`
}

// SyncService owns the remote zone lifecycle and the push/pull schedule. It
// never mutates local state directly: everything written back during a pull
// is the output of a merge policy, routed through the AggregateStore.
type SyncService struct {
	store  AggregateStore
	remote RemoteStore
	engine *StreakService

	// Tunable so tests can shrink the windows.
	DebounceQuiet time.Duration
	PullSettle    time.Duration
	RetryDelays   []time.Duration
	BatchSize     int
	PageSize      int

	mu             sync.Mutex
	state          SyncState
	pushing        bool
	pushQueued     bool
	pendingReady   bool
	applyingRemote bool
	debounceTimer  *time.Timer
	retryTimer     *time.Timer
	retryCount     int
	syncing        bool
	lastResult     string
	lastError      string
	lastSyncedAt   *time.Time
	onComplete     []func()
}

func NewSyncService(store AggregateStore, remote RemoteStore, engine *StreakService) *SyncService {
	s := &SyncService{
		store:  store,
		remote: remote,
		engine: engine,

		DebounceQuiet: 2 * time.Second,
		PullSettle:    2 * time.Second,
		RetryDelays:   []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second},
		BatchSize:     400,
		PageSize:      100,

		state: StateUninitialized,
	}
	store.Subscribe(s.onLocalChange)
	return s
}

// OnSyncComplete registers a callback fired after every successful push or
// pull, so presentation collaborators know to refresh.
func (s *SyncService) OnSyncComplete(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = append(s.onComplete, f)
}

func (s *SyncService) fireComplete() {
	s.mu.Lock()
	callbacks := make([]func(), len(s.onComplete))
	copy(callbacks, s.onComplete)
	s.mu.Unlock()
	for _, f := range callbacks {
		f()
	}
}

// Setup checks that the remote zone exists, creating it if absent. It must
// complete before any push or pull; pushes requested earlier are queued and
// flushed once the zone is ready.
func (s *SyncService) Setup(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateZoneReady {
		s.mu.Unlock()
		return nil
	}
	s.state = StateZoneChecking
	s.mu.Unlock()

	if err := s.remote.EnsureZone(ctx); err != nil {
		s.mu.Lock()
		s.state = StateUninitialized
		s.lastResult = "error"
		s.lastError = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("failed to set up remote zone: %w", err)
	}

	s.mu.Lock()
	s.state = StateZoneReady
	flush := s.pendingReady
	s.pendingReady = false
	s.mu.Unlock()

	log.Println("Sync: remote zone ready")
	if flush {
		go s.pushAllLogged()
	}
	return nil
}

func (s *SyncService) onLocalChange(kind record.Kind) {
	s.mu.Lock()
	applying := s.applyingRemote
	s.mu.Unlock()
	if applying {
		return
	}
	s.SchedulePush(kind)
}

// SchedulePush requests a push for the given record kind. Critical kinds push
// immediately; everything else restarts a single shared debounce timer so a
// burst of edits results in one push after the quiet period.
func (s *SyncService) SchedulePush(kind record.Kind) {
	s.mu.Lock()
	if s.state != StateZoneReady {
		s.pendingReady = true
		s.mu.Unlock()
		return
	}

	if criticalKinds[kind] {
		s.mu.Unlock()
		go s.pushAllLogged()
		return
	}

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(s.DebounceQuiet, s.pushAllLogged)
	s.mu.Unlock()
}

func (s *SyncService) pushAllLogged() {
	if err := s.PushAll(context.Background()); err != nil {
		log.Printf("Sync: push failed: %v", err)
	}
}

// PushAll serializes every local record into its remote representation and
// writes it out in independent batches. Single-flight: a push already in
// progress is not duplicated, and a request observed mid-push triggers
// exactly one follow-up push when the current one completes.
func (s *SyncService) PushAll(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateZoneReady {
		s.pendingReady = true
		s.mu.Unlock()
		return nil
	}
	if s.pushing {
		s.pushQueued = true
		s.mu.Unlock()
		return nil
	}
	s.pushing = true
	s.syncing = true
	s.mu.Unlock()

	err := s.pushOnce(ctx)

	s.mu.Lock()
	s.pushing = false
	s.syncing = false
	if err != nil {
		s.lastResult = "error"
		s.lastError = err.Error()
	} else {
		s.lastResult = "success"
		s.lastError = ""
		now := time.Now()
		s.lastSyncedAt = &now
		s.retryCount = 0
	}
	followUp := s.pushQueued
	s.pushQueued = false
	s.mu.Unlock()

	if err != nil {
		syncOperationsTotal.WithLabelValues("push", "error").Inc()
		s.scheduleRetry("push")
		return err
	}
	syncOperationsTotal.WithLabelValues("push", "success").Inc()
	s.fireComplete()

	if followUp {
		go s.pushAllLogged()
	}
	return nil
}

func (s *SyncService) pushOnce(ctx context.Context) error {
	recs, err := s.collectLocalRecords(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	failed := 0
	for start := 0; start < len(recs); start += s.BatchSize {
		end := start + s.BatchSize
		if end > len(recs) {
			end = len(recs)
		}
		if err := s.remote.SaveBatch(ctx, recs[start:end]); err != nil {
			// Batches are independent: a failed batch does not block the rest.
			log.Printf("Sync: batch %d-%d failed: %v", start, end, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d push batches failed", failed, (len(recs)+s.BatchSize-1)/s.BatchSize)
	}
	return nil
}

func (s *SyncService) collectLocalRecords(ctx context.Context) ([]record.Record, error) {
	var recs []record.Record

	appendRec := func(rec record.Record, err error) {
		if err != nil {
			log.Printf("Sync: skipping unencodable record: %v", err)
			return
		}
		recs = append(recs, rec)
	}

	if p, err := s.store.LoadProfile(ctx); err != nil {
		return nil, fmt.Errorf("failed to load profile for push: %w", err)
	} else if p != nil {
		appendRec(record.EncodeProfile(p))
	}

	st, err := s.store.LoadStreak(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak for push: %w", err)
	}
	appendRec(record.EncodeStreak(st))

	sh, err := s.store.LoadShield(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shield for push: %w", err)
	}
	appendRec(record.EncodeShield(sh))

	facts, err := s.store.LoadAllDailyFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily facts for push: %w", err)
	}
	for _, f := range facts {
		appendRec(record.EncodeDailyFact(f))
	}

	acts, err := s.store.LoadAllActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load activities for push: %w", err)
	}
	for _, a := range acts {
		appendRec(record.EncodeActivity(a))
	}

	logs, err := s.store.LoadAllFoodLogs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load food logs for push: %w", err)
	}
	for _, e := range logs {
		appendRec(record.EncodeFoodLog(e))
	}

	if cg, err := s.store.LoadCalorieGoal(ctx); err != nil {
		return nil, fmt.Errorf("failed to load calorie goal for push: %w", err)
	} else if cg != nil {
		appendRec(record.EncodeCalorieGoal(cg))
	}

	as, err := s.store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for push: %w", err)
	}
	appendRec(record.EncodeSettings(as))

	return recs, nil
}

// PullAll fetches every remote record in the zone, runs each through its
// merge policy against the local copy, writes back only what changed, and
// finally asks the engine to recalculate the streak from the merged fact log.
// The coordinator's own writes are suppressed from re-triggering a push.
func (s *SyncService) PullAll(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateZoneReady {
		s.mu.Unlock()
		return fmt.Errorf("cannot pull: zone not ready")
	}
	s.syncing = true
	s.applyingRemote = true
	s.mu.Unlock()

	err := s.pullOnce(ctx)

	s.mu.Lock()
	s.applyingRemote = false
	s.syncing = false
	if err != nil {
		s.lastResult = "error"
		s.lastError = err.Error()
	} else {
		s.lastResult = "success"
		s.lastError = ""
		now := time.Now()
		s.lastSyncedAt = &now
		s.retryCount = 0
	}
	s.mu.Unlock()

	if err != nil {
		syncOperationsTotal.WithLabelValues("pull", "error").Inc()
		s.scheduleRetry("pull")
		return err
	}

	// Recalculation runs after every merge has been applied, so it sees a
	// fully merged fact log. Its writes are real local changes and may push.
	if err := s.engine.RecalculateStreak(ctx); err != nil {
		log.Printf("Sync: post-pull recalculation failed: %v", err)
	}

	syncOperationsTotal.WithLabelValues("pull", "success").Inc()
	s.fireComplete()
	return nil
}

func (s *SyncService) pullOnce(ctx context.Context) error {
	if err := s.pullSingletons(ctx); err != nil {
		return err
	}
	if err := s.pullDailyFacts(ctx); err != nil {
		return err
	}
	if err := s.pullActivities(ctx); err != nil {
		return err
	}
	if err := s.pullFoodLogs(ctx); err != nil {
		return err
	}
	return nil
}

func (s *SyncService) pullSingletons(ctx context.Context) error {
	if rec, err := s.remote.Fetch(ctx, record.KeyStreak); err != nil {
		return fmt.Errorf("failed to fetch streak: %w", err)
	} else if rec != nil {
		if remote, err := record.DecodeStreak(*rec); err != nil {
			s.skipRecord(err)
		} else {
			local, err := s.store.LoadStreak(ctx)
			if err != nil {
				return err
			}
			if merged, changed := MergeStreak(local, remote); changed {
				syncRecordsMerged.WithLabelValues(string(record.KindStreak)).Inc()
				if err := s.store.SaveStreak(ctx, merged); err != nil {
					return err
				}
			}
		}
	}

	if rec, err := s.remote.Fetch(ctx, record.KeyShield); err != nil {
		return fmt.Errorf("failed to fetch shield: %w", err)
	} else if rec != nil {
		if remote, err := record.DecodeShield(*rec); err != nil {
			s.skipRecord(err)
		} else {
			local, err := s.store.LoadShield(ctx)
			if err != nil {
				return err
			}
			if merged, changed := MergeShield(local, remote); changed {
				syncRecordsMerged.WithLabelValues(string(record.KindShield)).Inc()
				if err := s.store.SaveShield(ctx, merged); err != nil {
					return err
				}
			}
		}
	}

	if rec, err := s.remote.Fetch(ctx, record.KeyProfile); err != nil {
		return fmt.Errorf("failed to fetch profile: %w", err)
	} else if rec != nil {
		if remote, err := record.DecodeProfile(*rec); err != nil {
			s.skipRecord(err)
		} else {
			local, err := s.store.LoadProfile(ctx)
			if err != nil {
				return err
			}
			if merged, changed := MergeProfile(local, remote); changed {
				syncRecordsMerged.WithLabelValues(string(record.KindProfile)).Inc()
				if err := s.store.SaveProfile(ctx, merged); err != nil {
					return err
				}
			}
		}
	}

	if rec, err := s.remote.Fetch(ctx, record.KeyCalorieGoal); err != nil {
		return fmt.Errorf("failed to fetch calorie goal: %w", err)
	} else if rec != nil {
		if remote, err := record.DecodeCalorieGoal(*rec); err != nil {
			s.skipRecord(err)
		} else {
			local, err := s.store.LoadCalorieGoal(ctx)
			if err != nil {
				return err
			}
			if merged, changed := MergeCalorieGoal(local, remote); changed {
				syncRecordsMerged.WithLabelValues(string(record.KindCalorieGoal)).Inc()
				if err := s.store.SaveCalorieGoal(ctx, merged); err != nil {
					return err
				}
			}
		}
	}

	if rec, err := s.remote.Fetch(ctx, record.KeySettings); err != nil {
		return fmt.Errorf("failed to fetch settings: %w", err)
	} else if rec != nil {
		if remote, err := record.DecodeSettings(*rec); err != nil {
			s.skipRecord(err)
		} else {
			local, err := s.store.LoadSettings(ctx)
			if err != nil {
				return err
			}
			if merged, changed := MergeSettings(local, remote); changed {
				syncRecordsMerged.WithLabelValues(string(record.KindSettings)).Inc()
				if err := s.store.SaveSettings(ctx, merged); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// pullDailyFacts scans the full remote fact history. There is no date-range
// cutoff: a retroactive correction can land arbitrarily far back.
func (s *SyncService) pullDailyFacts(ctx context.Context) error {
	cursor := ""
	for {
		page, next, err := s.remote.Query(ctx, record.KindDailyFact, cursor, s.PageSize)
		if err != nil {
			return fmt.Errorf("failed to query daily facts: %w", err)
		}
		for _, rec := range page {
			remote, err := record.DecodeDailyFact(rec)
			if err != nil {
				s.skipRecord(err)
				continue
			}
			local, err := s.store.LoadDailyFact(ctx, remote.Date)
			if err != nil {
				return err
			}
			if merged, changed := MergeDailyFact(local, remote); changed {
				syncRecordsMerged.WithLabelValues(string(record.KindDailyFact)).Inc()
				if err := s.store.SaveDailyFact(ctx, merged); err != nil {
					return err
				}
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

func (s *SyncService) pullActivities(ctx context.Context) error {
	existing, err := s.store.LoadAllActivities(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*activity.Activity, len(existing))
	for _, a := range existing {
		byID[a.ID] = a
	}

	cursor := ""
	for {
		page, next, err := s.remote.Query(ctx, record.KindActivity, cursor, s.PageSize)
		if err != nil {
			return fmt.Errorf("failed to query activities: %w", err)
		}
		for _, rec := range page {
			remote, err := record.DecodeActivity(rec)
			if err != nil {
				s.skipRecord(err)
				continue
			}
			if merged, changed := MergeActivity(byID[remote.ID], remote); changed {
				syncRecordsMerged.WithLabelValues(string(record.KindActivity)).Inc()
				if err := s.store.SaveActivity(ctx, merged); err != nil {
					return err
				}
				byID[merged.ID] = merged
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

func (s *SyncService) pullFoodLogs(ctx context.Context) error {
	existing, err := s.store.LoadAllFoodLogs(ctx)
	if err != nil {
		return err
	}
	byID := make(map[string]*foodlog.Entry, len(existing))
	for _, e := range existing {
		byID[e.ID] = e
	}

	cursor := ""
	for {
		page, next, err := s.remote.Query(ctx, record.KindFoodLog, cursor, s.PageSize)
		if err != nil {
			return fmt.Errorf("failed to query food logs: %w", err)
		}
		for _, rec := range page {
			remote, err := record.DecodeFoodLog(rec)
			if err != nil {
				s.skipRecord(err)
				continue
			}
			if merged, changed := MergeFoodLog(byID[remote.ID], remote); changed {
				syncRecordsMerged.WithLabelValues(string(record.KindFoodLog)).Inc()
				if err := s.store.SaveFoodLog(ctx, merged); err != nil {
					return err
				}
				byID[merged.ID] = merged
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

// skipRecord handles a record that cannot be decoded: it is logged and
// dropped, never aborting the batch. The local copy stays authoritative for
// the next push.
func (s *SyncService) skipRecord(err error) {
	log.Printf("Sync: skipping undecodable record: %v", err)
	syncRecordsSkipped.Inc()
}

// ForceSync pushes immediately, waits a short settle delay, then pulls.
func (s *SyncService) ForceSync(ctx context.Context) error {
	if err := s.PushAll(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.PullSettle):
	}
	return s.PullAll(ctx)
}

// scheduleRetry arms the backoff timer for a failed push or pull. At most one
// retry is pending at a time, and after the configured attempts are exhausted
// the coordinator gives up until the next local change or manual sync.
func (s *SyncService) scheduleRetry(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retryTimer != nil {
		return
	}
	if s.retryCount >= len(s.RetryDelays) {
		log.Printf("Sync: giving up on %s after %d retries", op, s.retryCount)
		return
	}
	delay := s.RetryDelays[s.retryCount]
	s.retryCount++
	syncRetriesTotal.Inc()
	log.Printf("Sync: retrying %s in %s (attempt %d)", op, delay, s.retryCount)

	s.retryTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.retryTimer = nil
		s.mu.Unlock()

		var err error
		if op == "pull" {
			err = s.PullAll(context.Background())
		} else {
			err = s.PushAll(context.Background())
		}
		if err != nil {
			log.Printf("Sync: %s retry failed: %v", op, err)
		}
	})
}

// Status returns a snapshot of the coordinator's observable state.
func (s *SyncService) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncStatus{
		State:        s.state,
		Syncing:      s.syncing,
		LastResult:   s.lastResult,
		LastError:    s.lastError,
		LastSyncedAt: s.lastSyncedAt,
		RetryPending: s.retryTimer != nil,
		RetryCount:   s.retryCount,
	}
}

// Stop cancels any pending debounce or retry timers.
func (s *SyncService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
		s.debounceTimer = nil
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}
