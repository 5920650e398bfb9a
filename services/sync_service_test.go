package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"strideSyncAPI/internal/types/dailyfact"
	"strideSyncAPI/internal/types/record"
)

func newTestSync(store *fakeStore, remote *fakeRemote) *SyncService {
	engine := newTestEngine(store, nil)
	s := NewSyncService(store, remote, engine)
	s.DebounceQuiet = 20 * time.Millisecond
	s.PullSettle = time.Millisecond
	s.RetryDelays = []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, 10 * time.Millisecond}
	return s
}

func mustSetup(t *testing.T, s *SyncService) {
	t.Helper()
	if err := s.Setup(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func remoteFact(t *testing.T, remote *fakeRemote, date string, steps int, goalMet bool) {
	t.Helper()
	rec, err := record.EncodeDailyFact(&dailyfact.DailyFact{
		Date: date, StepCount: steps, GoalMet: goalMet, UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatal(err)
	}
	remote.put(rec)
}

func TestPushRequestedBeforeZoneReadyIsQueued(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()

	// A local change before Setup must not reach the remote yet.
	if err := store.SaveDailyFact(context.Background(), &dailyfact.DailyFact{Date: "2025-06-15", StepCount: 4000}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if remote.saveBatchCalls() != 0 {
		t.Fatal("push ran before the zone was ready")
	}

	mustSetup(t, s)
	waitFor(t, time.Second, func() bool {
		_, ok := remote.get(record.KeyForDailyFact("2025-06-15"))
		return ok
	}, "queued push to flush after setup")
}

func TestCriticalKindPushesImmediately(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()
	s.DebounceQuiet = time.Minute // immediate push must not depend on the debounce window

	mustSetup(t, s)
	if err := store.SaveDailyFact(context.Background(), &dailyfact.DailyFact{Date: "2025-06-15", StepCount: 4000}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, time.Second, func() bool {
		return remote.saveBatchCalls() >= 1
	}, "immediate push of a critical kind")
}

func TestDebounceCollapsesEditBurst(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()
	s.DebounceQuiet = 30 * time.Millisecond

	mustSetup(t, s)
	for i := 0; i < 3; i++ {
		s.SchedulePush(record.KindFoodLog)
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, time.Second, func() bool {
		return remote.saveBatchCalls() >= 1
	}, "debounced push to fire")
	time.Sleep(100 * time.Millisecond)
	if got := remote.saveBatchCalls(); got != 1 {
		t.Fatalf("burst of 3 edits produced %d pushes, want 1", got)
	}
}

func TestPushSingleFlightWithOneFollowUp(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()
	remote.saveDelay = 50 * time.Millisecond

	mustSetup(t, s)
	go s.PushAll(context.Background())
	waitFor(t, time.Second, func() bool {
		return s.Status().Syncing
	}, "first push to start")

	// Requests observed mid-push collapse into exactly one follow-up push.
	if err := s.PushAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.PushAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return remote.saveBatchCalls() == 2 && !s.Status().Syncing
	}, "follow-up push to complete")
	time.Sleep(100 * time.Millisecond)
	if got := remote.saveBatchCalls(); got != 2 {
		t.Fatalf("got %d pushes, want original + exactly one follow-up", got)
	}
}

func TestPushRetriesThenGivesUp(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()
	remote.setSaveErr(errors.New("remote unavailable"))

	mustSetup(t, s)
	if err := s.PushAll(context.Background()); err == nil {
		t.Fatal("expected the push to fail")
	}

	// Initial attempt plus the three configured retries, then nothing.
	waitFor(t, 2*time.Second, func() bool {
		return remote.saveBatchCalls() == 4
	}, "all retries to run")
	time.Sleep(100 * time.Millisecond)
	if got := remote.saveBatchCalls(); got != 4 {
		t.Fatalf("got %d attempts, want 4", got)
	}
	status := s.Status()
	if status.RetryCount != 3 || status.RetryPending {
		t.Fatalf("retry state after giving up: %+v", status)
	}

	// A later successful push clears the retry counter.
	remote.setSaveErr(nil)
	if err := s.PushAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := s.Status().RetryCount; got != 0 {
		t.Fatalf("retry count=%d after success, want 0", got)
	}
}

func TestPullMergesRemoteRecordsAcrossPages(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()
	s.PageSize = 2

	remoteFact(t, remote, "2025-06-11", 8100, true)
	remoteFact(t, remote, "2025-06-12", 9200, true)
	remoteFact(t, remote, "2025-06-13", 8400, true)
	remoteFact(t, remote, "2025-06-14", 8800, true)
	remoteFact(t, remote, "2025-06-15", 10500, true)

	mustSetup(t, s)
	if err := s.PullAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	facts, _ := store.LoadAllDailyFacts(context.Background())
	if len(facts) != 5 {
		t.Fatalf("merged %d facts, want 5", len(facts))
	}
	st, _ := store.LoadStreak(context.Background())
	if st.CurrentStreak != 5 {
		t.Fatalf("post-pull streak=%d, want 5", st.CurrentStreak)
	}

	// Pulling the same zone again changes nothing.
	factSaves := store.saveCount(record.KindDailyFact)
	streakSaves := store.saveCount(record.KindStreak)
	if err := s.PullAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.saveCount(record.KindDailyFact) != factSaves || store.saveCount(record.KindStreak) != streakSaves {
		t.Fatal("second pull rewrote already-merged records")
	}
}

func TestPullDoesNotEchoBackAsPush(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()

	mustSetup(t, s)
	if err := store.SaveDailyFact(context.Background(), &dailyfact.DailyFact{Date: "2025-06-15", StepCount: 4000}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool {
		return remote.saveBatchCalls() == 1 && !s.Status().Syncing
	}, "initial push")

	// The pull writes remote state back locally; those writes must not
	// trigger another push.
	if err := s.PullAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if got := remote.saveBatchCalls(); got != 1 {
		t.Fatalf("pull echoed back as %d extra pushes", got-1)
	}
}

func TestPullSkipsUndecodableRecords(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()

	remote.put(record.Record{
		Key:  record.KeyForDailyFact("2025-06-13"),
		Kind: record.KindDailyFact,
		Blob: []byte(`{"date":`), // truncated
	})
	remoteFact(t, remote, "2025-06-14", 9000, true)

	mustSetup(t, s)
	if err := s.PullAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	facts, _ := store.LoadAllDailyFacts(context.Background())
	if len(facts) != 1 || facts[0].Date != "2025-06-14" {
		t.Fatalf("got facts %+v, want only the decodable one", facts)
	}
}

func TestForceSyncPushesThenPulls(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()

	remoteFact(t, remote, "2025-06-14", 8800, true)

	mustSetup(t, s)
	if err := store.SaveDailyFact(context.Background(), &dailyfact.DailyFact{Date: "2025-06-15", StepCount: 4000}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, func() bool { return !s.Status().Syncing && remote.saveBatchCalls() >= 1 }, "initial push")

	if err := s.ForceSync(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, ok := remote.get(record.KeyForDailyFact("2025-06-15")); !ok {
		t.Fatal("local fact never reached the remote")
	}
	if f, _ := store.LoadDailyFact(context.Background(), "2025-06-14"); f == nil {
		t.Fatal("remote fact never reached the local store")
	}

	status := s.Status()
	if status.LastResult != "success" || status.LastSyncedAt == nil {
		t.Fatalf("status after forced sync: %+v", status)
	}
}

func TestPullRequiresZoneReady(t *testing.T) {
	store := newFakeStore()
	remote := newFakeRemote()
	s := newTestSync(store, remote)
	defer s.Stop()

	if err := s.PullAll(context.Background()); err == nil {
		t.Fatal("pull succeeded before the zone was ready")
	}
}
