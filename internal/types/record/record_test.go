package record

import (
	"testing"
	"time"

	"strideSyncAPI/internal/types/activity"
	"strideSyncAPI/internal/types/dailyfact"
	"strideSyncAPI/internal/types/foodlog"
	"strideSyncAPI/internal/types/streak"
)

func TestKeyScheme(t *testing.T) {
	if got := KeyForDailyFact("2025-06-15"); got != "DailyFact_2025-06-15" {
		t.Fatalf("daily fact key: %q", got)
	}
	if got := KeyForActivity("abc"); got != "Activity_abc" {
		t.Fatalf("activity key: %q", got)
	}
	if got := KeyForFoodLog("f1"); got != "FoodLog_f1" {
		t.Fatalf("food log key: %q", got)
	}
}

func TestDailyFactRoundTripCarriesQueryFields(t *testing.T) {
	target := 8000
	f := &dailyfact.DailyFact{
		Date:        "2025-06-15",
		StepCount:   9100,
		GoalMet:     true,
		GoalTarget:  &target,
		ActivityIDs: []string{"a1"},
		UpdatedAt:   time.Date(2025, 6, 15, 21, 0, 0, 0, time.UTC),
	}

	rec, err := EncodeDailyFact(f)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Kind != KindDailyFact || rec.Date != "2025-06-15" || rec.Key != "DailyFact_2025-06-15" {
		t.Fatalf("scalar fields wrong: %+v", rec)
	}
	if !rec.ModifiedAt.Equal(f.UpdatedAt) {
		t.Fatalf("modified at: %v", rec.ModifiedAt)
	}

	got, err := DecodeDailyFact(rec)
	if err != nil {
		t.Fatal(err)
	}
	if got.StepCount != 9100 || !got.GoalMet || *got.GoalTarget != 8000 || len(got.ActivityIDs) != 1 {
		t.Fatalf("decoded fact: %+v", got)
	}
}

func TestFoodLogRecordCarriesMealType(t *testing.T) {
	e := &foodlog.Entry{ID: "f1", Date: "2025-06-15", MealType: foodlog.MealBreakfast, Name: "oats"}
	rec, err := EncodeFoodLog(e)
	if err != nil {
		t.Fatal(err)
	}
	if rec.EntityID != "f1" || rec.Date != "2025-06-15" || rec.MealType != string(foodlog.MealBreakfast) {
		t.Fatalf("scalar fields wrong: %+v", rec)
	}
}

func TestDecodeRejectsWrongKind(t *testing.T) {
	rec, err := EncodeStreak(&streak.Streak{CurrentStreak: 3})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeShield(rec); err == nil {
		t.Fatal("decoding a streak record as a shield succeeded")
	}
}

func TestDecodeRejectsMalformedBlob(t *testing.T) {
	rec := Record{Key: KeyStreak, Kind: KindStreak, Blob: []byte(`{`)}
	if _, err := DecodeStreak(rec); err == nil {
		t.Fatal("decoding a truncated blob succeeded")
	}
}

func TestDecodeRejectsMissingIdentity(t *testing.T) {
	rec := Record{Key: "DailyFact_", Kind: KindDailyFact, Blob: []byte(`{}`)}
	if _, err := DecodeDailyFact(rec); err == nil {
		t.Fatal("daily fact without a date decoded")
	}

	rec = Record{Key: "Activity_", Kind: KindActivity, Blob: []byte(`{}`)}
	if _, err := DecodeActivity(rec); err == nil {
		t.Fatal("activity without an id decoded")
	}
}

func TestActivityRecordModifiedAtIsCreation(t *testing.T) {
	created := time.Date(2025, 6, 15, 7, 30, 0, 0, time.UTC)
	a := &activity.Activity{ID: "a1", CreatedAt: created}
	rec, err := EncodeActivity(a)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.ModifiedAt.Equal(created) || rec.EntityID != "a1" {
		t.Fatalf("activity record: %+v", rec)
	}
}
