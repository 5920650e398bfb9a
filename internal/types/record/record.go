package record

import (
	"encoding/json"
	"fmt"
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

// Kind identifies one of the synchronized record kinds.
type Kind string

const (
	KindDailyFact   Kind = "daily_fact"
	KindStreak      Kind = "streak"
	KindShield      Kind = "shield"
	KindProfile     Kind = "profile"
	KindActivity    Kind = "activity"
	KindFoodLog     Kind = "food_log"
	KindCalorieGoal Kind = "calorie_goal"
	KindSettings    Kind = "settings"
)

// Singleton kinds live under a fixed versioned key in the zone; per-item
// kinds key on their natural id or date.
const (
	KeyStreak      = "Streak_v1"
	KeyShield      = "Shield_v1"
	KeyProfile     = "Profile_v1"
	KeyCalorieGoal = "CalorieGoal_v1"
	KeySettings    = "Settings_v1"
)

// Record is the remote representation of one synchronized record: a few typed
// scalar fields for query-ability plus one opaque JSON blob carrying the full
// structured value.
type Record struct {
	Key        string          `json:"key"`
	Kind       Kind            `json:"kind"`
	Date       string          `json:"date,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	MealType   string          `json:"meal_type,omitempty"`
	ModifiedAt time.Time       `json:"modified_at"`
	Blob       json.RawMessage `json:"blob"`
}

func KeyForDailyFact(date string) string { return "DailyFact_" + date }
func KeyForActivity(id string) string    { return "Activity_" + id }
func KeyForFoodLog(id string) string     { return "FoodLog_" + id }

func encode(key string, kind Kind, modifiedAt time.Time, v any) (Record, error) {
	blob, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode %s record: %w", kind, err)
	}
	return Record{Key: key, Kind: kind, ModifiedAt: modifiedAt, Blob: blob}, nil
}

func EncodeDailyFact(f *dailyfact.DailyFact) (Record, error) {
	rec, err := encode(KeyForDailyFact(f.Date), KindDailyFact, f.UpdatedAt, f)
	rec.Date = f.Date
	return rec, err
}

func EncodeStreak(s *streak.Streak) (Record, error) {
	return encode(KeyStreak, KindStreak, s.UpdatedAt, s)
}

func EncodeShield(s *shield.Shield) (Record, error) {
	return encode(KeyShield, KindShield, s.UpdatedAt, s)
}

func EncodeProfile(p *profile.Profile) (Record, error) {
	rec, err := encode(KeyProfile, KindProfile, p.UpdatedAt, p)
	rec.EntityID = p.ID
	return rec, err
}

func EncodeActivity(a *activity.Activity) (Record, error) {
	rec, err := encode(KeyForActivity(a.ID), KindActivity, a.CreatedAt, a)
	rec.EntityID = a.ID
	return rec, err
}

func EncodeFoodLog(e *foodlog.Entry) (Record, error) {
	rec, err := encode(KeyForFoodLog(e.ID), KindFoodLog, e.ModifiedAt, e)
	rec.EntityID = e.ID
	rec.Date = e.Date
	rec.MealType = string(e.MealType)
	return rec, err
}

func EncodeCalorieGoal(s *caloriegoal.Settings) (Record, error) {
	return encode(KeyCalorieGoal, KindCalorieGoal, s.ModifiedAt, s)
}

func EncodeSettings(s *appsettings.Settings) (Record, error) {
	return encode(KeySettings, KindSettings, s.ModifiedAt, s)
}

func decode(rec Record, want Kind, v any) error {
	if rec.Kind != want {
		return fmt.Errorf("record %s has kind %s, want %s", rec.Key, rec.Kind, want)
	}
	if err := json.Unmarshal(rec.Blob, v); err != nil {
		return fmt.Errorf("failed to decode %s record %s: %w", want, rec.Key, err)
	}
	return nil
}

func DecodeDailyFact(rec Record) (*dailyfact.DailyFact, error) {
	var f dailyfact.DailyFact
	if err := decode(rec, KindDailyFact, &f); err != nil {
		return nil, err
	}
	if f.Date == "" {
		return nil, fmt.Errorf("daily fact record %s has no date", rec.Key)
	}
	return &f, nil
}

func DecodeStreak(rec Record) (*streak.Streak, error) {
	var s streak.Streak
	if err := decode(rec, KindStreak, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func DecodeShield(rec Record) (*shield.Shield, error) {
	var s shield.Shield
	if err := decode(rec, KindShield, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func DecodeProfile(rec Record) (*profile.Profile, error) {
	var p profile.Profile
	if err := decode(rec, KindProfile, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func DecodeActivity(rec Record) (*activity.Activity, error) {
	var a activity.Activity
	if err := decode(rec, KindActivity, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		return nil, fmt.Errorf("activity record %s has no id", rec.Key)
	}
	return &a, nil
}

func DecodeFoodLog(rec Record) (*foodlog.Entry, error) {
	var e foodlog.Entry
	if err := decode(rec, KindFoodLog, &e); err != nil {
		return nil, err
	}
	if e.ID == "" {
		return nil, fmt.Errorf("food log record %s has no id", rec.Key)
	}
	return &e, nil
}

func DecodeCalorieGoal(rec Record) (*caloriegoal.Settings, error) {
	var s caloriegoal.Settings
	if err := decode(rec, KindCalorieGoal, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func DecodeSettings(rec Record) (*appsettings.Settings, error) {
	var s appsettings.Settings
	if err := decode(rec, KindSettings, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
