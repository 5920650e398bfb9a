package activity

import (
	"time"
)

// Activity is an immutable tracked-activity record (a walk, a run). It is
// append-only: once created it is never updated, and the sync merge policy is
// insert-if-absent with keep-first on id collision.
type Activity struct {
	ID             string    `json:"id" db:"id"`
	Kind           string    `json:"kind" db:"kind"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	EndTime        time.Time `json:"end_time" db:"end_time"`
	Steps          int       `json:"steps" db:"steps"`
	DistanceMeters float64   `json:"distance_meters" db:"distance_meters"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
