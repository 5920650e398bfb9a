package profile

import (
	"time"
)

// Badge is a durable award earned at a streak tier (for example "streak_30").
// Badges are never revoked and never duplicated per tier.
type Badge struct {
	ID       string    `json:"id" db:"id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

// Profile is the user's owned profile record. The boolean flags are one-way:
// a merge may flip them to true but never back to false.
type Profile struct {
	ID                  string    `json:"id" db:"id"`
	ClerkID             string    `json:"clerk_id" db:"clerk_id"`
	DisplayName         string    `json:"display_name" db:"display_name"`
	DailyStepTarget     int       `json:"daily_step_target" db:"daily_step_target"`
	Badges              []Badge   `json:"badges" db:"badges"`
	OnboardingCompleted bool      `json:"onboarding_completed" db:"onboarding_completed"`
	FirstGoalCelebrated bool      `json:"first_goal_celebrated" db:"first_goal_celebrated"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}

// HasBadge reports whether a badge with the given id is already held.
func (p *Profile) HasBadge(id string) bool {
	for _, b := range p.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// IsFresh reports whether this profile is a just-created default that has
// never been customized. Fresh profiles adopt the remote copy verbatim.
func (p *Profile) IsFresh() bool {
	return p == nil || (p.DisplayName == "" && len(p.Badges) == 0 && !p.OnboardingCompleted)
}
