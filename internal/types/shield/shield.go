package shield

import (
	"time"
)

// Tier controls the shield cap and the monthly refill allocation.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Cap returns the maximum number of shields a user of this tier may hold.
func (t Tier) Cap() int {
	if t == TierPro {
		return 5
	}
	return 3
}

// MonthlyAllocation returns the refill level for this tier. Available is
// topped up to this value on a monthly boundary, never above the cap and
// never below its pre-refill value.
func (t Tier) MonthlyAllocation() int {
	if t == TierPro {
		return 3
	}
	return 1
}

// Shield is the per-user consumable shield aggregate. PurchasedLifetime and
// UsedLifetime are monotonic counters; Available is capped by the tier.
// Initialized distinguishes a fresh install from a device that has real local
// state, which matters for merging: a fresh install adopts remote verbatim.
type Shield struct {
	Available         int       `json:"available" db:"available"`
	PurchasedLifetime int       `json:"purchased_lifetime" db:"purchased_lifetime"`
	UsedThisPeriod    int       `json:"used_this_period" db:"used_this_period"`
	UsedLifetime      int       `json:"used_lifetime" db:"used_lifetime"`
	LastRefillDate    *string   `json:"last_refill_date,omitempty" db:"last_refill_date"`
	Tier              Tier      `json:"tier" db:"tier"`
	Initialized       bool      `json:"initialized" db:"initialized"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
