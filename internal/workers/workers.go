package workers

import (
	"context"
	"log"
	"time"

	"strideSyncAPI/services"
)

// StartRolloverWorker runs the periodic streak maintenance loop: the monthly
// shield refill and the missed-day shield check. Both operations are
// idempotent, so running them every hour just catches day and month
// boundaries soon after they pass. Returns a stop function.
func StartRolloverWorker(engine *services.StreakService) func() {
	ticker := time.NewTicker(1 * time.Hour)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				runRollover(engine)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(done)
	}
}

func runRollover(engine *services.StreakService) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := engine.ApplyMonthlyRefill(ctx); err != nil {
		log.Printf("Rollover: monthly refill failed: %v", err)
	}

	deployed, broken, err := engine.CheckAndDeployForMissedDays(ctx)
	if err != nil {
		log.Printf("Rollover: missed day check failed: %v", err)
		return
	}
	if deployed > 0 || broken {
		log.Printf("Rollover: deployed %d shields, streak broken: %v", deployed, broken)
	}
}
