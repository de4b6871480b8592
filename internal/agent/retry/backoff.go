package retry

import (
	"math/rand/v2"
	"time"
)

// MaxRetries is the transient-failure budget per action. The seventh
// failure escalates the action to the failed queue.
const MaxRetries = 7

// backoffSchedule is fixed rather than exponential past a minute: field
// devices flap between cell towers, and waiting longer than 60s just delays
// recovery without reducing load.
var backoffSchedule = []time.Duration{
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	15 * time.Second,
	30 * time.Second,
	60 * time.Second,
	60 * time.Second,
}

const jitterFraction = 0.25

// backoffDelay returns the wait after the given zero-based attempt, with
// uniform jitter so a fleet of devices reconnecting together does not
// hammer the server in lockstep.
func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(backoffSchedule) {
		attempt = len(backoffSchedule) - 1
	}
	base := backoffSchedule[attempt]
	jitter := (rand.Float64()*2 - 1) * jitterFraction
	return time.Duration(float64(base) * (1 + jitter))
}
