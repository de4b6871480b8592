package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay_WithinJitterBounds(t *testing.T) {
	for attempt, base := range backoffSchedule {
		lo := time.Duration(float64(base) * (1 - jitterFraction))
		hi := time.Duration(float64(base) * (1 + jitterFraction))
		for i := 0; i < 50; i++ {
			d := backoffDelay(attempt)
			assert.GreaterOrEqual(t, d, lo, "attempt %d", attempt)
			assert.LessOrEqual(t, d, hi, "attempt %d", attempt)
		}
	}
}

func TestBackoffDelay_ClampsOutOfRangeAttempts(t *testing.T) {
	last := backoffSchedule[len(backoffSchedule)-1]
	lo := time.Duration(float64(last) * (1 - jitterFraction))
	hi := time.Duration(float64(last) * (1 + jitterFraction))

	d := backoffDelay(100)
	assert.GreaterOrEqual(t, d, lo)
	assert.LessOrEqual(t, d, hi)

	first := backoffSchedule[0]
	d = backoffDelay(-1)
	assert.GreaterOrEqual(t, d, time.Duration(float64(first)*(1-jitterFraction)))
	assert.LessOrEqual(t, d, time.Duration(float64(first)*(1+jitterFraction)))
}
