package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Exponential returns base * 2^attempt, capped at max when max > 0.
func Exponential(base, max time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	mul := math.Pow(2, float64(attempt))
	d := float64(base) * mul

	out := time.Duration(math.MaxInt64)
	if d < math.MaxInt64 {
		out = time.Duration(d)
	}
	if max > 0 {
		out = min(out, max)
	}
	return out
}

// ExponentialJitter is Exponential spread by +/- 20%.
func ExponentialJitter(base, max time.Duration, attempt int) time.Duration {
	d := Exponential(base, max, attempt)

	j := time.Duration(float64(d) * 0.2)
	if j <= 0 {
		return d
	}
	return d - j + rand.N(2*j)
}
