package fetch

import (
	"math"
	"time"
)

// maxBackoffShift caps the exponent so the delay saturates instead of
// overflowing time.Duration for large retry counts.
const maxBackoffShift = 20

// Backoff returns the delay before the nth retry, 1-based: base for the
// first retry, then doubling, so successive retries wait base, 2*base,
// 4*base and so on (base * 2^(n-1)). n <= 0 returns 0 because the initial
// attempt never sleeps.
func Backoff(n int, base time.Duration) time.Duration {
	if n <= 0 || base <= 0 {
		return 0
	}
	shift := uint(n - 1)
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	if base > time.Duration(math.MaxInt64)>>shift {
		return time.Duration(math.MaxInt64)
	}
	return base << shift
}
