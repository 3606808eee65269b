package tcp

import (
	"time"

	"golang.org/x/time/rate"
)

// newFloodLimiter allows limit lines per window, refilling one line every
// window/limit. A non-positive limit disables flood control.
func newFloodLimiter(limit int, window time.Duration) *rate.Limiter {
	if limit <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
}
