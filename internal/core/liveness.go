package core

import (
	"sync/atomic"
	"time"

	"github.com/vovakirdan/ircchat/internal/proto"
)

// Liveness tracks inbound activity and the outstanding server PING of one
// session. All fields are atomics so the read loop and the ticker can touch
// them without a lock.
type Liveness struct {
	interval time.Duration
	timeout  time.Duration

	lastSeen     atomic.Int64 // unix nanos
	lastPingSent atomic.Int64 // unix nanos
	awaitingPong atomic.Bool
}

// NewLiveness starts the idle clock at now.
func NewLiveness(interval, timeout time.Duration, now time.Time) *Liveness {
	l := &Liveness{interval: interval, timeout: timeout}
	l.lastSeen.Store(now.UnixNano())
	return l
}

// Observe records an inbound line. Only PONG clears the outstanding ping.
func (l *Liveness) Observe(verb string, at time.Time) {
	l.lastSeen.Store(at.UnixNano())
	if verb == proto.CmdPong {
		l.awaitingPong.Store(false)
	}
}

// ShouldPing reports whether the session has been quiet for a full interval
// with no ping outstanding.
func (l *Liveness) ShouldPing(now time.Time) bool {
	if l.awaitingPong.Load() {
		return false
	}
	return now.Sub(l.LastSeen()) >= l.interval
}

// MarkPingSent starts the pong deadline.
func (l *Liveness) MarkPingSent(now time.Time) {
	l.lastPingSent.Store(now.UnixNano())
	l.awaitingPong.Store(true)
}

// Expired reports whether a ping is outstanding past the pong timeout.
func (l *Liveness) Expired(now time.Time) bool {
	if !l.awaitingPong.Load() {
		return false
	}
	return now.Sub(time.Unix(0, l.lastPingSent.Load())) > l.timeout
}

// AwaitingPong reports whether a ping is outstanding.
func (l *Liveness) AwaitingPong() bool {
	return l.awaitingPong.Load()
}

// LastSeen returns when the last inbound line arrived.
func (l *Liveness) LastSeen() time.Time {
	return time.Unix(0, l.lastSeen.Load())
}

// CheckInterval is how often a ticker should poll this monitor.
func (l *Liveness) CheckInterval() time.Duration {
	return min(l.interval, l.timeout)
}
