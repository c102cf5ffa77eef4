package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// RetryAfter is the number of seconds until the client may retry.
	// Only meaningful when Allowed is false; always at least 1.
	RetryAfter int
}

// Limiter admits or denies requests per client over a sliding wall-clock
// window.
//
// State is a map from client id to its ordered request timestamps, guarded by
// a single mutex. Entries for idle clients are never evicted — faithful to
// the original behaviour; bounded-memory operation is out of scope.
//
// Thread Safety: all methods are safe for concurrent use.
type Limiter struct {
	policy Policy

	mu      sync.Mutex
	clients map[string][]time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewLimiter creates a Limiter for the given (already validated) policy.
func NewLimiter(policy Policy) *Limiter {
	return &Limiter{
		policy:  policy,
		clients: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Admit records and admits a request from clientID, or denies it with a
// retry-after hint when the applicable tier is exhausted.
//
// Timestamps older than the tier window are pruned lazily on each call.
// Authenticated and unauthenticated traffic use independently configured
// tiers but share the same per-client timestamp sequence.
func (l *Limiter) Admit(clientID string, authenticated bool) Decision {
	tier := l.policy.tier(authenticated)
	now := l.now()
	cutoff := now.Add(-tier.Window())

	l.mu.Lock()
	defer l.mu.Unlock()

	window := pruneBefore(l.clients[clientID], cutoff)

	if len(window) >= tier.MaxRequests {
		l.clients[clientID] = window
		return Decision{RetryAfter: retryAfter(window, tier, now)}
	}

	l.clients[clientID] = append(window, now)
	return Decision{Allowed: true}
}

// ClientCount returns the number of tracked client entries.
func (l *Limiter) ClientCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// pruneBefore drops timestamps older than cutoff. The input is ordered, so a
// single scan for the first surviving entry suffices.
func pruneBefore(window []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(window) && !window[idx].After(cutoff) {
		idx++
	}
	return window[idx:]
}

// retryAfter computes whole seconds until the oldest in-window timestamp
// expires. With an empty window (MaxRequests of zero denies everything) the
// full window length is reported.
func retryAfter(window []time.Time, tier TierPolicy, now time.Time) int {
	remaining := tier.Window()
	if len(window) > 0 {
		remaining = window[0].Add(tier.Window()).Sub(now)
	}

	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
