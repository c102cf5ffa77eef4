// Package ratelimit provides per-client sliding-window admission control.
//
// Two named tiers exist: "default" for traffic that did not present a token,
// and "authenticated" for traffic that did. Both tiers share the same
// per-client timestamp state; only the limits differ.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TierPolicy defines the limits for one tier.
type TierPolicy struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

// Window returns the tier window as a Duration.
func (t TierPolicy) Window() time.Duration {
	return time.Duration(t.WindowSeconds) * time.Second
}

// Policy holds the limits for both tiers. Loaded once at startup and
// immutable thereafter.
type Policy struct {
	Default       TierPolicy `json:"default"`
	Authenticated TierPolicy `json:"authenticated"`
}

// DefaultPolicy returns the built-in policy used when no policy file is
// configured.
func DefaultPolicy() Policy {
	return Policy{
		Default:       TierPolicy{MaxRequests: 60, WindowSeconds: 60},
		Authenticated: TierPolicy{MaxRequests: 100, WindowSeconds: 60},
	}
}

// LoadPolicy reads a tier policy from a JSON file.
//
// Invalid policies fail here, at load time, never at request time.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading rate limit policy: %w", err)
	}

	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parsing rate limit policy: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Policy{}, fmt.Errorf("validating rate limit policy: %w", err)
	}
	return p, nil
}

// Validate checks both tiers for configuration errors.
//
// A tier with MaxRequests of zero is valid and denies all traffic; a
// non-positive window is a configuration error.
func (p Policy) Validate() error {
	for name, tier := range map[string]TierPolicy{
		"default":       p.Default,
		"authenticated": p.Authenticated,
	} {
		if tier.WindowSeconds <= 0 {
			return fmt.Errorf("tier %q: window_seconds must be positive, got %d", name, tier.WindowSeconds)
		}
		if tier.MaxRequests < 0 {
			return fmt.Errorf("tier %q: max_requests must not be negative, got %d", name, tier.MaxRequests)
		}
	}
	return nil
}

// tier returns the applicable tier for an admission check.
func (p Policy) tier(authenticated bool) TierPolicy {
	if authenticated {
		return p.Authenticated
	}
	return p.Default
}
