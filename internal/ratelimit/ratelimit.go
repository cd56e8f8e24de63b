package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter tracks and enforces request rate limits over sliding
// minute and hour windows.
type RateLimiter struct {
	requestsPerMinute int
	requestsPerHour   int
	enabled           bool

	minuteWindow []time.Time
	hourWindow   []time.Time
	mu           sync.Mutex
}

// NewRateLimiter creates a new rate limiter with the given limits
func NewRateLimiter(requestsPerMinute, requestsPerHour int, enabled bool) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		requestsPerHour:   requestsPerHour,
		enabled:           enabled,
		minuteWindow:      make([]time.Time, 0),
		hourWindow:        make([]time.Time, 0),
	}
}

// AllowRequest checks if a request is allowed based on rate limits
// Returns true if allowed, false if rate limit exceeded
func (rl *RateLimiter) AllowRequest() bool {
	if !rl.enabled {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.cleanup(now)

	if rl.requestsPerMinute > 0 && len(rl.minuteWindow) >= rl.requestsPerMinute {
		return false
	}
	if rl.requestsPerHour > 0 && len(rl.hourWindow) >= rl.requestsPerHour {
		return false
	}

	rl.minuteWindow = append(rl.minuteWindow, now)
	rl.hourWindow = append(rl.hourWindow, now)

	return true
}

// cleanup removes expired entries from the time windows
func (rl *RateLimiter) cleanup(now time.Time) {
	rl.minuteWindow = filterTimes(rl.minuteWindow, now.Add(-1*time.Minute))
	rl.hourWindow = filterTimes(rl.hourWindow, now.Add(-1*time.Hour))
}

// filterTimes keeps only times after the cutoff
func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() Stats {
	if !rl.enabled {
		return Stats{Enabled: false}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanup(time.Now())

	return Stats{
		Enabled:             true,
		RequestsLastMinute:  len(rl.minuteWindow),
		RequestsLastHour:    len(rl.hourWindow),
		LimitPerMinute:      rl.requestsPerMinute,
		LimitPerHour:        rl.requestsPerHour,
		RemainingThisMinute: max(0, rl.requestsPerMinute-len(rl.minuteWindow)),
		RemainingThisHour:   max(0, rl.requestsPerHour-len(rl.hourWindow)),
	}
}

// Stats contains rate limiter statistics
type Stats struct {
	Enabled             bool `json:"enabled"`
	RequestsLastMinute  int  `json:"requests_last_minute"`
	RequestsLastHour    int  `json:"requests_last_hour"`
	LimitPerMinute      int  `json:"limit_per_minute"`
	LimitPerHour        int  `json:"limit_per_hour"`
	RemainingThisMinute int  `json:"remaining_this_minute"`
	RemainingThisHour   int  `json:"remaining_this_hour"`
}

// Reset clears all tracked requests (useful for testing)
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.minuteWindow = make([]time.Time, 0)
	rl.hourWindow = make([]time.Time, 0)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
