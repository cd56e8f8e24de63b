package fetcher

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensOnConsecutiveBlocks(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Minute)

	cb.RecordFailure(403)
	if !cb.CanProceed() {
		t.Fatal("one failure should not open the breaker")
	}

	cb.RecordFailure(403)
	if cb.CanProceed() {
		t.Fatal("two consecutive 403s should open the breaker")
	}
}

func TestCircuitBreakerSuccessResetsConsecutiveCount(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Minute)

	cb.RecordFailure(429)
	cb.RecordSuccess()
	cb.RecordFailure(429)

	if !cb.CanProceed() {
		t.Fatal("a success between failures should keep the breaker closed")
	}
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(5, 10*time.Millisecond)

	cb.RecordFailure(500)
	cb.RecordFailure(500)
	if cb.CanProceed() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.CanProceed() {
		t.Fatal("breaker should allow a probe after the reset timeout")
	}

	isOpen, failures, total := cb.GetStatus()
	if isOpen || failures != 0 || total != 0 {
		t.Fatalf("half-open should reset counters, got open=%v failures=%d total=%d", isOpen, failures, total)
	}
}

func TestCircuitBreakerIgnoresPlainErrors(t *testing.T) {
	cb := NewCircuitBreaker(5, time.Minute)

	// 404s are not block-shaped, breaker stays closed
	cb.RecordFailure(404)
	cb.RecordFailure(404)
	cb.RecordFailure(404)

	if !cb.CanProceed() {
		t.Fatal("404 responses should not open the breaker")
	}
}
