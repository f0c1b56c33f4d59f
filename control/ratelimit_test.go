package control

import (
	"testing"
	"time"
)

func TestErrorRateLimiterSuppressesWithinWindow(t *testing.T) {
	l := NewErrorRateLimiter(50 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("first Allow should succeed")
	}
	if l.Allow() {
		t.Fatal("second Allow within the window should be suppressed")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("Allow after the window elapsed should succeed")
	}
}
