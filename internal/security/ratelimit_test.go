package security

import (
	"testing"
	"time"

	"github.com/acolita/mongo-shell-mcp/internal/testing/fakes/fakeclock"
)

func TestAuthRateLimiter_LocksAfterMaxFailures(t *testing.T) {
	clock := fakeclock.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := NewAuthRateLimiter(3, time.Minute, clock)

	for i := 0; i < 2; i++ {
		r.RecordFailure("db1", "app")
		if locked, _ := r.IsLocked("db1", "app"); locked {
			t.Fatalf("locked after %d failures", i+1)
		}
	}

	r.RecordFailure("db1", "app")
	locked, remaining := r.IsLocked("db1", "app")
	if !locked || remaining != time.Minute {
		t.Fatalf("IsLocked() = %v, %v; want true, 1m", locked, remaining)
	}

	if locked, _ := r.IsLocked("db2", "app"); locked {
		t.Error("lockout leaked to another host")
	}

	clock.Advance(time.Minute)
	if locked, _ := r.IsLocked("db1", "app"); locked {
		t.Error("still locked after the lockout elapsed")
	}

	// An expired lockout starts counting from zero.
	r.RecordFailure("db1", "app")
	if locked, _ := r.IsLocked("db1", "app"); locked {
		t.Error("one failure after expiry must not relock")
	}
}

func TestAuthRateLimiter_SuccessResets(t *testing.T) {
	r := NewAuthRateLimiter(2, time.Minute, fakeclock.New(time.Now()))
	r.RecordFailure("", "")
	r.RecordSuccess("", "")
	r.RecordFailure("", "")
	if locked, _ := r.IsLocked("", ""); locked {
		t.Error("RecordSuccess did not reset the count")
	}
}

func TestAuthRateLimiter_Defaults(t *testing.T) {
	r := NewAuthRateLimiter(0, 0, nil)
	if r.maxFailures != DefaultMaxAuthFailures || r.lockoutDuration != DefaultAuthLockoutDuration {
		t.Errorf("defaults not applied: %d %v", r.maxFailures, r.lockoutDuration)
	}
}
