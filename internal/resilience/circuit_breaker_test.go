package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_StateClosed(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)

	if cb.GetState() != StateClosed {
		t.Errorf("Expected initial state to be Closed, got %d", cb.GetState())
	}

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("Expected call to succeed in Closed state, got %v", err)
	}
}

func TestCircuitBreaker_OpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 1*time.Second)
	fail := errors.New("remote api down")

	cb.RecordResult(false)
	cb.RecordResult(false)
	if cb.GetState() != StateClosed {
		t.Error("Expected state to still be Closed after 2 failures")
	}

	cb.RecordResult(false)
	if cb.GetState() != StateOpen {
		t.Error("Expected state to be Open after 3 failures")
	}

	// Open circuit rejects without invoking fn
	invoked := false
	err := cb.Call(func() error {
		invoked = true
		return fail
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if invoked {
		t.Error("Expected fn not to be invoked while circuit is open")
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 100*time.Millisecond)

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(false)

	if cb.GetState() != StateOpen {
		t.Fatal("Expected circuit to be Open")
	}

	time.Sleep(150 * time.Millisecond)

	if !cb.allowRequest() {
		t.Error("Expected to allow request after timeout (HalfOpen)")
	}

	if cb.GetState() != StateHalfOpen {
		t.Errorf("Expected state to be HalfOpen, got %d", cb.GetState())
	}
}

func TestCircuitBreaker_CloseAfterSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 50*time.Millisecond)

	cb.RecordResult(false)
	cb.RecordResult(false)
	cb.RecordResult(false)

	time.Sleep(100 * time.Millisecond)

	// Enough successes in half-open close the circuit
	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Fatalf("Expected half-open call %d to pass, got %v", i, err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected state to be Closed after recovery, got %d", cb.GetState())
	}
}

func TestCircuitBreaker_FailureInHalfOpenReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 50*time.Millisecond)

	cb.RecordResult(false)
	cb.RecordResult(false)

	time.Sleep(100 * time.Millisecond)

	err := cb.Call(func() error { return errors.New("still down") })
	if err == nil {
		t.Fatal("Expected half-open probe to fail")
	}

	if cb.GetState() != StateOpen {
		t.Errorf("Expected state to be Open after half-open failure, got %d", cb.GetState())
	}
}

func TestCircuitBreaker_CallerFaultNotCounted(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Hour)
	bad := errors.New("invalid request")

	for i := 0; i < 10; i++ {
		err := cb.Call(func() error { return CallerFault(bad) })
		if !errors.Is(err, bad) {
			t.Fatalf("Expected wrapped caller error to propagate, got %v", err)
		}
	}

	if cb.GetState() != StateClosed {
		t.Errorf("Expected circuit to stay Closed after caller faults, got %d", cb.GetState())
	}

	// Real dependency failures still open it
	cb.Call(func() error { return bad })
	cb.Call(func() error { return bad })
	if cb.GetState() != StateOpen {
		t.Error("Expected circuit to be Open after unmarked failures")
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Hour)

	cb.RecordResult(false)
	if cb.GetState() != StateOpen {
		t.Fatal("Expected circuit to be Open")
	}

	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Error("Expected circuit to be Closed after Reset")
	}
}
