package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSendTimeout_HalfElectionWindow(t *testing.T) {
	if got := sendTimeout(100 * time.Millisecond); got != 500*time.Millisecond {
		t.Errorf("expected 500ms for a 100ms tick, got %s", got)
	}
	if got := sendTimeout(time.Second); got != 5*time.Second {
		t.Errorf("expected 5s for a 1s tick, got %s", got)
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(ErrSendTimeout) {
		t.Error("ErrSendTimeout itself must classify as timeout")
	}
	if !IsTimeout(fmt.Errorf("rpc failed: %w", ErrSendTimeout)) {
		t.Error("wrapped ErrSendTimeout must classify as timeout")
	}
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("context deadline expiry must classify as timeout")
	}
	if IsTimeout(errors.New("connection refused")) {
		t.Error("ordinary failure must not classify as timeout")
	}
	if IsTimeout(nil) {
		t.Error("nil must not classify as timeout")
	}
}
