package transport

import (
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestGate_EnterLeave(t *testing.T) {
	g := NewGate()

	if err := g.Enter(); err != nil {
		t.Fatalf("Enter on open gate failed: %v", err)
	}
	if err := g.Enter(); err != nil {
		t.Fatalf("second Enter failed: %v", err)
	}
	if got := g.Pending(); got != 2 {
		t.Errorf("expected 2 pending, got %d", got)
	}

	g.Leave()
	g.Leave()
	if got := g.Pending(); got != 0 {
		t.Errorf("expected 0 pending, got %d", got)
	}
}

func TestGate_EnterAfterCloseFails(t *testing.T) {
	g := NewGate()
	g.Close()

	if err := g.Enter(); err != ErrAborted {
		t.Errorf("expected ErrAborted, got %v", err)
	}
	if !g.Closed() {
		t.Error("Closed should report true after Close")
	}
}

func TestGate_CloseWaitsForDrain(t *testing.T) {
	g := NewGate()
	if err := g.Enter(); err != nil {
		t.Fatal(err)
	}

	closed := make(chan struct{})
	go func() {
		g.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned with one operation still inside")
	case <-time.After(50 * time.Millisecond):
	}

	g.Leave()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after last Leave")
	}
}

func TestGate_DoubleClose(t *testing.T) {
	g := NewGate()
	g.Close()

	done := make(chan struct{})
	go func() {
		g.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second Close blocked")
	}
}

func TestGate_LeaveWithoutEnterPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on unmatched Leave")
		}
	}()
	NewGate().Leave()
}

// TestGate_Bookkeeping drives a random interleaving of Enter, Leave and Close
// and checks that the pending count always matches the model, every Enter
// after Close is refused, and Close returns only when the model is drained.
func TestGate_Bookkeeping(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := NewGate()
		inside := 0
		closeAt := rapid.IntRange(0, 40).Draw(t, "closeAt")

		ops := rapid.IntRange(0, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if i == closeAt {
				var wg sync.WaitGroup
				wg.Add(1)
				go func() {
					defer wg.Done()
					g.Close()
				}()
				for inside > 0 {
					g.Leave()
					inside--
				}
				wg.Wait()
			}
			if rapid.Bool().Draw(t, "enter") {
				err := g.Enter()
				if i >= closeAt {
					if err != ErrAborted {
						t.Fatalf("Enter after Close must fail, got %v", err)
					}
				} else if err != nil {
					t.Fatalf("Enter before Close failed: %v", err)
				} else {
					inside++
				}
			} else if inside > 0 {
				g.Leave()
				inside--
			}
			if got := g.Pending(); got != inside {
				t.Fatalf("pending mismatch: gate says %d, model says %d", got, inside)
			}
		}

		for inside > 0 {
			g.Leave()
			inside--
		}
		g.Close()
		if got := g.Pending(); got != 0 {
			t.Fatalf("expected drained gate, got %d pending", got)
		}
	})
}
