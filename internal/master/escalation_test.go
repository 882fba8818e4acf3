package master

import (
	"testing"
	"time"

	"github.com/oriys/quasar/internal/procsup"
	"github.com/oriys/quasar/internal/signal"
)

func TestNextKillDelayLadder(t *testing.T) {
	want := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	var cur time.Duration
	for i, w := range want {
		next, kill := nextKillDelay(cur)
		if kill {
			t.Fatalf("step %d: unexpected escalateToKill", i)
		}
		if next != w {
			t.Fatalf("step %d: got %v, want %v", i, next, w)
		}
		cur = next
	}
	// one more doubling (1600ms) exceeds maxKillDelay: escalate to KILL
	// and leave the caller's delay at the last rung rather than arming a
	// longer timer.
	next, kill := nextKillDelay(cur)
	if !kill {
		t.Fatalf("expected escalateToKill once past the ladder's last rung")
	}
	if next != 800*time.Millisecond {
		t.Fatalf("escalated delay should stay at the last rung, got %v", next)
	}
}

func TestNextKillDelayFromZeroStartsLadder(t *testing.T) {
	next, kill := nextKillDelay(0)
	if kill {
		t.Fatalf("first call must never escalate directly to KILL")
	}
	if next != 50*time.Millisecond {
		t.Fatalf("got %v, want 50ms", next)
	}
}

// TestStepTerminateIsTimeGated guards against stepTerminate advancing the
// ladder once per call: calling it many times within a single rung's
// delay must not reach SIGKILL, only letting the armed timer actually
// fire should.
func TestStepTerminateIsTimeGated(t *testing.T) {
	m := &Master{table: procsup.New(), flags: &signal.Flags{}}

	m.terminating = true
	m.killDelay = 0
	m.alrm = nil

	for i := 0; i < 50; i++ {
		m.stepTerminate()
		if m.killDelay > 50*time.Millisecond {
			t.Fatalf("iteration %d: ladder advanced past the first rung without the timer firing (killDelay=%v)", i, m.killDelay)
		}
	}

	time.Sleep(60 * time.Millisecond)
	m.stepTerminate()
	if m.killDelay != 100*time.Millisecond {
		t.Fatalf("after the first rung's timer fired, got killDelay=%v, want 100ms", m.killDelay)
	}
}
