package worker

import "testing"

func TestComputeWaitMSIdleReturnsMax(t *testing.T) {
	if got := computeWaitMS(-1, 1000, false); got != maxWaitMS {
		t.Fatalf("got %d, want %d", got, maxWaitMS)
	}
}

func TestComputeWaitMSClampsToMax(t *testing.T) {
	if got := computeWaitMS(100000, 0, false); got != maxWaitMS {
		t.Fatalf("got %d, want %d", got, maxWaitMS)
	}
}

func TestComputeWaitMSReturnsRemainingBudget(t *testing.T) {
	if got := computeWaitMS(1500, 1000, false); got != 500 {
		t.Fatalf("got %d, want 500", got)
	}
}

func TestComputeWaitMSExpiredTimerIsNonBlocking(t *testing.T) {
	if got := computeWaitMS(900, 1000, false); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestComputeWaitMSQuittingAlwaysNonBlocking(t *testing.T) {
	if got := computeWaitMS(5000, 0, true); got != 0 {
		t.Fatalf("got %d, want 0 while draining toward quit", got)
	}
}
