package proctitle

import "testing"

func TestSetWithoutInitIsNoop(t *testing.T) {
	buf = nil
	Set("quasar: master process")
}

func TestOriginalReturnsArgs(t *testing.T) {
	if got := Original(); got == nil {
		t.Fatalf("expected Original to return a non-nil argv slice")
	}
}
