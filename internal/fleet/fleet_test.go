package fleet

import (
	"encoding/json"
	"testing"

	"github.com/oriys/quasar/internal/signal"
)

func TestHandleIgnoresOwnOrigin(t *testing.T) {
	n := &Notifier{origin: "host-a"}
	flags := &signal.Flags{}
	payload, _ := json.Marshal(Message{Kind: KindReconfigure, Origin: "host-a"})
	n.handle(string(payload), flags)
	if flags.TakeReconfigure() {
		t.Fatalf("own-origin message should not set a flag")
	}
}

func TestHandleAppliesReconfigureFromPeer(t *testing.T) {
	n := &Notifier{origin: "host-a"}
	flags := &signal.Flags{}
	payload, _ := json.Marshal(Message{Kind: KindReconfigure, Origin: "host-b"})
	n.handle(string(payload), flags)
	if !flags.TakeReconfigure() {
		t.Fatalf("expected reconfigure flag set from peer message")
	}
}

func TestHandleAppliesReopenFromPeer(t *testing.T) {
	n := &Notifier{origin: "host-a"}
	flags := &signal.Flags{}
	payload, _ := json.Marshal(Message{Kind: KindReopen, Origin: "host-b"})
	n.handle(string(payload), flags)
	if !flags.TakeReopen() {
		t.Fatalf("expected reopen flag set from peer message")
	}
}

func TestHandleMalformedPayloadIsNoop(t *testing.T) {
	n := &Notifier{origin: "host-a"}
	flags := &signal.Flags{}
	n.handle("not json", flags)
	if flags.TakeReconfigure() || flags.TakeReopen() {
		t.Fatalf("malformed payload must not set any flag")
	}
}
