package listener

import (
	"path/filepath"
	"testing"
)

func TestParseSpecKinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind Kind
		addr string
	}{
		{"0.0.0.0:8080", KindTCP, "0.0.0.0:8080"},
		{"unix:/run/quasar.sock", KindUnix, "/run/quasar.sock"},
		{"vsock:1024", KindVsock, "1024"},
	}
	for _, c := range cases {
		spec, err := ParseSpec(c.raw, 511)
		if err != nil {
			t.Fatalf("ParseSpec(%q): %v", c.raw, err)
		}
		if spec.Kind != c.kind || spec.Address != c.addr {
			t.Fatalf("ParseSpec(%q) = %+v, want kind=%v addr=%q", c.raw, spec, c.kind, c.addr)
		}
	}
}

func TestBindTCPAssignsFD(t *testing.T) {
	set := NewSet()
	spec, _ := ParseSpec("127.0.0.1:0", 511)
	l, err := set.Bind(spec)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer set.CloseAll()

	if l.FD <= 2 {
		t.Fatalf("expected fd above stdio, got %d", l.FD)
	}
	if l.Inherited {
		t.Fatalf("freshly bound listener must not be marked inherited")
	}
	if got := set.FDs(); len(got) != 1 || got[0] != l.FD {
		t.Fatalf("FDs() = %v, want [%d]", got, l.FD)
	}
}

func TestBindUnixRemovesStaleSocketFile(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "quasar.sock")
	set := NewSet()
	spec, _ := ParseSpec("unix:"+sockPath, 511)

	l1, err := set.Bind(spec)
	if err != nil {
		t.Fatalf("first bind: %v", err)
	}
	l1.Listener.Close()

	set2 := NewSet()
	if _, err := set2.Bind(spec); err != nil {
		t.Fatalf("second bind after first close should succeed, got: %v", err)
	}
	defer set2.CloseAll()
}

func TestReconcileReusesMatchingAddress(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "quasar.sock")
	spec, _ := ParseSpec("unix:"+sockPath, 511)

	seed := NewSet()
	original, err := seed.Bind(spec)
	if err != nil {
		t.Fatalf("seed bind: %v", err)
	}
	inherited := &Listening{Listener: original.Listener, File: original.File, FD: original.FD, Inherited: true}

	out, stale, err := Reconcile([]Spec{spec}, []*Listening{inherited})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	defer out.CloseAll()

	if len(stale) != 0 {
		t.Fatalf("expected no stale listeners, got %d", len(stale))
	}
	if len(out.All()) != 1 || out.All()[0].FD != original.FD {
		t.Fatalf("expected reconciled set to reuse the inherited fd")
	}
}

func TestReconcileReportsUnmatchedInheritedAsStale(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "old.sock")
	spec, _ := ParseSpec("unix:"+sockPath, 511)

	seed := NewSet()
	original, err := seed.Bind(spec)
	if err != nil {
		t.Fatalf("seed bind: %v", err)
	}
	inherited := &Listening{Listener: original.Listener, File: original.File, FD: original.FD, Inherited: true}

	newSockPath := filepath.Join(t.TempDir(), "new.sock")
	newSpec, _ := ParseSpec("unix:"+newSockPath, 511)

	out, stale, err := Reconcile([]Spec{newSpec}, []*Listening{inherited})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	defer out.CloseAll()

	if len(stale) != 1 || stale[0] != inherited {
		t.Fatalf("expected the old-address listener to be reported stale")
	}
	stale[0].Listener.Close()
	stale[0].File.Close()
}
