package admin

import (
	"context"
	"testing"
)

type fakeController struct {
	status        Status
	reconfigured  bool
	reopened      bool
	upgraded      bool
}

func (f *fakeController) Status() Status          { return f.status }
func (f *fakeController) RequestReconfigure()      { f.reconfigured = true }
func (f *fakeController) RequestReopen()           { f.reopened = true }
func (f *fakeController) RequestUpgrade()           { f.upgraded = true }

func TestServerStatusReturnsControllerStatus(t *testing.T) {
	ctrl := &fakeController{status: Status{Generation: "abc", WorkerCount: 4}}
	s := NewServer(ctrl)
	got, err := s.Status(context.Background(), &Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Generation != "abc" || got.WorkerCount != 4 {
		t.Fatalf("got %+v", got)
	}
}

func TestServerReloadInvokesController(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer(ctrl)
	ack, err := s.Reload(context.Background(), &Empty{})
	if err != nil || !ack.OK {
		t.Fatalf("got ack=%+v err=%v", ack, err)
	}
	if !ctrl.reconfigured {
		t.Fatalf("expected RequestReconfigure to be called")
	}
}

func TestServerReopenInvokesController(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer(ctrl)
	if _, err := s.Reopen(context.Background(), &Empty{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctrl.reopened {
		t.Fatalf("expected RequestReopen to be called")
	}
}

func TestServerUpgradeInvokesController(t *testing.T) {
	ctrl := &fakeController{}
	s := NewServer(ctrl)
	if _, err := s.Upgrade(context.Background(), &Empty{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ctrl.upgraded {
		t.Fatalf("expected RequestUpgrade to be called")
	}
}
