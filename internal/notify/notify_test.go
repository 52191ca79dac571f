package notify

import (
	"errors"
	"testing"
)

func TestWakeSession(t *testing.T) {
	w := Wake{Team: "default", ToAgent: "reviewer"}
	if got := w.Session(); got != "agent-default-reviewer" {
		t.Fatalf("Session = %q", got)
	}
}

func TestWakeMessage(t *testing.T) {
	w := Wake{
		FromAgent: "developer",
		ToAgent:   "reviewer",
		Project:   "billing-fix",
		Team:      "default",
		HandoffID: "HO_20260314_092653_developer_ab12cd",
	}
	want := "HANDOFF_HO_20260: Handoff from developer - project 'billing-fix' ready for reviewer"
	if got := w.Message(); got != want {
		t.Fatalf("Message = %q\n     want %q", got, want)
	}
}

func TestWakeMessageShortID(t *testing.T) {
	w := Wake{FromAgent: "a", ToAgent: "b", Project: "p", HandoffID: "HO_1"}
	want := "HANDOFF_HO_1: Handoff from a - project 'p' ready for b"
	if got := w.Message(); got != want {
		t.Fatalf("Message = %q", got)
	}
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	w := Wake{ToAgent: "x"}
	if err := r.Notify(w); err != nil {
		t.Fatal(err)
	}
	if len(r.Wakes) != 1 || r.Wakes[0].ToAgent != "x" {
		t.Fatalf("Wakes = %+v", r.Wakes)
	}

	r.Err = errors.New("down")
	if err := r.Notify(w); err == nil {
		t.Fatal("expected configured error")
	}
}

func TestNull(t *testing.T) {
	if err := (Null{}).Notify(Wake{}); err != nil {
		t.Fatal(err)
	}
}
