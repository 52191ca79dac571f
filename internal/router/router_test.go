package router

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nolanhq/nolan/internal/team"
)

func positionalTeam() *team.Team {
	return &team.Team{
		Name:          "default",
		SchemaVersion: 2,
		Workflow: team.Workflow{
			Phases: []team.Phase{
				{Name: "plan", Owner: "planner", Output: "PLAN.md"},
				{Name: "implement", Owner: "developer", Output: "IMPL.md"},
				{Name: "review", Owner: "reviewer", Output: "REVIEW.md"},
			},
		},
	}
}

func TestRoutePositional(t *testing.T) {
	tm := positionalTeam()
	cases := []struct {
		name      string
		phase     string
		decision  Decision
		action    Action
		nextPhase string
		nextAgent string
	}{
		{"approve advances", "plan", Approved, Assign, "implement", "developer"},
		{"approve mid", "implement", Approved, Assign, "review", "reviewer"},
		{"approve final completes", "review", Approved, Complete, "", ""},
		{"reject returns", "review", Rejected, Assign, "implement", "developer"},
		{"reject mid", "implement", Rejected, Assign, "plan", "planner"},
		{"reject initial escalates", "plan", Rejected, Escalate, "", ""},
		{"case insensitive phase", "IMPLEMENT", Approved, Assign, "review", "reviewer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Route(tm, tc.phase, tc.decision)
			if res.Action != tc.action {
				t.Fatalf("action = %q, want %q (reason: %s)", res.Action, tc.action, res.Reason)
			}
			if res.NextPhase != tc.nextPhase || res.NextAgent != tc.nextAgent {
				t.Fatalf("next = %q/%q, want %q/%q",
					res.NextPhase, res.NextAgent, tc.nextPhase, tc.nextAgent)
			}
		})
	}
}

func TestResultWireFormat(t *testing.T) {
	// Decisions arrive as the literal argv strings and transitions
	// serialize with action "assign".
	res := Route(positionalTeam(), "plan", Decision("approved"))
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"action":"assign"`) {
		t.Fatalf("serialized result = %s", raw)
	}
	if !strings.Contains(string(raw), `"next_phase":"implement"`) {
		t.Fatalf("serialized result = %s", raw)
	}

	if res := Route(positionalTeam(), "review", Decision("rejected")); res.Action != Assign {
		t.Fatalf("literal rejected decision: %+v", res)
	}
}

func TestRouteUnknownPhase(t *testing.T) {
	res := Route(positionalTeam(), "ship", Approved)
	if res.Action != Escalate {
		t.Fatalf("action = %q", res.Action)
	}
	for _, name := range []string{"plan", "implement", "review"} {
		if !strings.Contains(res.Reason, name) {
			t.Fatalf("reason %q does not list phase %q", res.Reason, name)
		}
	}
}

func TestRouteUnknownDecision(t *testing.T) {
	res := Route(positionalTeam(), "plan", Decision("maybe"))
	if res.Action != Escalate || !strings.Contains(res.Reason, "maybe") {
		t.Fatalf("res = %+v", res)
	}
}

func TestRouteNilTeam(t *testing.T) {
	if res := Route(nil, "plan", Approved); res.Action != Escalate {
		t.Fatalf("res = %+v", res)
	}
}

func TestRouteLegacyEdges(t *testing.T) {
	tm := &team.Team{
		Name:          "legacy",
		SchemaVersion: 1,
		Workflow: team.Workflow{
			Phases: []team.Phase{
				{Name: "draft", Owner: "writer", Next: "check"},
				{Name: "check", Owner: "editor", OnReject: "draft"},
			},
		},
	}

	res := Route(tm, "draft", Approved)
	if res.Action != Assign || res.NextPhase != "check" || res.NextAgent != "editor" {
		t.Fatalf("approve edge: %+v", res)
	}

	res = Route(tm, "check", Rejected)
	if res.Action != Assign || res.NextPhase != "draft" || res.NextAgent != "writer" {
		t.Fatalf("reject edge: %+v", res)
	}

	// check has no next edge: approval completes the workflow.
	if res := Route(tm, "check", Approved); res.Action != Complete {
		t.Fatalf("approve without edge: %+v", res)
	}

	// draft has no on_reject edge: rejection must escalate.
	if res := Route(tm, "draft", Rejected); res.Action != Escalate {
		t.Fatalf("reject without edge: %+v", res)
	}
}

func TestRouteLegacyWithoutEdgesEscalates(t *testing.T) {
	tm := positionalTeam()
	tm.SchemaVersion = 1
	if res := Route(tm, "plan", Approved); res.Action != Escalate {
		t.Fatalf("res = %+v", res)
	}
}

func TestRouteIsPure(t *testing.T) {
	tm := positionalTeam()
	before := len(tm.Workflow.Phases)
	_ = Route(tm, "implement", Rejected)
	_ = Route(tm, "missing", Approved)
	if len(tm.Workflow.Phases) != before {
		t.Fatal("Route mutated the team")
	}
}
