// Package router computes workflow transitions. Routing is a pure function
// of the team declaration, the current phase, and a verdict; it performs no
// I/O and mutates nothing.
package router

import (
	"fmt"
	"strings"

	"github.com/nolanhq/nolan/internal/team"
)

// Decision is the verdict on a completed phase.
type Decision string

const (
	Approved Decision = "approved"
	Rejected Decision = "rejected"
)

// Action is the routing outcome.
type Action string

const (
	// Assign hands the project to NextAgent for NextPhase.
	Assign Action = "assign"
	// Complete ends the workflow; no further phases exist.
	Complete Action = "complete"
	// Escalate means no automatic transition is possible and a human must
	// intervene.
	Escalate Action = "escalate"
)

// Result describes the transition to perform.
type Result struct {
	Action    Action `json:"action"`
	Reason    string `json:"reason"`
	NextPhase string `json:"next_phase,omitempty"`
	NextAgent string `json:"next_agent,omitempty"`
}

func escalate(format string, args ...any) Result {
	return Result{Action: Escalate, Reason: fmt.Sprintf(format, args...)}
}

// Route resolves the transition out of the named phase.
//
// Schema version 2 derives routing from phase order: approval advances to
// the next phase, rejection returns to the previous one, and there is
// nothing before phase 0 to reject to. Older schemas route along explicit
// next/on_reject edges when present and escalate when they are not.
func Route(t *team.Team, phase string, d Decision) Result {
	if t == nil {
		return escalate("no team configuration")
	}
	if d != Approved && d != Rejected {
		return escalate("unknown decision %q (expected approved or rejected)", string(d))
	}

	p, idx := t.Phase(phase)
	if p == nil {
		return escalate("unknown phase %q (available: %s)", phase, strings.Join(phaseNames(t), ", "))
	}

	if t.SchemaVersion >= 2 {
		return routePositional(t, p, idx, d)
	}
	if p.Next != "" || p.OnReject != "" {
		return routeEdges(t, p, d)
	}
	return escalate("team %q uses schema version %d without routing edges; cannot route from %q",
		t.Name, t.SchemaVersion, p.Name)
}

func routePositional(t *team.Team, p *team.Phase, idx int, d Decision) Result {
	phases := t.Workflow.Phases
	switch d {
	case Approved:
		if idx == len(phases)-1 {
			return Result{Action: Complete, Reason: fmt.Sprintf("%q is the final phase", p.Name)}
		}
		next := phases[idx+1]
		return Result{
			Action:    Assign,
			Reason:    fmt.Sprintf("%q approved", p.Name),
			NextPhase: next.Name,
			NextAgent: next.Owner,
		}
	default: // Rejected
		if idx == 0 {
			return escalate("%q is the initial phase; rejection has no earlier phase to return to", p.Name)
		}
		prev := phases[idx-1]
		return Result{
			Action:    Assign,
			Reason:    fmt.Sprintf("%q rejected", p.Name),
			NextPhase: prev.Name,
			NextAgent: prev.Owner,
		}
	}
}

func routeEdges(t *team.Team, p *team.Phase, d Decision) Result {
	var edge string
	if d == Approved {
		edge = p.Next
	} else {
		edge = p.OnReject
	}
	if edge == "" {
		if d == Approved {
			return Result{Action: Complete, Reason: fmt.Sprintf("%q has no next phase", p.Name)}
		}
		return escalate("%q has no on_reject edge", p.Name)
	}
	target, _ := t.Phase(edge)
	if target == nil {
		return escalate("%q routes to unknown phase %q", p.Name, edge)
	}
	verb := "approved"
	if d == Rejected {
		verb = "rejected"
	}
	return Result{
		Action:    Assign,
		Reason:    fmt.Sprintf("%q %s", p.Name, verb),
		NextPhase: target.Name,
		NextAgent: target.Owner,
	}
}

func phaseNames(t *team.Team) []string {
	names := make([]string, len(t.Workflow.Phases))
	for i, p := range t.Workflow.Phases {
		names[i] = p.Name
	}
	return names
}
