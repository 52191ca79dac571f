// Package team loads and validates declarative workflow configurations.
// A team binds named agents to an ordered sequence of phases; the stop-gate
// and the router consume the loaded Team as an immutable value.
package team

import (
	"strings"
	"time"
)

// Permission classifies an agent's project-file access.
type Permission string

const (
	PermissionRestricted Permission = "restricted"
	PermissionPermissive Permission = "permissive"
	PermissionNoProjects Permission = "no_projects"
)

// Default workflow timeouts, overridable per team.
const (
	DefaultAckTimeout      = 60 * time.Second
	DefaultAckPollInterval = 6 * time.Second
	DefaultCoordinatorWait = 60 * time.Minute
)

// Agent describes one named agent in a team.
type Agent struct {
	Name             string     `yaml:"name"`
	OutputFile       string     `yaml:"output_file"`
	RequiredSections []string   `yaml:"required_sections"`
	FilePermissions  Permission `yaml:"file_permissions"`

	// WorkflowParticipant is a pointer so the validator can distinguish
	// "explicitly false" (note-taker, support roles) from "absent".
	WorkflowParticipant *bool `yaml:"workflow_participant"`

	MultiInstance bool     `yaml:"multi_instance"`
	MaxInstances  int      `yaml:"max_instances"`
	InstanceNames []string `yaml:"instance_names"`
}

// IsWorkflowParticipant reports whether the agent takes part in the phase
// workflow. Absent defaults to true.
func (a *Agent) IsWorkflowParticipant() bool {
	return a.WorkflowParticipant == nil || *a.WorkflowParticipant
}

// Phase is one ordered step in a workflow.
type Phase struct {
	Name     string   `yaml:"name"`
	Owner    string   `yaml:"owner"`
	Output   string   `yaml:"output"`
	Requires []string `yaml:"requires"`

	// Legacy (schema < 2) explicit edges. Schema >= 2 derives routing from
	// array position instead.
	Next     string `yaml:"next"`
	OnReject string `yaml:"on_reject"`
}

// Timeouts holds workflow timing knobs. Zero values mean "use default".
type Timeouts struct {
	AckTimeoutSeconds      int `yaml:"ack_timeout_seconds"`
	AckPollInterval        int `yaml:"ack_poll_interval"`
	CoordinatorWaitMinutes int `yaml:"coordinator_wait_minutes"`
}

// AckTimeout returns the configured ack wait budget.
func (t Timeouts) AckTimeout() time.Duration {
	if t.AckTimeoutSeconds > 0 {
		return time.Duration(t.AckTimeoutSeconds) * time.Second
	}
	return DefaultAckTimeout
}

// AckPoll returns the configured ack poll interval.
func (t Timeouts) AckPoll() time.Duration {
	if t.AckPollInterval > 0 {
		return time.Duration(t.AckPollInterval) * time.Second
	}
	return DefaultAckPollInterval
}

// CoordinatorWait returns how long a note-taker session may sit idle before
// its supervisor recycles it.
func (t Timeouts) CoordinatorWait() time.Duration {
	if t.CoordinatorWaitMinutes > 0 {
		return time.Duration(t.CoordinatorWaitMinutes) * time.Minute
	}
	return DefaultCoordinatorWait
}

// Workflow is the routing portion of a team config.
type Workflow struct {
	// NoteTakerName and Coordinator are synonyms; NoteTakerName wins when
	// both are set. Coordinator is the legacy spelling.
	NoteTakerName string `yaml:"note_taker"`
	Coordinator   string `yaml:"coordinator"`

	Phases   []Phase  `yaml:"phases"`
	Timeouts Timeouts `yaml:"timeouts"`
}

// Team is an immutable workflow declaration loaded from <team>.yaml.
type Team struct {
	Name          string   `yaml:"name"`
	SchemaVersion int      `yaml:"schema_version"`
	Agents        []Agent  `yaml:"agents"`
	Workflow      Workflow `yaml:"workflow"`
}

// configFile is the on-disk document shape: everything under a `team:` key.
type configFile struct {
	Team *Team `yaml:"team"`
}

// Agent returns the agent with the given name, or nil.
func (t *Team) Agent(name string) *Agent {
	for i := range t.Agents {
		if t.Agents[i].Name == name {
			return &t.Agents[i]
		}
	}
	return nil
}

// NoteTaker returns the note-taker agent name, falling back to the legacy
// coordinator field. Empty if neither is declared.
func (t *Team) NoteTaker() string {
	if t.Workflow.NoteTakerName != "" {
		return t.Workflow.NoteTakerName
	}
	return t.Workflow.Coordinator
}

// Phase returns the phase with the given name (case-insensitive) and its
// index, or (nil, -1).
func (t *Team) Phase(name string) (*Phase, int) {
	for i := range t.Workflow.Phases {
		if strings.EqualFold(t.Workflow.Phases[i].Name, name) {
			return &t.Workflow.Phases[i], i
		}
	}
	return nil, -1
}

// PhaseForOwner returns the first phase owned by the agent, or nil.
func (t *Team) PhaseForOwner(agent string) *Phase {
	for i := range t.Workflow.Phases {
		if t.Workflow.Phases[i].Owner == agent {
			return &t.Workflow.Phases[i]
		}
	}
	return nil
}

// NextAgentAfter returns the agent owning the phase that follows the given
// agent's phase. Legacy `next` edges take precedence when present; otherwise
// the successor is positional. Empty when the workflow is complete or the
// agent owns no phase.
func (t *Team) NextAgentAfter(agent string) string {
	for i := range t.Workflow.Phases {
		p := &t.Workflow.Phases[i]
		if p.Owner != agent {
			continue
		}
		if p.Next != "" {
			if next, _ := t.Phase(p.Next); next != nil {
				return next.Owner
			}
			return ""
		}
		if i+1 < len(t.Workflow.Phases) {
			return t.Workflow.Phases[i+1].Owner
		}
		return ""
	}
	return ""
}

// NoteTakerOutputFile resolves the note-taker's output filename, or "" when
// no note-taker is declared or it has no output.
func (t *Team) NoteTakerOutputFile() string {
	name := t.NoteTaker()
	if name == "" {
		return ""
	}
	if a := t.Agent(name); a != nil {
		return a.OutputFile
	}
	return ""
}
