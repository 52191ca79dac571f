package team

import (
	"fmt"
	"regexp"
)

// agentNameRe constrains agent names to lowercase identifiers.
var agentNameRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ContextOutput is produced before phase 0 and may always be required.
const ContextOutput = "context.md"

// Validate checks a team declaration for semantic correctness and returns
// every violation found. An empty slice means the team is valid.
func Validate(t *Team) []*ConfigError {
	var errs []*ConfigError
	add := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if t.Name == "" {
		add("team.name", "missing required field")
	}
	if len(t.Agents) == 0 {
		add("team.agents", "missing required field")
	}
	if len(t.Workflow.Phases) == 0 {
		add("team.workflow.phases", "missing required field")
	}

	agents := make(map[string]*Agent, len(t.Agents))
	seen := make(map[string]bool, len(t.Agents))
	for i := range t.Agents {
		a := &t.Agents[i]
		if a.Name == "" {
			add("agents", "agent with missing name field")
			continue
		}
		if seen[a.Name] {
			add("agents", "duplicate agent name: %s", a.Name)
		}
		seen[a.Name] = true
		agents[a.Name] = a

		if !agentNameRe.MatchString(a.Name) {
			add("agents", "invalid agent name %q: must match %s", a.Name, agentNameRe.String())
		}
		if a.FilePermissions == "" {
			add("agents."+a.Name, "missing required field 'file_permissions'")
		} else if a.FilePermissions != PermissionRestricted &&
			a.FilePermissions != PermissionPermissive &&
			a.FilePermissions != PermissionNoProjects {
			add("agents."+a.Name, "file_permissions must be restricted|permissive|no_projects")
		}
		if a.WorkflowParticipant == nil {
			add("agents."+a.Name, "missing required field 'workflow_participant'")
		}
		if a.FilePermissions == PermissionRestricted && a.OutputFile == "" {
			add("agents."+a.Name, "restricted permissions but no output_file")
		}
		if a.FilePermissions == PermissionNoProjects && a.OutputFile != "" {
			add("agents."+a.Name, "no_projects permissions must have output_file: null")
		}
		if a.MultiInstance {
			if a.MaxInstances == 0 {
				add("agents."+a.Name, "multi_instance requires max_instances")
			}
			if len(a.InstanceNames) == 0 {
				add("agents."+a.Name, "multi_instance requires instance_names")
			} else if len(a.InstanceNames) < a.MaxInstances {
				add("agents."+a.Name, "instance_names has %d names but max_instances is %d",
					len(a.InstanceNames), a.MaxInstances)
			}
		}
	}

	// Duplicate declared output filenames across agents.
	outputs := make(map[string]string, len(t.Agents))
	for i := range t.Agents {
		a := &t.Agents[i]
		if a.OutputFile == "" {
			continue
		}
		if prev, dup := outputs[a.OutputFile]; dup {
			add("agents", "duplicate output file %q declared by %s and %s", a.OutputFile, prev, a.Name)
		} else {
			outputs[a.OutputFile] = a.Name
		}
	}

	noteTaker := t.NoteTaker()
	if noteTaker != "" {
		nt, ok := agents[noteTaker]
		if !ok {
			add("workflow.note_taker", "agent %q not found", noteTaker)
		} else if nt.IsWorkflowParticipant() {
			add("workflow.note_taker", "note-taker %q must have workflow_participant: false", noteTaker)
		}
	}

	// Phase ownership and predecessor ordering. context.md is available
	// before phase 0.
	produced := map[string]bool{ContextOutput: true}
	for i := range t.Workflow.Phases {
		p := &t.Workflow.Phases[i]
		name := p.Name
		if name == "" {
			name = "<unnamed>"
			add("workflow.phases", "phase %d: missing required field 'name'", i)
		}
		if p.Owner == "" {
			add("workflow.phases."+name, "missing required field 'owner'")
		} else if _, ok := agents[p.Owner]; !ok {
			add("workflow.phases."+name, "owner %q not found in agents", p.Owner)
		}
		if p.Output == "" {
			add("workflow.phases."+name, "missing required field 'output'")
		}
		for _, req := range p.Requires {
			if !produced[req] {
				add("workflow.phases."+name, "requires %q before it is produced", req)
			}
		}
		if p.Output != "" {
			produced[p.Output] = true
		}

		// Legacy edges must reference known phases.
		for _, edge := range []string{p.Next, p.OnReject} {
			if edge == "" {
				continue
			}
			if target, _ := t.Phase(edge); target == nil {
				add("workflow.phases."+name, "edge to unknown phase %q", edge)
			}
		}
	}

	return errs
}
