// Package nolanenv resolves filesystem roots and the active-project binding
// from the process environment. Resolution is strictly deterministic:
// ambiguous state is an error, never a guess.
package nolanenv

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nolanhq/nolan/internal/lockfile"
)

// Environment keys consumed by the resolver, in priority order where
// applicable.
const (
	EnvDocsPath    = "DOCS_PATH"
	EnvProjectsDir = "PROJECTS_DIR"
	EnvAgentDir    = "AGENT_DIR"
	EnvNolanRoot   = "NOLAN_ROOT"
	EnvAgentName   = "AGENT_NAME"
	EnvTeamName    = "TEAM_NAME"
	EnvForceStop   = "NOLAN_FORCE_STOP"
)

// bindingLockTimeout bounds the wait for the per-agent binding lock.
const bindingLockTimeout = 2 * time.Second

// ContextError reports an unresolvable project or identity context. The
// caller decides whether it blocks the stop or is a warn-and-allow.
type ContextError struct {
	Message string
}

func (e *ContextError) Error() string { return e.Message }

// BindEnv registers the resolver's environment keys on a viper instance.
func BindEnv(v *viper.Viper) {
	for _, key := range []string{
		EnvDocsPath, EnvProjectsDir, EnvAgentDir,
		EnvNolanRoot, EnvAgentName, EnvTeamName, EnvForceStop,
	} {
		_ = v.BindEnv(key, key)
	}
}

// Resolver derives paths and identity from a viper-backed environment.
type Resolver struct {
	v      *viper.Viper
	logger *log.Logger
}

// New creates a resolver. The viper instance must have the environment keys
// bound (see BindEnv); the logger receives deprecation warnings.
func New(v *viper.Viper, logger *log.Logger) *Resolver {
	return &Resolver{v: v, logger: logger}
}

// AgentName returns the lowercased agent identity, or "".
func (r *Resolver) AgentName() string {
	return strings.ToLower(strings.TrimSpace(r.v.GetString(EnvAgentName)))
}

// TeamName returns the configured team name, defaulting to "default".
func (r *Resolver) TeamName() string {
	if name := strings.TrimSpace(r.v.GetString(EnvTeamName)); name != "" {
		return name
	}
	return "default"
}

// ForceStop reports whether the emergency override flag is set.
func (r *Resolver) ForceStop() bool {
	switch strings.ToLower(strings.TrimSpace(r.v.GetString(EnvForceStop))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// NolanRoot returns the installation root, derived from NOLAN_ROOT or
// AGENT_DIR (three levels above the agent directory).
func (r *Resolver) NolanRoot() (string, error) {
	if root := r.v.GetString(EnvNolanRoot); root != "" {
		return root, nil
	}
	if agentDir := r.v.GetString(EnvAgentDir); agentDir != "" {
		return filepath.Dir(filepath.Dir(filepath.Dir(agentDir))), nil
	}
	return "", &ContextError{Message: "cannot determine nolan root (set NOLAN_ROOT or AGENT_DIR)"}
}

// ProjectsRoot returns the directory that holds project directories.
func (r *Resolver) ProjectsRoot() (string, error) {
	if dir := r.v.GetString(EnvProjectsDir); dir != "" {
		return dir, nil
	}
	if agentDir := r.v.GetString(EnvAgentDir); agentDir != "" {
		repoRoot := filepath.Dir(filepath.Dir(filepath.Dir(agentDir)))
		return filepath.Join(repoRoot, "projects"), nil
	}
	if root := r.v.GetString(EnvNolanRoot); root != "" {
		return filepath.Join(root, "projects"), nil
	}
	return "", &ContextError{Message: "cannot determine projects directory (set PROJECTS_DIR, AGENT_DIR, or NOLAN_ROOT)"}
}

// StateRoot returns the shared state directory (<nolan_root>/.state).
func (r *Resolver) StateRoot() (string, error) {
	root, err := r.NolanRoot()
	if err != nil {
		return "", &ContextError{Message: "cannot determine state directory (set NOLAN_ROOT)"}
	}
	return filepath.Join(root, ".state"), nil
}

// bindingCandidates returns the on-disk filenames tried for a binding, in
// preference order. The .txt form is what the assignment tool writes; the
// bare form is accepted for compatibility.
func bindingCandidates(dir, agent string) []string {
	return []string{
		filepath.Join(dir, "active-"+agent+".txt"),
		filepath.Join(dir, "active-"+agent),
	}
}

// readBinding reads the project name from the first existing binding file
// under dir, holding the per-agent lock. Returns "" when no binding exists.
func (r *Resolver) readBinding(dir, agent string) (string, error) {
	paths := bindingCandidates(dir, agent)
	exists := false
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			exists = true
			break
		}
	}
	if !exists {
		return "", nil
	}

	lock, err := lockfile.Acquire(filepath.Join(dir, ".lock-"+agent), bindingLockTimeout)
	if err != nil {
		return "", fmt.Errorf("reading binding for %s: %w", agent, err)
	}
	defer lock.Release()

	for _, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if name := strings.TrimSpace(string(raw)); name != "" {
			return name, nil
		}
	}
	return "", nil
}

// ActiveProject resolves the directory of the agent's active project.
//
// Order: DOCS_PATH, then the team-namespaced binding, then the legacy
// unnamespaced binding (with a deprecation warning). There is deliberately
// no "most recently modified" fallback; with no binding the result is a
// ContextError explaining what to set.
func (r *Resolver) ActiveProject() (string, error) {
	if docs := r.v.GetString(EnvDocsPath); docs != "" {
		if info, err := os.Stat(docs); err == nil && info.IsDir() {
			return docs, nil
		}
		return "", &ContextError{Message: fmt.Sprintf("DOCS_PATH set to %q but directory does not exist", docs)}
	}

	projectsRoot, err := r.ProjectsRoot()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(projectsRoot); err != nil {
		return "", &ContextError{Message: fmt.Sprintf("projects directory does not exist: %s", projectsRoot)}
	}

	agent := r.AgentName()
	teamName := r.TeamName()

	stateRoot, err := r.StateRoot()
	if err != nil {
		return "", err
	}

	if agent != "" {
		name, err := r.readBinding(filepath.Join(stateRoot, teamName), agent)
		if err != nil {
			return "", &ContextError{Message: fmt.Sprintf("failed to read binding: %v", err)}
		}
		if name != "" {
			projectPath := filepath.Join(projectsRoot, name)
			if _, err := os.Stat(projectPath); err == nil {
				return projectPath, nil
			}
			return "", &ContextError{Message: fmt.Sprintf("active project %q from binding does not exist", name)}
		}

		// Legacy unnamespaced binding: honored but deprecated.
		name, err = r.readBinding(stateRoot, agent)
		if err == nil && name != "" {
			r.logger.Printf("WARNING: using legacy binding %s/active-%s. Migrate to team-namespaced bindings.", stateRoot, agent)
			projectPath := filepath.Join(projectsRoot, name)
			if _, err := os.Stat(projectPath); err == nil {
				return projectPath, nil
			}
		}
	}

	return "", &ContextError{Message: fmt.Sprintf(
		"no active project found for agent %q in team %q. Set DOCS_PATH or create a binding at %s/%s/active-%s.txt",
		agent, teamName, stateRoot, teamName, agent)}
}

// ClearBinding removes both the namespaced and legacy binding files for an
// agent. Failures are logged, not returned; a leftover binding only causes
// a redundant handoff check on the next stop.
func (r *Resolver) ClearBinding(teamName, agent string) {
	if agent == "" {
		return
	}
	stateRoot, err := r.StateRoot()
	if err != nil {
		return
	}
	for _, dir := range []string{filepath.Join(stateRoot, teamName), stateRoot} {
		for _, p := range bindingCandidates(dir, agent) {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := os.Remove(p); err != nil {
				r.logger.Printf("WARNING: failed to clear binding %s: %v", p, err)
			} else {
				r.logger.Printf("Cleared binding: %s", p)
			}
		}
	}
}
