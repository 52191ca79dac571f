package stopgate

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"
)

// assignTimeout bounds one assignment script run. Starting an agent session
// should take seconds; anything longer means the script is stuck.
const assignTimeout = 30 * time.Second

// ScriptAssigner starts agents through the installation's assign script.
type ScriptAssigner struct {
	Root string
}

// Assign runs <root>/scripts/assign.sh <project> <agent> <task>.
func (s ScriptAssigner) Assign(project, agent, task string) error {
	script := filepath.Join(s.Root, "scripts", "assign.sh")
	ctx, cancel := context.WithTimeout(context.Background(), assignTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, script, project, agent, task).CombinedOutput()
	if err != nil {
		return fmt.Errorf("assign.sh %s %s: %w (%s)", project, agent, err, string(out))
	}
	return nil
}

// NullAssigner ignores assignments. Used where no session manager exists.
type NullAssigner struct{}

func (NullAssigner) Assign(project, agent, task string) error { return nil }
