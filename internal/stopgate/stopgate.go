// Package stopgate enforces the handoff protocol when an agent attempts to
// stop. The controller converts the asynchronous file queue into a blocking
// call: an agent may not stop until its work is handed off and acknowledged,
// or a timeout says the receiver is not coming.
package stopgate

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/nolanhq/nolan/internal/handoff"
	"github.com/nolanhq/nolan/internal/incident"
	"github.com/nolanhq/nolan/internal/nolanenv"
	"github.com/nolanhq/nolan/internal/notify"
	"github.com/nolanhq/nolan/internal/router"
	"github.com/nolanhq/nolan/internal/team"
)

// Verdict is the decision printed to stdout for the calling hook runner.
type Verdict struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

func approve() Verdict { return Verdict{Decision: "approve"} }

func block(format string, args ...any) Verdict {
	return Verdict{Decision: "block", Reason: fmt.Sprintf(format, args...)}
}

// payload is the hook input read from stdin.
type payload struct {
	SessionID      string `json:"session_id"`
	CWD            string `json:"cwd"`
	StopHookActive bool   `json:"stop_hook_active"`
}

// Assignment-timestamp extraction from the notes file. The date-only form
// predates time-of-day stamping and normalizes to midnight.
var (
	assignedRe     = regexp.MustCompile(`\*\*Assigned\*\*:\s*(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2})`)
	assignedDateRe = regexp.MustCompile(`\*\*Assigned\*\*:\s*(\d{4}-\d{2}-\d{2})`)
	rejectedRe     = regexp.MustCompile(`(?i)<!--\s*REJECTED:\s*(.+?)\s*-->`)
	inProgressRe   = regexp.MustCompile(`(?i)STATUS:\s*IN_PROGRESS`)
)

// Assigner starts the next agent on a project.
type Assigner interface {
	Assign(project, agent, task string) error
}

// Controller runs the stop-gate decision procedure. All collaborators are
// injectable; zero-value fields get working defaults from Run.
type Controller struct {
	Env      *nolanenv.Resolver
	Teams    *team.Cache
	Notifier notify.Notifier
	Assigner Assigner
	Desktop  func(title, message string)
	Logger   *log.Logger
	Now      func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Controller) desktop(title, message string) {
	if c.Desktop != nil {
		c.Desktop(title, message)
	}
}

// Run reads the hook payload and decides whether the agent may stop. It
// never panics outward and never returns a non-verdict: infrastructure
// failures that leave nothing to validate degrade to approve, while
// failures that would lose a handoff block.
func (c *Controller) Run(stdin io.Reader) Verdict {
	if c.Env.ForceStop() {
		c.Logger.Printf("NOLAN_FORCE_STOP set; skipping handoff validation")
		return approve()
	}

	var in payload
	if err := json.NewDecoder(stdin).Decode(&in); err != nil {
		c.Logger.Printf("unreadable hook payload (%v); allowing stop", err)
		return approve()
	}
	if in.StopHookActive {
		// Already inside a stop evaluation; re-entering would loop.
		return approve()
	}

	// With no project context there is nothing to validate, whoever we are.
	projectPath, err := c.Env.ActiveProject()
	if err != nil {
		c.Logger.Printf("no active project (%v); allowing stop", err)
		return approve()
	}
	project := filepath.Base(projectPath)

	nolanRoot, err := c.Env.NolanRoot()
	if err != nil {
		c.Logger.Printf("cannot resolve root (%v); allowing stop", err)
		return approve()
	}
	stateRoot, _ := c.Env.StateRoot()

	t, err := c.Teams.LoadForProject(projectPath, nolanRoot)
	if err != nil {
		return block("Cannot validate handoff: %v", err)
	}

	agent := c.Env.AgentName()
	if agent == "" {
		agent = inferAgent(t, in.CWD)
	}
	if agent == "" {
		return block("Cannot determine agent identity. Set AGENT_NAME environment variable.")
	}

	baseAgent := baseAgentName(agent)
	decl := t.Agent(baseAgent)
	if decl == nil {
		c.Logger.Printf("agent %q not declared in team %q; allowing stop", agent, t.Name)
		return approve()
	}
	if decl.MultiInstance {
		// Instance lifecycle is managed by the pool owner, not the gate.
		return approve()
	}

	if v, blocked := c.checkOutput(projectPath, decl); blocked {
		return v
	}

	queue := handoff.NewQueue(stateRoot)

	if baseAgent == t.NoteTaker() {
		acked, failed, err := queue.AckAll()
		if err != nil {
			c.Logger.Printf("acknowledgement sweep failed: %v", err)
		} else {
			c.Logger.Printf("acknowledged %d handoff(s), %d failed", acked, failed)
		}
		if inProgressRe.MatchString(c.readNotes(projectPath, t)) {
			return block("Work marked as IN_PROGRESS in %s. Update status before stopping.", c.notesName(t))
		}
		return approve()
	}
	if !decl.IsWorkflowParticipant() {
		return approve()
	}

	notesContent := c.readNotes(projectPath, t)
	if inProgressRe.MatchString(notesContent) {
		return block("Work marked as IN_PROGRESS in %s. Update status before stopping.", c.notesName(t))
	}

	assignmentTS := assignmentTimestamp(notesContent)
	decision, reason := c.phaseDecision(t, baseAgent, projectPath)

	// An ack timeout is not fatal, but a handoff that could not be written
	// must block: approving here would lose the work transfer.
	if _, err := c.ensureHandoff(queue, t, baseAgent, project, assignmentTS, decision); err != nil {
		return block("%v", err)
	}

	c.autoProgress(t, baseAgent, projectPath, project, stateRoot, decision, reason)
	c.Env.ClearBinding(t.Name, baseAgent)
	return approve()
}

// checkOutput verifies the agent's declared output file and its required
// sections. Sections are matched as raw substrings, heading markup
// included, exactly as they appear in the team config.
func (c *Controller) checkOutput(projectPath string, decl *team.Agent) (Verdict, bool) {
	if decl.OutputFile == "" {
		return Verdict{}, false
	}
	raw, err := os.ReadFile(filepath.Join(projectPath, decl.OutputFile))
	if err != nil {
		return block("Output file %s not found. Complete your work before stopping.", decl.OutputFile), true
	}
	content := string(raw)
	var missing []string
	for _, section := range decl.RequiredSections {
		if !strings.Contains(content, section) {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return block("Missing sections in %s: %s", decl.OutputFile, strings.Join(missing, ", ")), true
	}
	return Verdict{}, false
}

// phaseDecision derives the verdict on the agent's phase from its output: a
// rejection marker means the preceding work was rejected, with the marker
// text as the reason.
func (c *Controller) phaseDecision(t *team.Team, agent, projectPath string) (router.Decision, string) {
	phase := t.PhaseForOwner(agent)
	if phase == nil || phase.Output == "" {
		return router.Approved, ""
	}
	raw, err := os.ReadFile(filepath.Join(projectPath, phase.Output))
	if err != nil {
		return router.Approved, ""
	}
	if m := rejectedRe.FindSubmatch(raw); m != nil {
		return router.Rejected, string(m[1])
	}
	return router.Approved, ""
}

// ensureHandoff guarantees a fresh handoff for this stop exists and is
// acknowledged. Reports whether acknowledgement was observed; a non-nil
// error means the handoff could not be recorded at all.
//
// A fresh processed record means a previous stop attempt already completed
// the protocol. A fresh pending record means the enqueue happened but the
// ack did not; only the wait is repeated. Otherwise a new handoff is
// enqueued before the wake is sent, so a receiver woken early still finds
// the file.
func (c *Controller) ensureHandoff(q *handoff.Queue, t *team.Team, agent, project, assignmentTS string, decision router.Decision) (bool, error) {
	if rec := findFresh(q.ProcessedForAgent(agent), project, assignmentTS); rec != nil {
		if pendingPath, _ := q.Locate(rec.ID); pendingPath == "" {
			c.Logger.Printf("handoff %s already acknowledged", rec.ID)
			return true, nil
		}
		// Present in both directories: the acknowledgement has not finished.
		c.Logger.Printf("handoff %s mid-acknowledgement; waiting", rec.ID)
		return c.waitForAck(q, rec.ID, t.Workflow.Timeouts), nil
	}
	if rec := findFresh(q.PendingForAgent(agent), project, assignmentTS); rec != nil {
		c.Logger.Printf("handoff %s pending; waiting for acknowledgement", rec.ID)
		return c.waitForAck(q, rec.ID, t.Workflow.Timeouts), nil
	}

	toAgent := t.NextAgentAfter(agent)
	if toAgent == "" {
		toAgent = t.NoteTaker()
	}
	if toAgent == "" {
		toAgent = "unknown"
		c.Logger.Printf("no successor or note-taker for %s; handing off to %q", agent, toAgent)
	}

	status := handoff.StatusComplete
	if decision == router.Rejected {
		status = handoff.StatusRejected
	}
	now := c.now()
	rec := &handoff.Record{
		ID:        handoff.NewID(agent, now),
		Timestamp: now.Format(handoff.TimestampLayout),
		FromAgent: agent,
		ToAgent:   toAgent,
		Project:   project,
		Team:      t.Name,
		Status:    status,
	}
	if _, err := q.Enqueue(rec, now); err != nil {
		return false, err
	}
	c.Logger.Printf("created handoff %s for %s", rec.ID, toAgent)

	if err := c.Notifier.Notify(notify.Wake{
		FromAgent: agent,
		ToAgent:   toAgent,
		Project:   project,
		Team:      t.Name,
		HandoffID: rec.ID,
	}); err != nil {
		c.Logger.Printf("wake not delivered: %v", err)
	}

	return c.waitForAck(q, rec.ID, t.Workflow.Timeouts), nil
}

// findFresh returns the first parseable record for the project that
// postdates the current assignment. Paths arrive newest first.
func findFresh(paths []string, project, assignmentTS string) *handoff.Record {
	for _, p := range paths {
		rec, err := handoff.Read(p)
		if err != nil || rec.Project != project {
			continue
		}
		if handoff.Fresh(rec, assignmentTS) {
			return rec
		}
	}
	return nil
}

// waitForAck blocks until the handoff has fully moved to processed/ or the
// timeout elapses. Acknowledged means present in processed/ AND absent from
// pending/; a half-moved record is still in flight. Directory events
// trigger an immediate re-check; the poll ticker is the fallback when the
// watcher cannot be established.
func (c *Controller) waitForAck(q *handoff.Queue, id string, timeouts team.Timeouts) bool {
	deadline := time.NewTimer(timeouts.AckTimeout())
	defer deadline.Stop()
	poll := time.NewTicker(timeouts.AckPoll())
	defer poll.Stop()

	var events chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		_ = os.MkdirAll(q.ProcessedDir(), 0o755)
		if err := watcher.Add(q.ProcessedDir()); err == nil {
			events = make(chan fsnotify.Event, 1)
			go func() {
				for ev := range watcher.Events {
					select {
					case events <- ev:
					default:
					}
				}
			}()
		}
	}

	for {
		pending, processed := q.Locate(id)
		switch {
		case processed != "" && pending == "":
			c.Logger.Printf("handoff %s acknowledged", id)
			return true
		case processed == "" && pending == "":
			c.Logger.Printf("WARNING: handoff %s vanished from the queue; treating as acknowledged", id)
			return true
		}
		select {
		case <-deadline.C:
			c.Logger.Printf("Handoff %s ACK timeout after %ds", id, int(timeouts.AckTimeout().Seconds()))
			return false
		case <-poll.C:
		case <-events:
		}
	}
}

// autoProgress advances the workflow after a completed handoff: it records
// the phase verdict, routes to the next phase, and starts the next agent.
// Only positional-routing teams auto-progress; older schemas rely on the
// receiving agent to route manually.
func (c *Controller) autoProgress(t *team.Team, agent, projectPath, project, stateRoot string, decision router.Decision, reason string) {
	if t.SchemaVersion < 2 {
		return
	}
	phase := t.PhaseForOwner(agent)
	if phase == nil {
		return
	}
	c.writePhaseStatus(projectPath, phase, decision, reason)

	res := router.Route(t, phase.Name, decision)
	switch res.Action {
	case router.Assign:
		task := fmt.Sprintf("Continue %s - %s", project, res.NextPhase)
		if err := c.Assigner.Assign(project, res.NextAgent, task); err != nil {
			c.Logger.Printf("failed to start %s: %v", res.NextAgent, err)
			c.desktop("Nolan: assignment failed", fmt.Sprintf("%s: could not start %s", project, res.NextAgent))
			_ = incident.New(stateRoot).Append("ASSIGN_FAILED", project,
				fmt.Sprintf("agent=%s phase=%s: %v", res.NextAgent, res.NextPhase, err))
		}
	case router.Complete:
		c.desktop("Nolan: workflow complete", project)
	case router.Escalate:
		c.desktop("Nolan: escalation", fmt.Sprintf("%s: %s", project, res.Reason))
		_ = incident.New(stateRoot).Append("ESCALATION", project, res.Reason)
	}
}

// writePhaseStatus records the phase verdict next to the phase output so
// later phases and humans can see why the workflow moved. Status values are
// the uppercase decision; an approval without an explicit reason records
// "Auto-approved".
func (c *Controller) writePhaseStatus(projectPath string, phase *team.Phase, d router.Decision, reason string) {
	if phase.Output == "" {
		return
	}
	if reason == "" {
		reason = "Auto-approved"
	}
	doc := map[string]string{
		"status":    strings.ToUpper(string(d)),
		"reason":    reason,
		"timestamp": c.now().Format(handoff.TimestampLayout),
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return
	}
	path := filepath.Join(projectPath, phase.Output+".status")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		c.Logger.Printf("could not write %s: %v", path, err)
	}
}

func (c *Controller) readNotes(projectPath string, t *team.Team) string {
	raw, err := os.ReadFile(filepath.Join(projectPath, c.notesName(t)))
	if err != nil {
		return ""
	}
	return string(raw)
}

func (c *Controller) notesName(t *team.Team) string {
	if f := t.NoteTakerOutputFile(); f != "" {
		return f
	}
	return "NOTES.md"
}

// assignmentTimestamp extracts the "**Assigned**:" stamp from notes content
// at minute precision. Date-only stamps normalize to midnight.
func assignmentTimestamp(content string) string {
	if m := assignedRe.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	if m := assignedDateRe.FindStringSubmatch(content); m != nil {
		return m[1] + " 00:00"
	}
	return ""
}

// baseAgentName strips a numeric instance suffix (developer-2 -> developer)
// so pool instances resolve to their declared agent.
func baseAgentName(agent string) string {
	i := strings.LastIndex(agent, "-")
	if i <= 0 {
		return agent
	}
	suffix := agent[i+1:]
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return agent
		}
	}
	return agent[:i]
}

// inferAgent matches declared team agent names against the hook's working
// directory. The longest match wins so "developer" beats a "dev" agent.
func inferAgent(t *team.Team, cwd string) string {
	cwd = strings.ToLower(filepath.ToSlash(cwd))
	best := ""
	for i := range t.Agents {
		name := t.Agents[i].Name
		if strings.Contains(cwd, name) && len(name) > len(best) {
			best = name
		}
	}
	return best
}
