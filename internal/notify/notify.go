// Package notify delivers best-effort wake notifications to agent terminal
// sessions. Delivery is a hint, never the source of truth; a missed wake
// only delays pickup until the receiving agent next polls the queue.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Wake carries everything needed to compose a wake notification.
type Wake struct {
	FromAgent string
	ToAgent   string
	Project   string
	Team      string
	HandoffID string
}

// Session returns the tmux session name targeted by this wake.
func (w Wake) Session() string {
	return fmt.Sprintf("agent-%s-%s", w.Team, w.ToAgent)
}

// Message returns the wake line injected into the receiving session. The
// short id prefix keeps the line readable while staying unambiguous within
// a day's handoffs.
func (w Wake) Message() string {
	id := w.HandoffID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("HANDOFF_%s: Handoff from %s - project '%s' ready for %s",
		id, w.FromAgent, w.Project, w.ToAgent)
}

// DeliveryError reports a failed wake. Callers log it and continue.
type DeliveryError struct {
	Session string
	Message string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("wake delivery to %s failed: %s", e.Session, e.Message)
}

// Notifier delivers wakes.
type Notifier interface {
	Notify(w Wake) error
}

// Command timeouts for tmux interactions. Probing is allowed the longest;
// keystroke injection should be near-instant.
const (
	probeTimeout   = 2 * time.Second
	escapeTimeout  = 1 * time.Second
	messageTimeout = 2 * time.Second
	enterTimeout   = 1 * time.Second
)

// interKeyDelay lets the receiving program consume the escape keystroke
// before the message arrives.
const interKeyDelay = 50 * time.Millisecond

// TmuxNotifier wakes agents by typing the message into their tmux session.
type TmuxNotifier struct{}

// Notify probes for the target session and, if present, sends a quit
// keystroke (to leave any pager), the message literally, then Enter.
func (TmuxNotifier) Notify(w Wake) error {
	session := w.Session()
	if err := tmux(probeTimeout, "has-session", "-t", session); err != nil {
		return &DeliveryError{Session: session, Message: "session not found"}
	}

	// Best effort; the message send below is what matters.
	_ = tmux(escapeTimeout, "send-keys", "-t", session, "q")
	time.Sleep(interKeyDelay)

	if err := tmux(messageTimeout, "send-keys", "-t", session, "-l", w.Message()); err != nil {
		return &DeliveryError{Session: session, Message: err.Error()}
	}
	if err := tmux(enterTimeout, "send-keys", "-t", session, "C-m"); err != nil {
		return &DeliveryError{Session: session, Message: "message sent but Enter failed: " + err.Error()}
	}
	return nil
}

func tmux(timeout time.Duration, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return exec.CommandContext(ctx, "tmux", args...).Run()
}

// Null discards all wakes. Used where no terminal multiplexer exists.
type Null struct{}

func (Null) Notify(Wake) error { return nil }

// Recorder captures wakes for inspection in tests.
type Recorder struct {
	Wakes []Wake
	Err   error
}

func (r *Recorder) Notify(w Wake) error {
	r.Wakes = append(r.Wakes, w)
	return r.Err
}

// SendDesktop shows a desktop notification via notify-send. Absence of a
// desktop environment is not an error worth surfacing.
func SendDesktop(title, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "notify-send", title, message).Run()
}
