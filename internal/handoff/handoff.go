// Package handoff implements the durable work-transfer queue. A handoff is
// one YAML file; enqueue is an atomic rename into pending/, acknowledgement
// is a rename into processed/. The queue survives process crashes because
// every state transition is a filesystem operation.
package handoff

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nolanhq/nolan/internal/lockfile"
)

// TimestampLayout is the wire format for handoff timestamps.
const TimestampLayout = "2006-01-02T15:04:05"

// Record status values. A handoff carries the outcome of the phase it hands
// off, not its own queue position; pending versus acknowledged is expressed
// by which directory holds the file.
const (
	StatusComplete = "COMPLETE"
	StatusRejected = "REJECTED"
)

// Lock budgets for queue mutations. Acknowledgement gets the larger budget
// because it renames a batch of files.
const (
	EnqueueLockTimeout = 5 * time.Second
	AckLockTimeout     = 10 * time.Second
)

// QueueError reports a failed queue mutation.
type QueueError struct {
	Op      string
	Path    string
	Message string
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Message)
}

// Record is one handoff, as serialized into a .handoff file.
type Record struct {
	ID           string `yaml:"id"`
	Timestamp    string `yaml:"timestamp"`
	FromAgent    string `yaml:"from_agent"`
	ToAgent      string `yaml:"to_agent"`
	Project      string `yaml:"project"`
	Team         string `yaml:"team"`
	Status       string `yaml:"status"`
	Acknowledged bool   `yaml:"acknowledged"`
}

// NewID derives a handoff identifier from the creation instant and the
// sending agent: HO_<date>_<time>_<agent>_<6 hex chars>. The hex suffix is
// a content hash of the microsecond timestamp, so two handoffs created in
// the same second still get distinct ids.
func NewID(agent string, now time.Time) string {
	stamp := now.Format("20060102_150405")
	seed := fmt.Sprintf("%s%06d%s", now.Format("20060102150405"), now.Nanosecond()/1000, agent)
	sum := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("HO_%s_%s_%x", stamp, agent, sum[:3])
}

// Filename returns the queue filename for a handoff: a timestamp prefix for
// chronological sorting, the sending agent, and the id.
func Filename(agent, id string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.handoff", now.Format("20060102_150405"), agent, id)
}

// NormalizeTimestamp reduces a timestamp string to minute precision in the
// form "YYYY-MM-DD HH:MM". ISO 'T' separators are accepted. Strings shorter
// than sixteen characters are returned trimmed as-is.
func NormalizeTimestamp(ts string) string {
	ts = strings.TrimSpace(strings.Replace(ts, "T", " ", 1))
	if len(ts) > 16 {
		ts = ts[:16]
	}
	return ts
}

// Fresh reports whether a handoff record postdates the project's current
// assignment. Comparison happens at minute precision on normalized strings.
//
// A record with no timestamp predates timestamping and counts as fresh. A
// record with a timestamp but no readable assignment timestamp counts as
// stale, forcing a new handoff rather than trusting unverifiable state.
func Fresh(rec *Record, assignmentTS string) bool {
	if rec.Timestamp == "" {
		return true
	}
	if assignmentTS == "" {
		return false
	}
	return NormalizeTimestamp(rec.Timestamp) >= NormalizeTimestamp(assignmentTS)
}

// Queue is a pending/processed file queue rooted at <state>/handoffs.
type Queue struct {
	root string
}

// NewQueue returns the queue under a state directory. Directories are
// created lazily on first enqueue.
func NewQueue(stateRoot string) *Queue {
	return &Queue{root: filepath.Join(stateRoot, "handoffs")}
}

// PendingDir returns the directory of unacknowledged handoffs.
func (q *Queue) PendingDir() string { return filepath.Join(q.root, "pending") }

// ProcessedDir returns the directory of acknowledged handoffs.
func (q *Queue) ProcessedDir() string { return filepath.Join(q.root, "processed") }

func (q *Queue) lockPath() string { return filepath.Join(q.root, ".lock-pending") }

// Enqueue serializes a record and places it in pending/ via write-then-rename
// so readers never observe a partial file. Returns the final file path.
func (q *Queue) Enqueue(rec *Record, now time.Time) (string, error) {
	pending := q.PendingDir()
	if err := os.MkdirAll(pending, 0o755); err != nil {
		return "", &QueueError{Op: "enqueue", Path: pending, Message: err.Error()}
	}

	lock, err := lockfile.Acquire(q.lockPath(), EnqueueLockTimeout)
	if err != nil {
		return "", &QueueError{Op: "enqueue", Path: pending, Message: err.Error()}
	}
	defer lock.Release()

	raw, err := yaml.Marshal(rec)
	if err != nil {
		return "", &QueueError{Op: "enqueue", Path: pending, Message: err.Error()}
	}

	tmp := filepath.Join(pending, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return "", &QueueError{Op: "enqueue", Path: tmp,
			Message: "Failed to write handoff queue file: " + err.Error()}
	}
	final := filepath.Join(pending, Filename(rec.FromAgent, rec.ID, now))
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", &QueueError{Op: "enqueue", Path: final,
			Message: "Failed to write handoff queue file: " + err.Error()}
	}
	return final, nil
}

// AckAll moves every pending handoff to processed/ with a rename that
// preserves the filename, so the record is always whole in exactly one of
// the two directories. Individual failures are counted, not fatal; the
// batch keeps going so one bad file cannot wedge the queue.
func (q *Queue) AckAll() (acked, failed int, err error) {
	pending := q.PendingDir()
	processed := q.ProcessedDir()
	if _, serr := os.Stat(pending); serr != nil {
		return 0, 0, nil
	}
	if merr := os.MkdirAll(processed, 0o755); merr != nil {
		return 0, 0, &QueueError{Op: "ack", Path: processed, Message: merr.Error()}
	}

	lock, lerr := lockfile.Acquire(q.lockPath(), AckLockTimeout)
	if lerr != nil {
		return 0, 0, &QueueError{Op: "ack", Path: pending, Message: lerr.Error()}
	}
	defer lock.Release()

	matches, _ := filepath.Glob(filepath.Join(pending, "*.handoff"))
	for _, src := range matches {
		if rerr := os.Rename(src, filepath.Join(processed, filepath.Base(src))); rerr != nil {
			failed++
			continue
		}
		acked++
	}
	return acked, failed, nil
}

// Read parses one .handoff file.
func Read(path string) (*Record, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &QueueError{Op: "read", Path: path, Message: err.Error()}
	}
	var rec Record
	if err := yaml.Unmarshal(raw, &rec); err != nil {
		return nil, &QueueError{Op: "read", Path: path, Message: err.Error()}
	}
	return &rec, nil
}

// Locate returns the paths of a handoff in pending/ and in processed/;
// either may be empty. A record appearing in both directories is mid-move.
func (q *Queue) Locate(id string) (pendingPath, processedPath string) {
	if m, _ := filepath.Glob(filepath.Join(q.PendingDir(), "*"+id+"*.handoff")); len(m) > 0 {
		pendingPath = m[0]
	}
	if m, _ := filepath.Glob(filepath.Join(q.ProcessedDir(), "*"+id+"*.handoff")); len(m) > 0 {
		processedPath = m[0]
	}
	return pendingPath, processedPath
}

// PendingForAgent returns pending handoff paths sent by an agent, newest
// first.
func (q *Queue) PendingForAgent(agent string) []string {
	return sortedMatches(q.PendingDir(), agent)
}

// ProcessedForAgent returns processed handoff paths sent by an agent,
// newest first.
func (q *Queue) ProcessedForAgent(agent string) []string {
	return sortedMatches(q.ProcessedDir(), agent)
}

func sortedMatches(dir, agent string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, "*_"+agent+"_*.handoff"))
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches
}
