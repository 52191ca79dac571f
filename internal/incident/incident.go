// Package incident appends operator-facing events to a shared plain-text
// log. One line per event; the file is the interface, readable with tail.
package incident

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the log's name under the state root.
const FileName = "incidents.log"

// Log is an append-only incident log.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New returns the incident log under a state directory.
func New(stateRoot string) *Log {
	return &Log{path: filepath.Join(stateRoot, FileName), now: time.Now}
}

// Append writes one "[timestamp] EVENT | project | details" line. Errors
// are returned but callers typically log and move on; the incident log must
// never block the workflow it reports on.
func (l *Log) Append(event, project, details string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | %s | %s\n",
		l.now().Format("2006-01-02 15:04:05"), event, project, details)
	_, err = f.WriteString(line)
	return err
}
