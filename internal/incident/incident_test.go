package incident

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendFormat(t *testing.T) {
	root := t.TempDir()
	l := New(root)
	l.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}

	if err := l.Append("ESCALATION", "proj1", "no earlier phase"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append("ASSIGN_FAILED", "proj1", "agent=reviewer"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), lines)
	}
	want := "[2026-03-14 09:26:53] ESCALATION | proj1 | no earlier phase"
	if lines[0] != want {
		t.Fatalf("line = %q\nwant %q", lines[0], want)
	}
}

func TestAppendCreatesStateDir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing", ".state")
	if err := New(root).Append("X", "p", "d"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, FileName)); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}
