// Package status derives a project's workflow state from its notes file.
// Structured HTML-comment markers are authoritative; prose heuristics exist
// only for projects written before the markers were introduced.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nolanhq/nolan/internal/team"
)

// DefaultNotesFile is used when the team declares no note-taker output.
const DefaultNotesFile = "NOTES.md"

// Structured marker form: <!-- PROJECT:STATUS:COMPLETE -->. The value is
// matched case-insensitively and may carry a trailing annotation, e.g.
// <!-- PROJECT:STATUS:DELEGATED:alice -->.
var markerRe = regexp.MustCompile(`(?i)<!--\s*PROJECT:STATUS:([A-Z]+)(?::([^\s>]+))?\s*-->`)

// assignmentRe matches the current-assignment agent line under the
// "## Current Assignment" heading.
var (
	assignmentHeadingRe = regexp.MustCompile(`(?im)^##\s+Current Assignment\s*$`)
	assignmentAgentRe   = regexp.MustCompile(`(?im)^\*\*Agent\*\*:\s*(\S+)`)
)

// completeContentRe recognizes legacy prose completion notes.
var completeContentRe = regexp.MustCompile(`(?im)^#+\s*.*\b(?:complete|completed)\b|(?im)^\*\*Status\*\*:\s*(?:complete|completed)\b`)

// Report is the derived status of one project.
type Report struct {
	Project   string
	NotesFile string
	Status    string
	Body      string
}

// String renders the operator-facing status block: which file was read, the
// derived status line, and the full notes content.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", r.Project)
	fmt.Fprintf(&b, "Notes:   %s\n", r.NotesFile)
	fmt.Fprintf(&b, "Status:  %s\n", r.Status)
	if r.Body != "" {
		b.WriteString("\n")
		b.WriteString(r.Body)
		if !strings.HasSuffix(r.Body, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Build reads the project's notes file and derives its status. A missing
// notes file is PENDING, not an error.
func Build(projectPath string, t *team.Team) (Report, error) {
	notesFile := DefaultNotesFile
	if t != nil {
		if f := t.NoteTakerOutputFile(); f != "" {
			notesFile = f
		}
	}
	rep := Report{
		Project:   filepath.Base(projectPath),
		NotesFile: notesFile,
	}

	raw, err := os.ReadFile(filepath.Join(projectPath, notesFile))
	if err != nil {
		if os.IsNotExist(err) {
			rep.Status = fmt.Sprintf("PENDING (no %s)", notesFile)
			return rep, nil
		}
		return rep, err
	}

	rep.Body = string(raw)
	rep.Status = Detect(rep.Body)
	return rep, nil
}

// Detect classifies notes content into one status line. Precedence: a
// structured marker, then an active assignment ("DELEGATED to <agent>"),
// then legacy completion prose, then PENDING.
func Detect(content string) string {
	if m := markerRe.FindStringSubmatch(content); m != nil {
		status := strings.ToUpper(m[1])
		if m[2] != "" && status == "DELEGATED" {
			return "DELEGATED to " + m[2]
		}
		return status
	}

	if assignmentHeadingRe.MatchString(content) {
		if m := assignmentAgentRe.FindStringSubmatch(content); m != nil {
			return "DELEGATED to " + m[1]
		}
		return "DELEGATED"
	}

	if completeContentRe.MatchString(content) {
		return "COMPLETE"
	}

	return "PENDING (no assignment)"
}
