package team

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validConfig = `team:
  name: default
  schema_version: 2
  agents:
    - name: planner
      output_file: PLAN.md
      required_sections: [Goals]
      file_permissions: restricted
      workflow_participant: true
    - name: developer
      output_file: IMPL.md
      file_permissions: restricted
      workflow_participant: true
    - name: scribe
      output_file: NOTES.md
      file_permissions: permissive
      workflow_participant: false
  workflow:
    note_taker: scribe
    phases:
      - name: plan
        owner: planner
        output: PLAN.md
      - name: implement
        owner: developer
        output: IMPL.md
        requires: [PLAN.md]
    timeouts:
      ack_timeout_seconds: 30
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	tm, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tm.Name != "default" || tm.SchemaVersion != 2 {
		t.Fatalf("unexpected team header: %+v", tm)
	}
	if got := tm.NoteTaker(); got != "scribe" {
		t.Fatalf("NoteTaker = %q", got)
	}
	if got := tm.NoteTakerOutputFile(); got != "NOTES.md" {
		t.Fatalf("NoteTakerOutputFile = %q", got)
	}
	if got := tm.Workflow.Timeouts.AckTimeout(); got != 30*time.Second {
		t.Fatalf("AckTimeout = %v", got)
	}
	if got := tm.Workflow.Timeouts.AckPoll(); got != DefaultAckPollInterval {
		t.Fatalf("AckPoll default = %v", got)
	}
}

func TestPhaseLookupCaseInsensitive(t *testing.T) {
	tm, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	p, idx := tm.Phase("IMPLEMENT")
	if p == nil || idx != 1 || p.Owner != "developer" {
		t.Fatalf("Phase(IMPLEMENT) = %v, %d", p, idx)
	}
	if p, idx := tm.Phase("missing"); p != nil || idx != -1 {
		t.Fatalf("Phase(missing) = %v, %d", p, idx)
	}
}

func TestNextAgentAfter(t *testing.T) {
	tm, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatal(err)
	}
	if got := tm.NextAgentAfter("planner"); got != "developer" {
		t.Fatalf("after planner = %q", got)
	}
	if got := tm.NextAgentAfter("developer"); got != "" {
		t.Fatalf("after final phase owner = %q", got)
	}
	if got := tm.NextAgentAfter("scribe"); got != "" {
		t.Fatalf("after non-owner = %q", got)
	}
}

func TestValidateViolations(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Team)
		wantSub string
	}{
		{
			name:    "missing team name",
			mutate:  func(tm *Team) { tm.Name = "" },
			wantSub: "team.name",
		},
		{
			name: "duplicate agent",
			mutate: func(tm *Team) {
				tm.Agents = append(tm.Agents, tm.Agents[0])
			},
			wantSub: "duplicate agent name",
		},
		{
			name: "bad agent name",
			mutate: func(tm *Team) {
				tm.Agents[0].Name = "Planner!"
				tm.Workflow.Phases[0].Owner = "Planner!"
			},
			wantSub: "invalid agent name",
		},
		{
			name: "restricted without output",
			mutate: func(tm *Team) {
				tm.Agents[1].OutputFile = ""
				tm.Workflow.Phases[1].Output = "OTHER.md"
			},
			wantSub: "restricted permissions but no output_file",
		},
		{
			name: "no_projects with output",
			mutate: func(tm *Team) {
				tm.Agents[2].FilePermissions = PermissionNoProjects
			},
			wantSub: "no_projects permissions must have output_file: null",
		},
		{
			name: "phase owner unknown",
			mutate: func(tm *Team) {
				tm.Workflow.Phases[0].Owner = "ghost"
			},
			wantSub: `owner "ghost" not found`,
		},
		{
			name: "requires before produced",
			mutate: func(tm *Team) {
				tm.Workflow.Phases[0].Requires = []string{"IMPL.md"}
			},
			wantSub: "before it is produced",
		},
		{
			name: "note taker participates",
			mutate: func(tm *Team) {
				yes := true
				tm.Agents[2].WorkflowParticipant = &yes
			},
			wantSub: "workflow_participant: false",
		},
		{
			name: "multi instance without names",
			mutate: func(tm *Team) {
				tm.Agents[1].MultiInstance = true
				tm.Agents[1].MaxInstances = 2
			},
			wantSub: "multi_instance requires instance_names",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tm, err := Load(writeConfig(t, validConfig))
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(tm)
			errs := Validate(tm)
			if len(errs) == 0 {
				t.Fatal("expected violations, got none")
			}
			for _, e := range errs {
				if strings.Contains(e.Error(), tc.wantSub) {
					return
				}
			}
			t.Fatalf("no violation containing %q in %v", tc.wantSub, errs)
		})
	}
}

func TestLoadRejectsOversize(t *testing.T) {
	big := validConfig + "# " + strings.Repeat("x", MaxConfigBytes) + "\n"
	_, err := Load(writeConfig(t, big))
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestParseTeamName(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain")
	os.WriteFile(plain, []byte("alpha\n"), 0o644)
	if name, err := ParseTeamName(plain); err != nil || name != "alpha" {
		t.Fatalf("plain form = %q, %v", name, err)
	}

	yamlForm := filepath.Join(dir, "yaml")
	os.WriteFile(yamlForm, []byte("team: beta\n"), 0o644)
	if name, err := ParseTeamName(yamlForm); err != nil || name != "beta" {
		t.Fatalf("yaml form = %q, %v", name, err)
	}
}

func TestTeamNameForProjectMissing(t *testing.T) {
	_, err := TeamNameForProject(t.TempDir())
	if err == nil || !strings.Contains(err.Error(), ".team file not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestFindConfigRecursive(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "teams", "group", "sub")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(nested, "alpha.yaml")
	os.WriteFile(want, []byte(validConfig), 0o644)

	got, err := FindConfig(root, "alpha")
	if err != nil {
		t.Fatalf("FindConfig: %v", err)
	}
	if got != want {
		t.Fatalf("FindConfig = %q, want %q", got, want)
	}

	if _, err := FindConfig(root, "missing"); err == nil ||
		!strings.Contains(err.Error(), "Team config not found: missing") {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestCacheMemoizes(t *testing.T) {
	root := t.TempDir()
	teamsDir := filepath.Join(root, "teams")
	os.MkdirAll(teamsDir, 0o755)
	cfgPath := filepath.Join(teamsDir, "default.yaml")
	os.WriteFile(cfgPath, []byte(validConfig), 0o644)

	project := filepath.Join(root, "projects", "p1")
	os.MkdirAll(project, 0o755)
	os.WriteFile(filepath.Join(project, ".team"), []byte("default"), 0o644)

	c := NewCache(0)
	first, err := c.LoadForProject(project, root)
	if err != nil {
		t.Fatalf("LoadForProject: %v", err)
	}

	// Break the file on disk; the cached value must still be served.
	os.WriteFile(cfgPath, []byte("not yaml: ["), 0o644)
	second, err := c.LoadForProject(project, root)
	if err != nil {
		t.Fatalf("cached LoadForProject: %v", err)
	}
	if first != second {
		t.Fatal("expected the same cached *Team")
	}
}
