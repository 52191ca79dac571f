package team

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Hard parse limits. Oversized or deeply nested configs are rejected
// outright rather than warned about.
const (
	MaxConfigBytes = 1 << 20 // 1 MiB
	MaxConfigDepth = 10
)

// ConfigError reports a team configuration problem with the offending field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports a missing .team file or team config file.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ParseTeamName reads a project's .team file, which is either a plain team
// name or a YAML document with a top-level `team:` field.
func ParseTeamName(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var doc struct {
		Team string `yaml:"team"`
	}
	if err := yaml.Unmarshal(raw, &doc); err == nil && doc.Team != "" {
		return doc.Team, nil
	}
	return strings.TrimSpace(string(raw)), nil
}

// TeamNameForProject resolves the team name bound to a project directory.
func TeamNameForProject(projectPath string) (string, error) {
	teamFile := filepath.Join(projectPath, ".team")
	if _, err := os.Stat(teamFile); err != nil {
		return "", &NotFoundError{Message: fmt.Sprintf(".team file not found in %s", projectPath)}
	}
	return ParseTeamName(teamFile)
}

// FindConfig searches recursively under <nolanRoot>/teams for <name>.yaml
// and returns the first match.
func FindConfig(nolanRoot, name string) (string, error) {
	teamsDir := filepath.Join(nolanRoot, "teams")
	var found string
	err := filepath.WalkDir(teamsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep searching
		}
		if !d.IsDir() && d.Name() == name+".yaml" {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return "", err
	}
	if found == "" {
		return "", &NotFoundError{Message: fmt.Sprintf("Team config not found: %s", name)}
	}
	return found, nil
}

// Load parses and validates a team config file. Size and nesting limits are
// hard errors.
func Load(path string) (*Team, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &NotFoundError{Message: fmt.Sprintf("Team config not found: %s", path)}
	}
	if info.Size() > MaxConfigBytes {
		return nil, &ConfigError{Field: "file", Message: fmt.Sprintf("config too large: %d bytes (max %d)", info.Size(), MaxConfigBytes)}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading team config: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, &ConfigError{Field: "yaml", Message: err.Error()}
	}
	if depth := nodeDepth(&root); depth > MaxConfigDepth {
		return nil, &ConfigError{Field: "file", Message: fmt.Sprintf("config too deeply nested: %d levels (max %d)", depth, MaxConfigDepth)}
	}

	var doc configFile
	if err := root.Decode(&doc); err != nil {
		return nil, &ConfigError{Field: "yaml", Message: err.Error()}
	}
	if doc.Team == nil {
		return nil, &ConfigError{Field: "team", Message: "missing 'team' root key"}
	}

	if errs := Validate(doc.Team); len(errs) > 0 {
		return nil, joinConfigErrors(errs)
	}
	return doc.Team, nil
}

// LoadForProject resolves the team bound to a project and loads its config.
func LoadForProject(projectPath, nolanRoot string) (*Team, error) {
	name, err := TeamNameForProject(projectPath)
	if err != nil {
		return nil, err
	}
	path, err := FindConfig(nolanRoot, name)
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// nodeDepth counts mapping/sequence nesting levels. Document and scalar
// nodes contribute nothing.
func nodeDepth(n *yaml.Node) int {
	switch n.Kind {
	case yaml.DocumentNode:
		max := 0
		for _, c := range n.Content {
			if d := nodeDepth(c); d > max {
				max = d
			}
		}
		return max
	case yaml.MappingNode, yaml.SequenceNode:
		max := 0
		for _, c := range n.Content {
			if d := nodeDepth(c); d > max {
				max = d
			}
		}
		return max + 1
	default:
		return 0
	}
}

func joinConfigErrors(errs []*ConfigError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &ConfigError{Field: "team", Message: strings.Join(msgs, "; ")}
}
