package normalize

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

//go:embed *.yaml
var tableFS embed.FS

// tableEntry is one named pattern group in a classification table. Groups
// are evaluated in file order; the first match wins.
type tableEntry struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// patternGroup is a compiled tableEntry.
type patternGroup struct {
	name     string
	patterns []*regexp.Regexp
}

// loadTable reads {name}.yaml from the override directory when one is
// configured and the file exists, otherwise from the embedded defaults.
func loadTable(name, tablesDir string, out interface{}) error {
	if tablesDir != "" {
		userPath := filepath.Join(tablesDir, name+".yaml")
		if data, err := os.ReadFile(userPath); err == nil {
			if err := yaml.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to parse table %s: %w", userPath, err)
			}
			return nil
		}
	}

	data, err := tableFS.ReadFile(name + ".yaml")
	if err != nil {
		return fmt.Errorf("embedded table %q not found: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse embedded table %q: %w", name, err)
	}
	return nil
}

// compileGroups compiles every entry's patterns case-insensitively,
// preserving entry order.
func compileGroups(entries []tableEntry) ([]patternGroup, error) {
	groups := make([]patternGroup, 0, len(entries))
	for _, entry := range entries {
		patterns, err := compilePatterns(entry.Patterns)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", entry.Name, err)
		}
		groups = append(groups, patternGroup{name: entry.Name, patterns: patterns})
	}
	return groups, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
