package normalize

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type skillTable struct {
	Skills map[string][]string `yaml:"skills"`
}

// skillExtractor matches a dictionary of canonical skills against posting
// text. Aliases are matched on word boundaries; an alias that already starts
// with \b is compiled as written.
type skillExtractor struct {
	patterns map[string][]*regexp.Regexp
}

func newSkillExtractor(tablesDir string) (*skillExtractor, error) {
	var table skillTable
	if err := loadTable("skills", tablesDir, &table); err != nil {
		return nil, err
	}

	patterns := make(map[string][]*regexp.Regexp, len(table.Skills))
	for canonical, aliases := range table.Skills {
		compiled := make([]*regexp.Regexp, 0, len(aliases))
		for _, alias := range aliases {
			expr := alias
			if !strings.HasPrefix(alias, `\b`) {
				expr = `\b` + regexp.QuoteMeta(alias) + `\b`
			}
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, fmt.Errorf("skill %s alias %q: %w", canonical, alias, err)
			}
			compiled = append(compiled, re)
		}
		patterns[canonical] = compiled
	}
	return &skillExtractor{patterns: patterns}, nil
}

// Extract returns the sorted canonical skills found in title + description.
func (e *skillExtractor) Extract(title, description string) []string {
	text := title + " " + description
	var found []string
	for canonical, patterns := range e.patterns {
		if matchAny(patterns, text) {
			found = append(found, canonical)
		}
	}
	sort.Strings(found)
	return found
}
