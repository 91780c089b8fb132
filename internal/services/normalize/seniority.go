package normalize

import (
	"regexp"
	"strconv"
)

// Experience requirements in description text. The explicit form ("5+ years
// of experience") is preferred over a bare range ("3-5 years"), which uses
// the midpoint.
var (
	experienceYearsRe = regexp.MustCompile(`(?i)(\d+)\+?\s*(?:years?|yrs?)\s*(?:of\s*)?(?:experience|exp)`)
	experienceRangeRe = regexp.MustCompile(`(?i)(\d+)-(\d+)\s*(?:years?|yrs?)`)
)

type seniorityTable struct {
	Levels             []tableEntry `yaml:"levels"`
	ExperienceBrackets []struct {
		MaxYears int    `yaml:"max_years"`
		Level    string `yaml:"level"`
	} `yaml:"experience_brackets"`
	Default string `yaml:"default"`
}

type experienceBracket struct {
	maxYears int // 0 means no ceiling
	level    string
}

// seniorityDetector derives a seniority level from the title, falling back
// to experience requirements in the description, then to the table default.
type seniorityDetector struct {
	levels   []patternGroup
	brackets []experienceBracket
	fallback string
}

func newSeniorityDetector(tablesDir string) (*seniorityDetector, error) {
	var table seniorityTable
	if err := loadTable("seniority", tablesDir, &table); err != nil {
		return nil, err
	}

	levels, err := compileGroups(table.Levels)
	if err != nil {
		return nil, err
	}

	brackets := make([]experienceBracket, 0, len(table.ExperienceBrackets))
	for _, b := range table.ExperienceBrackets {
		brackets = append(brackets, experienceBracket{maxYears: b.MaxYears, level: b.Level})
	}

	fallback := table.Default
	if fallback == "" {
		fallback = "mid"
	}
	return &seniorityDetector{levels: levels, brackets: brackets, fallback: fallback}, nil
}

// Detect returns the seniority level for a posting. Title patterns are the
// strongest signal and win outright.
func (d *seniorityDetector) Detect(title, description string) string {
	for _, group := range d.levels {
		if matchAny(group.patterns, title) {
			return group.name
		}
	}
	if description != "" {
		if level := d.fromExperience(description); level != "" {
			return level
		}
	}
	return d.fallback
}

func (d *seniorityDetector) fromExperience(description string) string {
	if m := experienceYearsRe.FindStringSubmatch(description); m != nil {
		if years, err := strconv.Atoi(m[1]); err == nil {
			return d.forYears(years)
		}
	}
	if m := experienceRangeRe.FindStringSubmatch(description); m != nil {
		low, err1 := strconv.Atoi(m[1])
		high, err2 := strconv.Atoi(m[2])
		if err1 == nil && err2 == nil {
			return d.forYears((low + high) / 2)
		}
	}
	return ""
}

func (d *seniorityDetector) forYears(years int) string {
	for _, b := range d.brackets {
		if b.maxYears == 0 || years < b.maxYears {
			return b.level
		}
	}
	return d.fallback
}
