package normalize

// roleFamilyOther is the classification of titles no family pattern claims.
const roleFamilyOther = "other"

type roleTable struct {
	Families        []tableEntry `yaml:"families"`
	Specializations []tableEntry `yaml:"specializations"`
}

// roleMapper classifies job titles into a role family and an optional
// specialization.
type roleMapper struct {
	families        []patternGroup
	specializations []patternGroup
}

func newRoleMapper(tablesDir string) (*roleMapper, error) {
	var table roleTable
	if err := loadTable("roles", tablesDir, &table); err != nil {
		return nil, err
	}

	families, err := compileGroups(table.Families)
	if err != nil {
		return nil, err
	}
	specializations, err := compileGroups(table.Specializations)
	if err != nil {
		return nil, err
	}
	return &roleMapper{families: families, specializations: specializations}, nil
}

// MapTitle returns the role family and specialization for a title. The
// family falls back to "other"; the specialization may be empty.
func (m *roleMapper) MapTitle(title string) (string, string) {
	family := roleFamilyOther
	for _, group := range m.families {
		if matchAny(group.patterns, title) {
			family = group.name
			break
		}
	}

	specialization := ""
	for _, group := range m.specializations {
		if matchAny(group.patterns, title) {
			specialization = group.name
			break
		}
	}
	return family, specialization
}
