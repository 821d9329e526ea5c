package synonym

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed groups.yaml
var defaultGroupsYAML []byte

// Group maps user vocabulary onto one documentation term.
type Group struct {
	Canonical string   `yaml:"canonical" json:"canonical"`
	Synonyms  []string `yaml:"synonyms" json:"synonyms"`
	Context   string   `yaml:"context,omitempty" json:"context,omitempty"`
}

func DefaultGroups() ([]Group, error) {
	return ParseGroups(defaultGroupsYAML)
}

// LoadGroups reads an operator-supplied table; an empty path yields the built-in one.
func LoadGroups(path string) ([]Group, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultGroups()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonym table: %w", err)
	}
	return ParseGroups(data)
}

func ParseGroups(data []byte) ([]Group, error) {
	var groups []Group
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parse synonym table: %w", err)
	}
	for i := range groups {
		groups[i].Canonical = strings.TrimSpace(groups[i].Canonical)
		groups[i].Context = strings.TrimSpace(groups[i].Context)
		if groups[i].Canonical == "" {
			return nil, fmt.Errorf("synonym group %d: canonical is required", i)
		}
		synonyms := make([]string, 0, len(groups[i].Synonyms))
		for _, s := range groups[i].Synonyms {
			if s = strings.TrimSpace(s); s != "" {
				synonyms = append(synonyms, s)
			}
		}
		if len(synonyms) == 0 {
			return nil, fmt.Errorf("synonym group %q: at least one synonym is required", groups[i].Canonical)
		}
		groups[i].Synonyms = synonyms
	}
	return groups, nil
}
