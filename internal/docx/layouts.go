// layouts.go - Cell maps for the guarantee letter templates

package docx

import (
	_ "embed"
	"fmt"

	"github.com/bosocmputer/bank_guarantee_ai/internal/guarantee"
	"gopkg.in/yaml.v3"
)

//go:embed layouts.yaml
var layoutsYAML []byte

// Cell is one field written into a table cell as prefix+value.
type Cell struct {
	Field  string `yaml:"field"`
	Row    int    `yaml:"row"`
	Col    int    `yaml:"col"`
	Prefix string `yaml:"prefix"`
}

// Layout ties a template file to the cells it receives.
type Layout struct {
	Template string `yaml:"template"`
	Cells    []Cell `yaml:"cells"`
}

// Layouts holds the two template layouts
type Layouts struct {
	Performance Layout `yaml:"performance"`
	Tender      Layout `yaml:"tender"`
}

// For returns the performance layout for a performance bond and the tender
// layout for anything else.
func (l Layouts) For(guaranteeType string) Layout {
	if guaranteeType == guarantee.TypePerformance {
		return l.Performance
	}
	return l.Tender
}

// DefaultLayouts parses the embedded layout table.
func DefaultLayouts() (Layouts, error) {
	return ParseLayouts(layoutsYAML)
}

// ParseLayouts decodes a layout table and checks every field is known.
func ParseLayouts(data []byte) (Layouts, error) {
	var l Layouts
	if err := yaml.Unmarshal(data, &l); err != nil {
		return Layouts{}, fmt.Errorf("failed to parse layouts: %w", err)
	}
	for name, layout := range map[string]Layout{"performance": l.Performance, "tender": l.Tender} {
		if layout.Template == "" {
			return Layouts{}, fmt.Errorf("layout %s: template is empty", name)
		}
		for _, c := range layout.Cells {
			if !knownField(c.Field) {
				return Layouts{}, fmt.Errorf("layout %s: unknown field %q", name, c.Field)
			}
			if c.Row < 0 || c.Col < 0 {
				return Layouts{}, fmt.Errorf("layout %s: negative cell index for %s", name, c.Field)
			}
		}
	}
	return l, nil
}

func knownField(field string) bool {
	for _, k := range guarantee.Keys {
		if k == field {
			return true
		}
	}
	return false
}
