package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sdpower/ccledger/internal/types"
)

// Overrides are user-supplied prices layered over the active table.
type Overrides struct {
	Table   Table
	Aliases map[string]string
}

type overrideFile struct {
	Models  map[string]overrideModel `yaml:"models"`
	Aliases map[string]string        `yaml:"aliases"`
}

// prices are USD per million tokens
type overrideModel struct {
	Input         float64  `yaml:"input"`
	Output        float64  `yaml:"output"`
	CacheCreation float64  `yaml:"cache_creation"`
	CacheRead     float64  `yaml:"cache_read"`
	Aliases       []string `yaml:"aliases"`
}

// LoadOverrides reads a YAML override file.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing overrides: %w", err)
	}
	return ParseOverrides(data)
}

// ParseOverrides decodes override YAML:
//
//	models:
//	  claude-custom:
//	    input: 3
//	    output: 15
//	    cache_creation: 3.75
//	    cache_read: 0.3
//	    aliases: [custom]
//	aliases:
//	  my-sonnet: claude-sonnet-4-20250514
func ParseOverrides(data []byte) (*Overrides, error) {
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("pricing overrides: %w: %v", types.ErrInvalidConfig, err)
	}

	out := &Overrides{
		Table:   make(Table, len(file.Models)),
		Aliases: make(map[string]string, len(file.Aliases)),
	}
	for model, m := range file.Models {
		if m.Input < 0 || m.Output < 0 || m.CacheCreation < 0 || m.CacheRead < 0 {
			return nil, types.ValidationError{
				Field:   "models." + model,
				Message: "prices must not be negative",
			}
		}
		out.Table[model] = FromPerMillion(m.Input, m.Output, m.CacheCreation, m.CacheRead)
		for _, alias := range m.Aliases {
			out.Aliases[normalizeModel(alias)] = model
		}
	}
	for alias, model := range file.Aliases {
		out.Aliases[normalizeModel(alias)] = model
	}
	return out, nil
}
