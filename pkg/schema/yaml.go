package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlDocument is the on-disk shape of a stage-definition override file.
type yamlDocument struct {
	Stages []StageDefinition `yaml:"stages"`
}

// LoadYAML decodes stage definitions from a YAML document and builds a
// validated Registry from them. Deployments use this to override the
// built-in wizard schema without recompiling.
func LoadYAML(data []byte) (*Registry, error) {
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: parse yaml: %w", err)
	}
	if len(doc.Stages) == 0 {
		return nil, fmt.Errorf("schema: yaml document declares no stages")
	}
	return NewRegistry(doc.Stages...)
}

// LoadYAMLFile reads path and delegates to LoadYAML.
func LoadYAMLFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	return LoadYAML(data)
}
