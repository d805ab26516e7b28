package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// AgentInfo describes one AI agent as advertised by /agents/status.
type AgentInfo struct {
	Name         string   `yaml:"name" json:"name"`
	DisplayName  string   `yaml:"display_name" json:"display_name"`
	Description  string   `yaml:"description" json:"description"`
	Capabilities []string `yaml:"capabilities" json:"capabilities"`
	Endpoint     string   `yaml:"endpoint" json:"endpoint"`
	Status       string   `yaml:"status" json:"status"`
}

// Catalog is the ordered list of agents.
type Catalog struct {
	Agents []AgentInfo `yaml:"agents" json:"agents"`
}

// Lookup returns the agent with the given name.
func (c *Catalog) Lookup(name string) (AgentInfo, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentInfo{}, false
}

// LoadCatalog reads the agent catalog from path, or the embedded default when
// path is empty, then validates it.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog file: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for i := range c.Agents {
		if c.Agents[i].Status == "" {
			c.Agents[i].Status = "active"
		}
		if c.Agents[i].DisplayName == "" && c.Agents[i].Name != "" {
			n := c.Agents[i].Name
			c.Agents[i].DisplayName = strings.ToUpper(n[:1]) + n[1:]
		}
	}
	v, err := NewCatalogValidator()
	if err != nil {
		return nil, err
	}
	if err := v.Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}
