package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PartnerFile is the on-disk shape of the partner directory
type PartnerFile struct {
	Partners []PartnerEntry `yaml:"partners"`
}

// PartnerEntry is one partner system that receives direct broadcasts
type PartnerEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
}

// LoadPartners reads the partner directory from a YAML file and returns
// the partner-id to endpoint map the broadcaster consumes. Entries
// without an id or endpoint are rejected rather than silently skipped.
func LoadPartners(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read partner config: %w", err)
	}
	return ParsePartners(raw)
}

// ParsePartners decodes the partner directory from YAML bytes
func ParsePartners(raw []byte) (map[string]string, error) {
	var file PartnerFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse partner config: %w", err)
	}

	partners := make(map[string]string, len(file.Partners))
	for i, entry := range file.Partners {
		if entry.ID == "" {
			return nil, fmt.Errorf("partner entry %d has no id", i)
		}
		if entry.Endpoint == "" {
			return nil, fmt.Errorf("partner %q has no endpoint", entry.ID)
		}
		if _, exists := partners[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate partner id %q", entry.ID)
		}
		partners[entry.ID] = entry.Endpoint
	}
	return partners, nil
}
