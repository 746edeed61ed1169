package config

import (
	"fmt"
	"os"

	"github.com/artpar/datagate/domain/policy"
	"gopkg.in/yaml.v3"
)

// PolicyFile is the parsed shape of a policy rules file.
type PolicyFile struct {
	Rules []policy.Rule `yaml:"rules"`
}

// LoadPolicy reads a policy file and compiles it into a snapshot.
// An empty or missing rules list compiles to deny-all.
func LoadPolicy(path string) (*policy.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy compiles policy rules from file bytes.
func ParsePolicy(data []byte) (*policy.Policy, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	p, err := policy.Compile(pf.Rules)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return p, nil
}
