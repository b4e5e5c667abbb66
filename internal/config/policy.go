package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPolicyFile reads a standalone policy YAML document. Decoding is
// strict: unknown keys are an error, so a typo in a handler declaration
// fails loudly instead of silently dropping a rule.
func LoadPolicyFile(path string) (*PolicyConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open policy file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var policy PolicyConfig
	if err := dec.Decode(&policy); err != nil {
		return nil, fmt.Errorf("decode policy file %s: %w", path, err)
	}
	return &policy, nil
}

// ResolvePolicy merges a policy_file reference into the config. Declaring
// both an inline policy block and a policy_file is an error.
func (c *Config) ResolvePolicy() error {
	if c.PolicyFile == "" {
		return nil
	}
	if len(c.Policy.Handlers) > 0 || len(c.Policy.Groups) > 0 {
		return errors.New("policy: specify an inline policy block OR policy_file, not both")
	}
	policy, err := LoadPolicyFile(c.PolicyFile)
	if err != nil {
		return err
	}
	c.Policy = *policy
	return nil
}
