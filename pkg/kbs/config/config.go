package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

// Config holds engine and CLI settings
type Config struct {
	DBPath      string   `yaml:"db_path"`
	LogLevel    string   `yaml:"log_level"`
	MetricsAddr string   `yaml:"metrics_addr"`
	RulesPaths  []string `yaml:"rules_paths"`
}

// DefaultConfig returns the settings used when no config file is given
func DefaultConfig() *Config {
	return &Config{
		DBPath:   "kbs.db",
		LogLevel: "info",
	}
}

// LoadConfig loads settings from a YAML file on top of the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", internalerr.ErrInvalidConfig, c.LogLevel)
	}
	for _, p := range c.RulesPaths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: empty entry in rules_paths", internalerr.ErrInvalidConfig)
		}
	}
	return nil
}

// Definition is a knowledge base written as YAML.
//
//	symbols: [x, y]
//	properties:
//	  fido: {legs: 4, color: brown}
//	assertions:
//	  - eq(add(x, y), 10)
//	queries:
//	  if:
//	    - eq(x, 4)
//	  ask: [y]
//
// Expressions use the rules syntax. String property values are parsed the
// same way, so brown is a symbol and '"brown"' a string. An expression with a
// comma must go in a block sequence or be quoted; a flow sequence splits it.
type Definition struct {
	Symbols    []string                  `yaml:"symbols"`
	Properties map[string]map[string]any `yaml:"properties"`
	Assertions []string                  `yaml:"assertions"`
	Queries    QueryDefinition           `yaml:"queries"`
}

// QueryDefinition lists transient assumptions and the factors to ask about
type QueryDefinition struct {
	If  []string `yaml:"if"`
	Ask []string `yaml:"ask"`
}

// UnmarshalYAML decodes the lists and rejects expressions cut apart by a flow
// sequence, as in if: [eq(x, 4)].
func (q *QueryDefinition) UnmarshalYAML(node *yaml.Node) error {
	type plain QueryDefinition
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	if err := checkExpressions("if", p.If); err != nil {
		return err
	}
	if err := checkExpressions("ask", p.Ask); err != nil {
		return err
	}
	*q = QueryDefinition(p)
	return nil
}

func checkExpressions(field string, exprs []string) error {
	for _, e := range exprs {
		if !balanced(e) {
			return fmt.Errorf("%s: unbalanced expression %q (quote it or use a block sequence)", field, e)
		}
	}
	return nil
}

// balanced reports whether the parentheses in e outside string literals match.
func balanced(e string) bool {
	depth := 0
	quoted := false
	for _, r := range e {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '(':
			depth++
		case r == ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// LoadDefinition loads a knowledge base definition from a YAML file
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if err := checkExpressions("assertions", def.Assertions); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	return &def, nil
}
