package config

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/cognicore/kbs/pkg/kbs"
	"github.com/cognicore/kbs/pkg/kbs/internalerr"
	"github.com/cognicore/kbs/pkg/kbs/rules"
)

// Loader loads all configuration files and constructs a knowledge base
type Loader struct {
	ConfigPath     string
	DefinitionPath string
	RulesPaths     []string

	Logger   *zap.Logger
	Observer kbs.Observer
}

// Components holds the loaded configuration and the populated knowledge base
type Components struct {
	Config *Config
	KB     *kbs.KB
	Query  Query
	// Sources lists every file the knowledge base was built from, in load order.
	Sources []string
}

// Query is a parsed QueryDefinition
type Query struct {
	If  []kbs.Factor
	Ask []kbs.Factor
}

// Empty reports whether there is nothing to ask
func (q Query) Empty() bool { return len(q.Ask) == 0 }

// Run executes the query against kb
func (q Query) Run(kb *kbs.KB) ([]kbs.Solution, error) {
	return kb.If(q.If...).Query(q.Ask...)
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	comp := &Components{}

	// Load settings
	if l.ConfigPath != "" {
		cfg, err := LoadConfig(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		comp.Config = cfg
	} else {
		comp.Config = DefaultConfig()
	}

	comp.KB = kbs.New(kbs.Options{Logger: l.Logger, Observer: l.Observer})

	// Load rule files: those named by the config first, then explicit ones
	paths := append(append([]string{}, comp.Config.RulesPaths...), l.RulesPaths...)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		if err := rules.LoadRules(comp.KB, string(data)); err != nil {
			return nil, fmt.Errorf("load rules %s: %w", path, err)
		}
		comp.Sources = append(comp.Sources, path)
	}

	// Load definition
	if l.DefinitionPath != "" {
		def, err := LoadDefinition(l.DefinitionPath)
		if err != nil {
			return nil, fmt.Errorf("load definition: %w", err)
		}
		q, err := Apply(comp.KB, def)
		if err != nil {
			return nil, fmt.Errorf("apply definition %s: %w", l.DefinitionPath, err)
		}
		comp.Query = q
		comp.Sources = append(comp.Sources, l.DefinitionPath)
	}

	return comp, nil
}

// Apply registers the definition's symbols, stores its properties, asserts its
// assertions and returns its parsed query.
func Apply(kb *kbs.KB, def *Definition) (Query, error) {
	for _, name := range def.Symbols {
		if _, err := kb.Intern(name); err != nil {
			return Query{}, fmt.Errorf("symbol %q: %w", name, err)
		}
	}

	// Sorted so errors are reported deterministically
	names := make([]string, 0, len(def.Properties))
	for name := range def.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		target, err := kb.Intern(name)
		if err != nil {
			return Query{}, fmt.Errorf("property target %q: %w", name, err)
		}
		keys := make([]string, 0, len(def.Properties[name]))
		for k := range def.Properties[name] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			prop, err := kb.Intern(k)
			if err != nil {
				return Query{}, fmt.Errorf("property %q: %w", k, err)
			}
			v, err := literal(kb, def.Properties[name][k])
			if err != nil {
				return Query{}, fmt.Errorf("property %s.%s: %w", name, k, err)
			}
			if err := kb.SetProperty(target, prop, v); err != nil {
				return Query{}, fmt.Errorf("property %s.%s: %w", name, k, err)
			}
		}
	}

	for i, text := range def.Assertions {
		f, err := rules.ParseExpr(kb, text)
		if err != nil {
			return Query{}, fmt.Errorf("assertion %d: %w", i+1, err)
		}
		if err := kb.Assert(f); err != nil {
			return Query{}, fmt.Errorf("assertion %d: %w", i+1, err)
		}
	}

	var q Query
	var err error
	if q.If, err = parseAll(kb, def.Queries.If); err != nil {
		return Query{}, fmt.Errorf("query assumption: %w", err)
	}
	if q.Ask, err = parseAll(kb, def.Queries.Ask); err != nil {
		return Query{}, fmt.Errorf("query: %w", err)
	}
	return q, nil
}

func parseAll(kb *kbs.KB, texts []string) ([]kbs.Factor, error) {
	out := make([]kbs.Factor, 0, len(texts))
	for _, text := range texts {
		f, err := rules.ParseExpr(kb, text)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// literal converts a decoded YAML scalar into a factor
func literal(kb *kbs.KB, v any) (kbs.Factor, error) {
	switch x := v.(type) {
	case int:
		return kbs.Int(int64(x)), nil
	case int64:
		return kbs.Int(x), nil
	case uint64:
		if x > 1<<63-1 {
			return nil, fmt.Errorf("%w: %d out of range", internalerr.ErrInvalidConfig, x)
		}
		return kbs.Int(int64(x)), nil
	case float64:
		f := kbs.Float(x)
		if kbs.IsNull(f) {
			return nil, fmt.Errorf("%w: %v is not a finite number", internalerr.ErrInvalidConfig, x)
		}
		return f, nil
	case bool:
		return kbs.BoolOf(x), nil
	case string:
		return rules.ParseExpr(kb, x)
	case nil:
		return nil, fmt.Errorf("%w: missing value", internalerr.ErrInvalidConfig)
	}
	return nil, fmt.Errorf("%w: unsupported value %v (%T)", internalerr.ErrInvalidConfig, v, v)
}
