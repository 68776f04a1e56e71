package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "kbs.yaml")

	content := `db_path: /var/lib/kbs/history.db
log_level: debug
metrics_addr: ":9102"
rules_paths:
  - base.rules
  - extra.rules
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.DBPath != "/var/lib/kbs/history.db" {
		t.Errorf("Expected db_path to be read, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log_level debug, got %q", cfg.LogLevel)
	}
	if cfg.MetricsAddr != ":9102" {
		t.Errorf("Expected metrics_addr :9102, got %q", cfg.MetricsAddr)
	}
	if len(cfg.RulesPaths) != 2 {
		t.Errorf("Expected 2 rules paths, got %d", len(cfg.RulesPaths))
	}
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "kbs.yaml")
	os.WriteFile(path, []byte("metrics_addr: \":9102\"\n"), 0644)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Partial config should load: %v", err)
	}

	def := DefaultConfig()
	if cfg.DBPath != def.DBPath {
		t.Errorf("Expected default db_path %q, got %q", def.DBPath, cfg.DBPath)
	}
	if cfg.LogLevel != def.LogLevel {
		t.Errorf("Expected default log_level %q, got %q", def.LogLevel, cfg.LogLevel)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	cases := map[string]string{
		"malformed":  "log_level: [unclosed\n",
		"bad level":  "log_level: loud\n",
		"empty path": "rules_paths:\n  - \"\"\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tmpDir, name+".yaml")
			os.WriteFile(path, []byte(content), 0644)

			_, err := LoadConfig(path)
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig("/nonexistent/kbs.yaml")
	if err == nil {
		t.Error("Should error on missing file")
	}
}

func TestLoadDefinition(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "kb.yaml")

	content := `symbols: [x, y]
properties:
  fido:
    legs: 4
    color: brown
assertions:
  - eq(add(x, y), 10)
queries:
  if:
    - eq(x, 4)
  ask: [y]
`
	os.WriteFile(path, []byte(content), 0644)

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("Failed to load definition: %v", err)
	}

	if len(def.Symbols) != 2 {
		t.Errorf("Expected 2 symbols, got %d", len(def.Symbols))
	}
	if def.Properties["fido"]["legs"] != 4 {
		t.Errorf("Expected fido.legs = 4, got %v", def.Properties["fido"]["legs"])
	}
	if len(def.Assertions) != 1 {
		t.Errorf("Expected 1 assertion, got %d", len(def.Assertions))
	}
	if len(def.Queries.If) != 1 || len(def.Queries.Ask) != 1 {
		t.Errorf("Expected 1 assumption and 1 query, got %v", def.Queries)
	}
}

func TestLoadDefinitionQuotedFlowItems(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "kb.yaml")

	content := `assertions: ["eq(add(x, y), 10)"]
queries:
  if: ['eq(x, 4)', "say(\"a, (b\")"]
  ask: [y]
`
	os.WriteFile(path, []byte(content), 0644)

	def, err := LoadDefinition(path)
	if err != nil {
		t.Fatalf("Failed to load definition: %v", err)
	}
	if len(def.Queries.If) != 2 || def.Queries.If[0] != "eq(x, 4)" {
		t.Errorf("Expected the quoted items intact, got %v", def.Queries.If)
	}
	if len(def.Assertions) != 1 || def.Assertions[0] != "eq(add(x, y), 10)" {
		t.Errorf("Expected the quoted assertion intact, got %v", def.Assertions)
	}
}

func TestLoadDefinitionSplitFlowItems(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"if", "queries:\n  if: [eq(x, 4)]\n"},
		{"ask", "queries:\n  ask: [add(x, y)]\n"},
		{"assertions", "assertions: [eq(x, 4)]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "kb.yaml")
			os.WriteFile(path, []byte(tt.content), 0644)

			_, err := LoadDefinition(path)
			if !errors.Is(err, internalerr.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
