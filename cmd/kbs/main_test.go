package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kbs/pkg/kbs/internalerr"
	"github.com/cognicore/kbs/pkg/kbs/store"
)

const (
	petsRules = "testdata/pets.rules"
	petsDef   = "testdata/pets.yaml"
)

// execute runs the CLI with fresh flag values and returns what it printed
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	verbose = false
	configPath, definitionPath, dbPath = "", "", ""
	rulesPaths = nil
	solvedOnly = false
	queryAssumptions = nil
	closureClass = "is"
	reportOut, reportTitle = "", ""
	historyLimit = store.DefaultListLimit

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

var runID = regexp.MustCompile(`run ([0-9A-Z]{26})`)

func TestSolveRecordsRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "", "solve", "-r", petsRules, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "x=4")
	assert.Contains(t, out, "y=6")
	assert.Contains(t, out, "fido=? [is(dog)]")
	assert.Contains(t, out, "((x + y) = 10)  # T")
	assert.Contains(t, out, "solved in")
	assert.NotContains(t, out, "conflict")

	m := runID.FindStringSubmatch(out)
	require.NotNil(t, m, "solve prints the run id")

	out, err = execute(t, "", "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, m[1])
	assert.Contains(t, out, petsRules)

	out, err = execute(t, "", "history", "--db", db, m[1])
	require.NoError(t, err)
	assert.Contains(t, out, "y = 6")
	assert.Contains(t, out, "fido = ? [is(dog)]")
	assert.Contains(t, out, "(x = 4)")
}

func TestSolvedOnly(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "", "solve", "-r", petsRules, "--db", db, "--solved-only")
	require.NoError(t, err)
	assert.NotContains(t, out, "legs=")
	assert.Contains(t, out, "y=6")
}

func TestQueryDefinition(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "", "query", "-r", petsRules, "-d", petsDef, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "y = 6\nwet = T\n", out)
}

func TestQueryAssumption(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "", "query", "-r", petsRules, "--db", db, "--if", "eq(z, 2)", "add(z, x)", "z")
	require.NoError(t, err)
	assert.Equal(t, "(z + x) = 6\nz = 2\n", out)
}

func TestQueryNothingToAsk(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	_, err := execute(t, "", "query", "-r", petsRules, "--db", db)
	assert.ErrorContains(t, err, "nothing to ask")
}

func TestConflicts(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	rules := writeFile(t, "bad.rules", "eq(x, 1)\neq(x, 2)\n")

	out, err := execute(t, "", "conflicts", "-r", rules, "--db", db)
	require.ErrorIs(t, err, errConflicts)
	assert.Contains(t, out, "1. ")
	assert.Contains(t, out, "x = 1")

	out, err = execute(t, "", "conflicts", "-r", petsRules, "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No conflicts.\n", out)
}

func TestClosure(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "", "closure", "-r", petsRules, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "fido::is(animal)")

	out, err = execute(t, "", "closure", "-r", petsRules, "--db", db, "fido")
	require.NoError(t, err)
	assert.Equal(t, "fido::is(dog)\nfido::is(animal)\n", out)

	out, err = execute(t, "", "closure", "-r", petsRules, "--db", db, "fido", "animal")
	require.NoError(t, err)
	assert.Contains(t, out, "Inference chain for fido::is(animal)")

	_, err = execute(t, "", "closure", "-r", petsRules, "--db", db, "nobody")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pets.html")

	_, err := execute(t, "", "report", "-r", petsRules, "--db", filepath.Join(dir, "h.db"), "-o", path, "--title", "Pets")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(data)
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<title>Pets</title>")
	assert.Contains(t, page, "fido::is(animal)")
}

func TestRepl(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	input := strings.Join([]string{
		"eq(a, 3)",
		":query add(a, 1)",
		"not(a, b)",
		":bogus",
		":save",
		":quit",
		"eq(never, 1)",
	}, "\n")

	out, err := execute(t, input, "repl", "-r", petsRules, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "(a + 1) = 4")
	assert.Contains(t, out, "Error: line 1:")
	assert.Contains(t, out, "unknown command :bogus")
	assert.Regexp(t, runID, out)
	assert.Contains(t, out, "Goodbye!")

	out, err = execute(t, "", "history", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "passes"))
}

func TestHistoryUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	out, err := execute(t, "", "history", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs recorded.\n", out)

	_, err = execute(t, "", "history", "--db", db, "01HZX3K9A2B4C6D8E0F2G4H6J8")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestBadConfig(t *testing.T) {
	cfgPath := writeFile(t, "kbs.yaml", "log_level: loud\n")

	_, err := execute(t, "", "solve", "--config", cfgPath)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestConfigRulesPaths(t *testing.T) {
	dir := t.TempDir()
	rules, err := filepath.Abs(petsRules)
	require.NoError(t, err)
	cfgPath := writeFile(t, "kbs.yaml", "log_level: warn\ndb_path: "+filepath.Join(dir, "cfg.db")+"\nrules_paths:\n  - "+rules+"\n")

	out, err := execute(t, "", "solve", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "y=6")
	assert.FileExists(t, filepath.Join(dir, "cfg.db"))
}
