package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/electrotonic/internal/constants"
	"github.com/chrissnell/electrotonic/pkg/responseformat"
)

const chainSWC = `# three node chain
1 1 0 0 0 5 -1
2 3 1000 0 0 4 1
3 3 2000 0 0 3 2
`

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

// execute runs the root command and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCommandStructure(t *testing.T) {
	cmd := newRootCmd()

	actual := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		actual[sub.Name()] = true
	}
	for _, expected := range []string{"compute", "serve", "runs", "config", "version"} {
		assert.True(t, actual[expected], "missing command: %s", expected)
	}

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config-backend"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("debug"))
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "electrotonic "+constants.Version))
}

func TestComputeCSV(t *testing.T) {
	skel := writeFile(t, t.TempDir(), "chain.swc", chainSWC)

	out, _, err := execute(t, "compute", skel, "--radius-method", "node", "--format", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(responseformat.Columns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "3,1,"), lines[1])
}

func TestComputeJSONToFile(t *testing.T) {
	dir := t.TempDir()
	skel := writeFile(t, dir, "chain.swc", chainSWC)
	outPath := filepath.Join(dir, "table.json")

	stdout, _, err := execute(t, "compute", skel, "--radius-method", "node", "-f", "json", "-o", outPath, "--mode", "compatible", "--workers", "2")
	require.NoError(t, err)
	assert.Empty(t, stdout)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var table struct {
		Segments []struct {
			StartNode int64   `json:"start_node"`
			EndNode   int64   `json:"end_node"`
			Length    float64 `json:"length"`
			Radius    float64 `json:"radius"`
		} `json:"segments"`
		Summary struct {
			Segments int `json:"segments"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(raw, &table))
	require.Len(t, table.Segments, 1)
	assert.Equal(t, int64(3), table.Segments[0].StartNode)
	assert.InDelta(t, 2e-4, table.Segments[0].Length, 1e-12)
	assert.InDelta(t, 3e-7, table.Segments[0].Radius, 1e-15)
	assert.Equal(t, 1, table.Summary.Segments)
}

func TestComputeErrors(t *testing.T) {
	dir := t.TempDir()
	skel := writeFile(t, dir, "chain.swc", chainSWC)
	collapsed := writeFile(t, dir, "collapsed.swc", "1 1 0 0 0 1 -1\n2 3 0 0 0 1 1\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"compute", filepath.Join(dir, "nope.swc")}},
		{"unsupported extension", []string{"compute", writeFile(t, dir, "cell.txt", "")}},
		{"bad mode", []string{"compute", skel, "--mode", "legacy"}},
		{"bad format", []string{"compute", skel, "--format", "xml"}},
		{"bad workers", []string{"compute", skel, "--workers", "0"}},
		{"negative rm", []string{"compute", skel, "--rm", "-3"}},
		{"zero rm", []string{"compute", skel, "--rm", "0"}},
		{"zero length segment", []string{"compute", collapsed, "--radius-method", "node"}},
		{"save without storage", []string{"compute", skel, "--save"}},
		{"no argument", []string{"compute"}},
		{"bad backend", []string{"compute", skel, "--config", skel, "--config-backend", "toml"}},
		{"missing yaml config", []string{"compute", skel, "--config", filepath.Join(dir, "nope.yaml")}},
		{"NaN radius", []string{"compute", writeFile(t, dir, "nan.swc", "1 1 0 0 0 NaN -1\n2 3 0 0 1000 1 1\n"), "--radius-method", "node"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMissingSQLiteConfigIsNotCreated(t *testing.T) {
	dir := t.TempDir()
	skel := writeFile(t, dir, "chain.swc", chainSWC)
	cfg := filepath.Join(dir, "typo.db")

	_, _, err := execute(t, "compute", skel, "--config", cfg, "--config-backend", "sqlite")
	require.Error(t, err)
	assert.NoFileExists(t, cfg)
}

func TestSaveListAndShowRuns(t *testing.T) {
	dir := t.TempDir()
	skel := writeFile(t, dir, "chain.swc", chainSWC)
	cfgPath := writeFile(t, dir, "config.yaml", "storage:\n  sqlite:\n    path: "+filepath.Join(dir, "runs.db")+"\n")

	_, stderr, err := execute(t, "--config", cfgPath, "compute", skel, "--radius-method", "node", "--save", "-f", "csv")
	require.NoError(t, err)

	match := regexp.MustCompile(`saved run ([0-9a-f-]{36})`).FindStringSubmatch(stderr)
	require.Len(t, match, 2, stderr)
	id := match[1]

	out, _, err := execute(t, "--config", cfgPath, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "chain")

	out, _, err = execute(t, "--config", cfgPath, "runs", "show", id, "-f", "csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "3,1,"))

	_, _, err = execute(t, "--config", cfgPath, "runs", "show", "9b2f6d8e-31a4-4d6c-8f0a-5d1f2c3b4a59")
	assert.Error(t, err)
	_, _, err = execute(t, "--config", cfgPath, "runs", "show", "not-a-uuid")
	assert.Error(t, err)
}

func TestConfigConvertAndCheck(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "config.yaml", `model:
  rm: 25
compute:
  surface-area-mode: compatible
  workers: 4
rest:
  port: 9090
`)
	dbPath := filepath.Join(dir, "config.db")

	out, _, err := execute(t, "config", "convert", "--yaml", yamlPath, "--sqlite", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Conversion complete")

	_, _, err = execute(t, "config", "convert", "--yaml", yamlPath, "--sqlite", dbPath)
	assert.Error(t, err, "existing database without --force")

	_, _, err = execute(t, "config", "convert", "--yaml", yamlPath, "--sqlite", dbPath, "--force")
	require.NoError(t, err)

	out, _, err = execute(t, "--config-backend", "sqlite", "--config", dbPath, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Rm=25")
	assert.Contains(t, out, "mode=compatible workers=4")
	assert.Contains(t, out, ":9090")
}
