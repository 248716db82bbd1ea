package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), err
}

func TestCLI_RunThenSearch(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,1\nb,2,extra\n"), 0o644))

	logPath := filepath.Join(dir, "aggregator.log")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
storage:
  path: %q
  columns: 3
log:
  level: debug
  output_paths: [%q]
`, filepath.Join(dir, "db", "agg.db"), logPath)), 0o644))

	out, err := execute(t, "--config", cfgPath, "run", "--csv", csvPath, "--column", "column_3", "--value", "extra")
	require.NoError(t, err, out)
	assert.Contains(t, out, "people.csv")
	assert.Contains(t, out, "extra")

	out, err = execute(t, "--config", cfgPath, "search", "column_1", "a")
	require.NoError(t, err, out)
	assert.Contains(t, out, `column_1 = "a"`)

	out, err = execute(t, "--config", cfgPath, "search", "nope", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema violation")

	out, err = execute(t, "--config", cfgPath, "runs", "--limit", "5")
	require.NoError(t, err, out)
	assert.Contains(t, out, "partial")

	logs, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logs), `"msg":"run finished"`)
}
