package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xab-mack/dosguard/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "dosguard"}
	AddCommands(root)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRulesListShowsBuiltins(t *testing.T) {
	out, err := execute(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "DOS-UNCHECKED-CALL")
	assert.Contains(t, out, "DOS-GAS-GRIEFING")
	assert.Contains(t, out, "DOS-UNBOUNDED-LOOP")
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "init", "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, config.FileName)

	cfg, err := config.LoadFile(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "low", cfg.SeverityThreshold)
	assert.Equal(t, "solc", cfg.SolcPath)
	assert.Empty(t, cfg.Rules)
}

func TestScanMissingPathFails(t *testing.T) {
	_, err := execute(t, "scan", filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestScanEmptyDirTableOutput(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "scan", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Findings: 0")
}

func TestScanJSONToFile(t *testing.T) {
	dir := t.TempDir()
	outFile := filepath.Join(t.TempDir(), "report.json")
	_, err := execute(t, "scan", dir, "--format", "json", "--out", outFile)
	require.NoError(t, err)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"findings"`)
}
