package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInventory = `nodes:
  - id: slave2
    address: 10.0.0.3
  - id: master
    address: 10.0.0.1
  - id: slave1
    address: 10.0.0.2
`

// setupCLI writes an inventory and a config pointing at it and returns the output dir
func setupCLI(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	invPath := filepath.Join(dir, "inventory.yaml")
	require.NoError(t, os.WriteFile(invPath, []byte(testInventory), 0644))

	outDir := filepath.Join(dir, "conf")
	keyDir := filepath.Join(dir, "ssh")
	config := "inventory:\n  path: " + invPath + "\n" +
		"ssh:\n  key_dir: " + keyDir + "\n  insecure_ignore_host_key: true\n" +
		"render:\n  output_dir: " + outDir + "\n" +
		"log_level: error\n"
	cfgPath := filepath.Join(dir, "clustercfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(config), 0644))
	t.Setenv("CLUSTERCFG_CONFIG", cfgPath)

	return outDir
}

func execCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, logLevel, jsonLogs, localID, inventoryPath = "", "", false, "", ""
	planFormat = "yaml"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlanCommand(t *testing.T) {
	setupCLI(t)

	out, err := execCLI(t, "plan", "-o", "json", "--local-id", "slave1")
	require.NoError(t, err)

	var doc struct {
		Coordinator struct {
			ID string `json:"id"`
		} `json:"coordinator"`
		Replication int      `json:"replication"`
		Quorum      []string `json:"quorum"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "master", doc.Coordinator.ID)
	assert.Equal(t, 3, doc.Replication)
	assert.Equal(t, []string{"master", "slave1", "slave2"}, doc.Quorum)
}

func TestPlanCommandUnknownFormat(t *testing.T) {
	setupCLI(t)

	_, err := execCLI(t, "plan", "-o", "toml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRenderCommand(t *testing.T) {
	outDir := setupCLI(t)

	out, err := execCLI(t, "render", "--local-id", "slave2")
	require.NoError(t, err)
	assert.Contains(t, out, "written")

	slaves, err := os.ReadFile(filepath.Join(outDir, "hadoop", "slaves"))
	require.NoError(t, err)
	assert.Equal(t, []string{"master", "slave1", "slave2"}, strings.Fields(string(slaves)))

	out, err = execCLI(t, "render", "--local-id", "slave2")
	require.NoError(t, err)
	assert.NotContains(t, out, "written", "a second render leaves files untouched")
}

func TestTrustCommandOnWorker(t *testing.T) {
	setupCLI(t)

	out, err := execCLI(t, "trust", "--local-id", "slave1")
	require.NoError(t, err)
	assert.Contains(t, out, "Trust skipped: slave1 is not the coordinator (master)")
}

func TestKeygenCommand(t *testing.T) {
	setupCLI(t)

	out, err := execCLI(t, "keygen", "--local-id", "master")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated")
	assert.Contains(t, out, "SHA256:")
	assert.Contains(t, out, "hduser@master")

	out, err = execCLI(t, "keygen", "--local-id", "master")
	require.NoError(t, err)
	assert.NotContains(t, out, "Generated", "an existing key pair is reused")
}

func TestHistoryRequiresDatabase(t *testing.T) {
	setupCLI(t)

	_, err := execCLI(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}
