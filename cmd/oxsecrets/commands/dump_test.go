package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpCommandSortedLines(t *testing.T) {
	cfg := testConfig(t, testCSV)

	cmd := NewDumpCommand(cfg)
	output := captureOutput(t, cmd, []string{"--category", "prod"})

	assert.Equal(t, "api_key=secret2\ndb_password=secret1\n", output)
}

func TestDumpCommandJSON(t *testing.T) {
	cfg := testConfig(t, testCSV)

	cmd := NewDumpCommand(cfg)
	output := captureOutput(t, cmd, []string{"--category", "prod", "--json"})

	var dict map[string]string
	require.NoError(t, json.Unmarshal([]byte(output), &dict))
	assert.Equal(t, map[string]string{
		"db_password": "secret1",
		"api_key":     "secret2",
	}, dict)
}

func TestDumpCommandIgnoresEnvOverrides(t *testing.T) {
	t.Setenv("OX_SECRETS_PROD_DB_PASSWORD", "from-env")
	cfg := testConfig(t, testCSV)

	cmd := NewDumpCommand(cfg)
	output := captureOutput(t, cmd, []string{"--category", "prod"})

	assert.Contains(t, output, "db_password=secret1")
}

func TestNamesCommand(t *testing.T) {
	cfg := testConfig(t, testCSV)

	cmd := NewNamesCommand(cfg)
	output := captureOutput(t, cmd, []string{"--category", "prod"})

	assert.Equal(t, "api_key\ndb_password\n", output)
	assert.NotContains(t, output, "secret1", "values never appear in names output")
}

func TestBackendsCommandMarksDefault(t *testing.T) {
	cfg := testConfig(t, testCSV)

	cmd := NewBackendsCommand(cfg)
	output := captureOutput(t, cmd, []string{})

	assert.Contains(t, output, "file (default)")
	assert.Contains(t, output, "aws\n")
	assert.Contains(t, output, "azure\n")
	assert.Contains(t, output, "env\n")
	assert.Contains(t, output, "gcp\n")
	assert.Contains(t, output, "keyring\n")
}

func TestForgetCommand(t *testing.T) {
	cfg := testConfig(t, testCSV)

	cmd := NewForgetCommand(cfg)
	cmd.SetArgs([]string{"--mode", "file"})
	require.NoError(t, cmd.Execute())
}
