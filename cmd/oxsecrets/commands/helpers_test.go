package commands

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxsecrets/oxsecrets/internal/config"
	"github.com/oxsecrets/oxsecrets/internal/logging"
)

// testConfig writes a CSV secrets file plus a settings file pointing at it
// and returns a ready Config for the file backend.
func testConfig(t *testing.T, csvContent string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	secretsPath := filepath.Join(dir, "secrets.csv")
	require.NoError(t, os.WriteFile(secretsPath, []byte(csvContent), 0o600))

	settingsPath := filepath.Join(dir, "oxsecrets.yaml")
	settings := "mode: file\nfile: " + secretsPath + "\n"
	require.NoError(t, os.WriteFile(settingsPath, []byte(settings), 0o600))

	return &config.Config{
		Path:   settingsPath,
		Logger: logging.New(false, true),
	}
}

const testCSV = "name,category,value,notes\n" +
	"db_password,prod,secret1,\n" +
	"api_key,prod,secret2,\n" +
	"example_pw,root,topsecret,\n"

// captureOutput executes the command and returns what it wrote to stdout.
func captureOutput(t *testing.T, cmd *cobra.Command, args []string) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	execErr := cmd.Execute()

	_ = w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	if execErr != nil {
		t.Logf("command output before error: %s", buf.String())
		require.NoError(t, execErr)
	}
	return buf.String()
}

func TestParseLoaderParams(t *testing.T) {
	params, err := parseLoaderParams([]string{
		"profile/ci",
		"region/eu-west-1",
		"filename//tmp/secrets.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"profile":  "ci",
		"region":   "eu-west-1",
		"filename": "/tmp/secrets.csv",
	}, params, "only the first slash separates key from value")

	empty, err := parseLoaderParams(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestParseLoaderParamsRejectsMalformedPairs(t *testing.T) {
	for _, pair := range []string{"noslash", "/leading"} {
		_, err := parseLoaderParams([]string{pair})
		require.Error(t, err, pair)
		assert.Contains(t, err.Error(), "loader")
	}
}
