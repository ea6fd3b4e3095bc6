package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "skirmish.yaml", skirmish)
	return dir
}

func TestTest_AllPass(t *testing.T) {
	dir := scenarioDir(t)

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ skirmish")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTest_FailureExitsOne(t *testing.T) {
	dir := scenarioDir(t)
	failing := strings.Replace(skirmish, "name: skirmish", "name: broken", 1)
	failing = strings.Replace(failing, "count: 1}", "count: 3}", 1)
	writeFile(t, dir, "broken.yaml", failing)

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTest_LoadErrorIsAFailure(t *testing.T) {
	dir := scenarioDir(t)
	writeFile(t, dir, "typo.yaml", "name: typo\nunitz: []\n")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ typo.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTest_Filter(t *testing.T) {
	dir := scenarioDir(t)
	writeFile(t, dir, "other.yaml", "name: other\nunitz: []\n")

	out, err := execute(t, "test", dir, "--filter", "skir*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")

	out, err = execute(t, "test", dir, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")

	_, err = execute(t, "test", dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_GoldenRoundTrip(t *testing.T) {
	dir := scenarioDir(t)
	golden := filepath.Join(dir, "golden", "skirmish.golden")

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ skirmish (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"scenario":"skirmish","trace":[`))

	_, err = execute(t, "test", dir)
	require.NoError(t, err, "golden written by --update must match")

	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario":"skirmish"}`), 0644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_JSON(t *testing.T) {
	dir := scenarioDir(t)

	out, err := execute(t, "--format", "json", "test", dir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "skirmish", resp.Data.Scenarios[0].Name)
}

func TestTest_MissingDirectory(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestFindScenarioFiles_SkipsGolden(t *testing.T) {
	dir := scenarioDir(t)
	writeFile(t, dir, "golden/skirmish.yaml", "not a scenario")
	writeFile(t, dir, "nested/more.yml", skirmish)
	writeFile(t, dir, "notes.txt", "ignored")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "nested", "more.yml"),
		filepath.Join(dir, "skirmish.yaml"),
	}, files)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "ambush.golden"), goldenFilePath(filepath.Join("s", "ambush.yaml")))
}
