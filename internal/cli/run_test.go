package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opcon/internal/store"
)

func TestRun_Text(t *testing.T) {
	scenario := writeFile(t, t.TempDir(), "skirmish.yaml", skirmish)

	out, err := execute(t, "run", scenario)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ skirmish")
	assert.Contains(t, out, "sim time:    1944-06-06T00:10:00Z")
	assert.Contains(t, out, "executed:    1")
	assert.Contains(t, out, "pending:     1")
	assert.Contains(t, out, "resolutions: 1")
	assert.NotContains(t, out, "saved as")
	assert.Contains(t, out, "suppression 5")
}

func TestRun_JSON(t *testing.T) {
	scenario := writeFile(t, t.TempDir(), "skirmish.yaml", skirmish)

	out, err := execute(t, "--format", "json", "run", scenario)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	s := resp.Data
	assert.Equal(t, "skirmish", s.Scenario)
	assert.True(t, s.Pass)
	require.Len(t, s.Units, 2)
	assert.Equal(t, "b", s.Units[1].UID)
	assert.Equal(t, 5, s.Units[1].Suppression)
	assert.Empty(t, s.EventErrors)
}

func TestRun_SavesScheduleAndResolutions(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "skirmish.yaml", skirmish)
	dbPath := filepath.Join(dir, "opcon.db")

	out, err := execute(t, "run", "--db", dbPath, "--run", "s-1", scenario)
	require.NoError(t, err)
	assert.Contains(t, out, "saved as:    s-1")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	_, records, err := st.LoadSchedule(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b", records[0].ParentID)
	assert.Equal(t, "rally", records[0].Method)

	logged, err := st.Resolutions(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "a", logged[0].UnitID)
	assert.Equal(t, "attack", logged[0].Result.Label)
	assert.True(t, logged[0].Result.Success)
	assert.Equal(t, 4, logged[0].Result.Increment)
}

func TestRun_DatabaseFromConfig(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "skirmish.yaml", skirmish)
	dbPath := filepath.Join(dir, "from-config.db")
	cfg := writeFile(t, dir, "opcon.yaml", "db: "+dbPath+"\n")

	_, err := execute(t, "--config", cfg, "run", scenario)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	run, err := st.GetRun(context.Background(), "skirmish")
	require.NoError(t, err)
	assert.Equal(t, 1, run.EventCount)
}

func TestRun_FailingAssertionsExitOne(t *testing.T) {
	content := strings.Replace(skirmish, "count: 1}", "count: 2}", 1)
	scenario := writeFile(t, t.TempDir(), "wrong.yaml", content)

	out, err := execute(t, "run", scenario)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ skirmish")
	assert.Contains(t, out, "assertion 0 (trace_count)")
}

func TestRun_EventErrorsAreReported(t *testing.T) {
	content := strings.Replace(skirmish, "args: [b]", "args: [ghost]", 1)
	scenario := writeFile(t, t.TempDir(), "ghost.yaml", content)

	out, err := execute(t, "run", scenario)
	require.NoError(t, err)
	assert.Contains(t, out, "event error: call a.attack:")
	assert.Contains(t, out, "ghost")
}

func TestRun_CommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "run", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load scenario")

	bad := writeFile(t, dir, "bad.yaml", strings.Replace(skirmish, "template: rifle-coy}", "template: tank}", 1))
	_, err = execute(t, "run", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "tank")

	_, err = execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}
