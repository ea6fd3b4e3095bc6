package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/opcon/internal/c4i"
)

func TestSitrep_AfterRun(t *testing.T) {
	scenario := writeFile(t, t.TempDir(), "skirmish.yaml", skirmish)

	out, err := execute(t, "sitrep", scenario, "--unit", "b")
	require.NoError(t, err)
	assert.Contains(t, out, "SITREP B Coy (b)")
	assert.Contains(t, out, "suppression: BLACK")
	assert.Contains(t, out, "command:     GREEN")
	assert.NotContains(t, out, "A Coy")
}

func TestSitrep_Initial(t *testing.T) {
	scenario := writeFile(t, t.TempDir(), "skirmish.yaml", skirmish)

	out, err := execute(t, "sitrep", scenario, "--unit", "b", "--initial")
	require.NoError(t, err)
	assert.Contains(t, out, "suppression: GREEN")
}

func TestSitrep_JSONAllUnits(t *testing.T) {
	scenario := writeFile(t, t.TempDir(), "skirmish.yaml", skirmish)

	out, err := execute(t, "--format", "json", "sitrep", scenario)
	require.NoError(t, err)

	var resp struct {
		Data []c4i.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "a", resp.Data[0].UID)
	assert.Equal(t, "b", resp.Data[1].UID)
	assert.Equal(t, "BLACK", resp.Data[1].Suppression)
	assert.InDelta(t, 0.8333, resp.Data[1].HumanFactor, 0.001)
}

func TestSitrep_ConfiguredCap(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "skirmish.yaml", skirmish)
	cfg := writeFile(t, dir, "opcon.yaml", "human_factor_cap: 20\n")

	out, err := execute(t, "--config", cfg, "sitrep", scenario, "--unit", "b")
	require.NoError(t, err)
	assert.Contains(t, out, "suppression: RED")
}

func TestSitrep_UnknownUnit(t *testing.T) {
	scenario := writeFile(t, t.TempDir(), "skirmish.yaml", skirmish)

	_, err := execute(t, "sitrep", scenario, "--unit", "z")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown unit")
}
