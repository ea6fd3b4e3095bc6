package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogueYAML = `
templates:
  - name: rifle-coy
    skill: regular
    stance: hasty defence
    comm_effective: 2000
    comm_max: 5000
`

func TestValidate_Valid(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "skirmish.yaml", skirmish)
	cat := writeFile(t, dir, "templates.yaml", catalogueYAML)

	out, err := execute(t, "validate", scenario, cat)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 file(s) valid")
}

func TestValidate_CUECatalogue(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cat/templates.cue", `package catalogue

template: "rifle-coy": {
	skill:          "regular"
	comm_effective: 2000
	comm_max:       5000
}
`)

	out, err := execute(t, "validate", dir+"/cat")
	require.NoError(t, err)
	assert.Contains(t, out, "1 file(s) valid")
}

func TestValidate_Invalid(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", skirmish)
	badMethod := writeFile(t, dir, "dig.yaml", strings.Replace(skirmish, "method: rally", "method: dig", 1))
	badSkill := writeFile(t, dir, "templates.yaml", strings.Replace(catalogueYAML, "regular", "heroic", 1))
	notes := writeFile(t, dir, "notes.txt", "hello")

	out, err := execute(t, "--format", "json", "validate", good, badMethod, badSkill, notes)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, 4, resp.Data.Checked)
	require.Len(t, resp.Data.Errors, 3)
	assert.Equal(t, badMethod, resp.Data.Errors[0].Path)
	assert.Contains(t, resp.Data.Errors[0].Message, "no such method")
	assert.Contains(t, resp.Data.Errors[1].Message, "skill")
	assert.Contains(t, resp.Data.Errors[2].Message, "unsupported file type")
}

func TestValidate_MissingPath(t *testing.T) {
	_, err := execute(t, "validate", "does-not-exist.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestIsCatalogueYAML(t *testing.T) {
	assert.True(t, isCatalogueYAML([]byte(catalogueYAML)))
	assert.False(t, isCatalogueYAML([]byte(skirmish)))
	assert.False(t, isCatalogueYAML([]byte("units: []\n")))
}
