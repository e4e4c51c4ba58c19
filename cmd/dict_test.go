package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/gendercode/config"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/gender"
	"github.com/otherjamesbrown/gendercode/pkg/names"
	"github.com/otherjamesbrown/gendercode/pkg/names/store"
)

func TestDictCommand_HasSubcommands(t *testing.T) {
	cmd := NewDictCommand(nil)
	assert.Equal(t, "dict", cmd.Use)

	for _, name := range []string{"stats", "lookup", "import", "export"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
		assert.NotEmpty(t, sub.Short, "%s should have Short description", name)
	}

	explain, _, err := cmd.Find([]string{"explain"})
	require.NoError(t, err)
	assert.Equal(t, "lookup", explain.Name(), "explain is an alias of lookup")
}

func TestRunDictStats_JSON(t *testing.T) {
	_, deps := newTestEnv(t, withFormat(config.OutputFormatJSON))

	var out bytes.Buffer
	require.NoError(t, runDictStats(context.Background(), deps, &out))

	var stats []names.TierStats
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))

	byTier := map[names.Tier]names.TierStats{}
	for _, st := range stats {
		byTier[st.Tier] = st
	}
	assert.Equal(t, 4, byTier[names.TierUS].Indexed)
	assert.Equal(t, 1, byTier[names.TierWildcard].Indexed)
	assert.Equal(t, 1, byTier[names.TierForeign].Indexed)
	assert.Equal(t, 2, byTier[names.TierAll].Entries)
}

func TestRunDictStats_Text(t *testing.T) {
	env, deps := newTestEnv(t, nil)

	var out bytes.Buffer
	require.NoError(t, runDictStats(context.Background(), deps, &out))
	assert.Contains(t, out.String(), "Source: file:"+env.dictPath)
	assert.Contains(t, out.String(), "wildcard")
}

func TestRunDictImportExport_SQLite(t *testing.T) {
	env, deps := newTestEnv(t, nil)
	env.cfg.Dictionary.Source = config.SourceSQLite
	env.cfg.Dictionary.Path = filepath.Join(env.dir, "db", "names.db")

	importPath := filepath.Join(env.dir, "import.toml")
	require.NoError(t, store.WriteFile(importPath, testTables()))

	var out bytes.Buffer
	require.NoError(t, runDictImport(context.Background(), deps, &out, importPath))
	assert.Contains(t, out.String(), "Imported 8 entries")

	exportPath := filepath.Join(env.dir, "export.json")
	out.Reset()
	require.NoError(t, runDictExport(context.Background(), deps, &out, exportPath))
	assert.Contains(t, out.String(), "Exported 8 entries")

	exported, err := store.NewFileSource(exportPath)
	require.NoError(t, err)
	got, err := exported.Tables(context.Background())
	require.NoError(t, err)

	want := testTables()
	for _, tier := range names.Tiers {
		assert.ElementsMatch(t, want.Get(tier), got.Get(tier), "table %s", tier)
	}
}

func TestRunDictImport_ReplacesTables(t *testing.T) {
	env, deps := newTestEnv(t, withFormat(config.OutputFormatJSON))

	replacement := names.Tables{US: []names.Entry{{Pattern: "alex", Gender: gender.MostlyMale}}}
	importPath := filepath.Join(env.dir, "small.yaml")
	require.NoError(t, store.WriteFile(importPath, replacement))

	require.NoError(t, runDictImport(context.Background(), deps, &bytes.Buffer{}, importPath))

	var out bytes.Buffer
	require.NoError(t, runClassify(context.Background(), deps, &out, []string{"Alex", "John"}, true))

	var matches []names.Match
	require.NoError(t, json.Unmarshal(out.Bytes(), &matches))
	require.Len(t, matches, 2)
	assert.Equal(t, gender.MostlyMale, matches[0].Gender)
	assert.False(t, matches[1].Matched, "previous tables are replaced")
}

func TestRunDictImport_UnsupportedFormat(t *testing.T) {
	_, deps := newTestEnv(t, nil)

	err := runDictImport(context.Background(), deps, &bytes.Buffer{}, "names.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, gcerrors.ErrUnsupportedFormat)
}

func TestRunDictExport_UnsupportedFormat(t *testing.T) {
	_, deps := newTestEnv(t, nil)

	err := runDictExport(context.Background(), deps, &bytes.Buffer{}, "names.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, gcerrors.ErrUnsupportedFormat)
}
