package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/pkg/coding"
	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/gender"
)

func TestBatchCommand(t *testing.T) {
	cmd := NewBatchCommand(nil)

	assert.Equal(t, "batch", cmd.Use)
	assert.NotEmpty(t, cmd.Long)

	for _, name := range []string{"input", "out", "no-progress", "metrics-textfile"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "batch command should have --%s flag", name)
	}
	assert.Equal(t, "i", cmd.Flags().Lookup("input").Shorthand)
}

func TestParseInputs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []coding.Input
	}{
		{
			name:  "names only",
			input: "John\nMary\n",
			want:  []coding.Input{{FirstName: "John"}, {FirstName: "Mary"}},
		},
		{
			name:  "header and ids",
			input: "first_name,unique_id\nJohn,emp-1\nMary-Jane, emp-2\n",
			want:  []coding.Input{{FirstName: "John", UniqueID: "emp-1"}, {FirstName: "Mary-Jane", UniqueID: "emp-2"}},
		},
		{
			name:  "name header",
			input: "Name\nKim\n",
			want:  []coding.Input{{FirstName: "Kim"}},
		},
		{
			name:  "blank name kept",
			input: "John\n\"\"\nMary\n",
			want:  []coding.Input{{FirstName: "John"}, {FirstName: ""}, {FirstName: "Mary"}},
		},
		{
			name:  "quoted comma",
			input: "\"Smith, Jr.\",x\n",
			want:  []coding.Input{{FirstName: "Smith, Jr.", UniqueID: "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInputs(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInputs_Empty(t *testing.T) {
	_, err := parseInputs(strings.NewReader("first_name\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gcerrors.ErrValidation)
}

func TestReadInputs_MissingFile(t *testing.T) {
	_, deps := newTestEnv(t, nil)

	_, err := readInputs(deps, filepath.Join(t.TempDir(), "none.csv"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, gcerrors.ErrNotFound)
}

func TestReadInputs_Encodings(t *testing.T) {
	tests := []struct {
		name    string
		charset string
		data    []byte
		want    []string
	}{
		{"utf-8 with byte order mark", "utf-8", []byte("\xef\xbb\xbffirst_name\nJosé\n"), []string{"José"}},
		{"windows-1252", "cp1252", []byte("Ren\xe9e,r1\nJ\xfcrgen,r2\n"), []string{"Renée", "Jürgen"}},
		{"latin1", "ISO-8859-1", []byte("Bj\xf6rn\n"), []string{"Björn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, deps := newTestEnv(t, nil)
			deps.Stdin = bytes.NewReader(tt.data)

			inputs, err := readInputs(deps, "-", tt.charset)
			require.NoError(t, err)
			var got []string
			for _, in := range inputs {
				got = append(got, in.FirstName)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadInputs_UnknownEncoding(t *testing.T) {
	_, deps := newTestEnv(t, nil)
	deps.Stdin = strings.NewReader("John\n")

	_, err := readInputs(deps, "-", "ebcdic")
	require.Error(t, err)
	assert.ErrorIs(t, err, gcerrors.ErrValidation)
}

func TestRunBatch_CSVFile(t *testing.T) {
	env, deps := newTestEnv(t, withFormat(config.OutputFormatCSV))

	input := filepath.Join(env.dir, "staff.csv")
	require.NoError(t, os.WriteFile(input, []byte("first_name,unique_id\nJohn,e1\nMary-Jane,e2\nZzyzx,e3\n"), 0o644))
	outPath := filepath.Join(env.dir, "coded.csv")

	var stdout bytes.Buffer
	err := runBatch(context.Background(), deps, &stdout, &bytes.Buffer{}, &batchOptions{input: input, out: outPath})
	require.NoError(t, err)
	assert.Empty(t, stdout.String(), "results go to --out")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "row,first_name,unique_id,gender\n1,John,e1,male\n2,Mary-Jane,e2,female\n3,Zzyzx,e3,unknown\n", string(data))
}

func TestRunBatch_Stdin(t *testing.T) {
	_, deps := newTestEnv(t, withFormat(config.OutputFormatJSON))
	deps.Stdin = strings.NewReader("Liu\nKim\n")

	var stdout bytes.Buffer
	require.NoError(t, runBatch(context.Background(), deps, &stdout, &bytes.Buffer{}, &batchOptions{input: "-", noProgress: true}))

	var results []coding.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, gender.MostlyFemale, results[0].Gender)
	assert.Equal(t, gender.MostlyFemale, results[1].Gender)
}

func TestRunBatch_MetricsTextfile(t *testing.T) {
	env, deps := newTestEnv(t, withFormat(config.OutputFormatCSV))
	deps.Stdin = strings.NewReader("John\nMary\nNobody\n")
	textfile := filepath.Join(env.dir, "gendercode.prom")

	err := runBatch(context.Background(), deps, &bytes.Buffer{}, &bytes.Buffer{}, &batchOptions{input: "-", metricsTextfile: textfile})
	require.NoError(t, err)

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gendercode_names_classified_total")
	assert.Contains(t, string(data), "gendercode_batches_total")
}

func TestRunBatch_MetricsTextfileFromConfig(t *testing.T) {
	var textfile string
	env, deps := newTestEnv(t, func(c *config.Config) {
		c.OutputFormat = config.OutputFormatCSV
	})
	textfile = filepath.Join(env.dir, "from-config.prom")
	env.cfg.Metrics.Textfile = textfile
	deps.Stdin = strings.NewReader("John\n")

	require.NoError(t, runBatch(context.Background(), deps, &bytes.Buffer{}, &bytes.Buffer{}, &batchOptions{input: "-"}))
	assert.FileExists(t, textfile)
}

func TestRunBatch_Cancelled(t *testing.T) {
	_, deps := newTestEnv(t, nil)
	deps.Stdin = strings.NewReader("John\nMary\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runBatch(ctx, deps, &bytes.Buffer{}, &bytes.Buffer{}, &batchOptions{input: "-", noProgress: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteResults(t *testing.T) {
	results := []*coding.Result{
		{Row: 1, FirstName: "John", UniqueID: "a", Gender: gender.Male},
		{Row: 2, FirstName: "Kim", Gender: gender.MostlyFemale},
	}

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, config.OutputFormatCSV, results))
		assert.Equal(t, "row,first_name,unique_id,gender\n1,John,a,male\n2,Kim,,mostly_female\n", buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, config.OutputFormatYAML, results))
		assert.Contains(t, buf.String(), "first_name: John")
		assert.Contains(t, buf.String(), "gender: mostly_female")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeResults(&buf, config.OutputFormatText, results))
		out := buf.String()
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "John")
		assert.Contains(t, out, "mostly_female")
	})
}
