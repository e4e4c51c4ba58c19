package cmd

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/gendercode/config"
	"github.com/otherjamesbrown/gendercode/credentials"
	"github.com/otherjamesbrown/gendercode/pkg/gender"
	"github.com/otherjamesbrown/gendercode/pkg/logging"
	"github.com/otherjamesbrown/gendercode/pkg/names"
	"github.com/otherjamesbrown/gendercode/pkg/names/store"
)

func testTables() names.Tables {
	return names.Tables{
		All: []names.Entry{
			{Pattern: "john", Gender: gender.Male},
			{Pattern: "liu", Gender: gender.MostlyFemale},
		},
		US: []names.Entry{
			{Pattern: "john", Gender: gender.Male},
			{Pattern: "mary", Gender: gender.Female},
			{Pattern: "edgar", Gender: gender.Male},
			{Pattern: "kim", Gender: gender.MostlyFemale},
		},
		Foreign:  []names.Entry{{Pattern: "liu", Gender: gender.MostlyFemale}},
		Wildcard: []names.Entry{{Pattern: "mary+jane", Gender: gender.Female}},
	}
}

// memSecrets is an in-memory SecretStore.
type memSecrets struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemSecrets() *memSecrets {
	return &memSecrets{values: map[string]string{}}
}

func (m *memSecrets) Set(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

func (m *memSecrets) Get(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	if !ok {
		return "", credentials.ErrNoCredentials
	}
	return v, nil
}

func (m *memSecrets) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[name]; !ok {
		return errors.New("not found")
	}
	delete(m.values, name)
	return nil
}

func (m *memSecrets) Resolve(name string) string {
	v, _ := m.Get(name)
	return v
}

// testEnv is a temp directory holding a config path and a dictionary file.
type testEnv struct {
	dir      string
	dictPath string
	cfgPath  string
	cfg      *config.Config
	secrets  *memSecrets
}

// newTestEnv writes testTables to a YAML dictionary and returns Deps whose
// config points at it. mutate may adjust the config.
func newTestEnv(t *testing.T, mutate func(*config.Config)) (*testEnv, *Deps) {
	t.Helper()

	dir := t.TempDir()
	env := &testEnv{
		dir:      dir,
		dictPath: filepath.Join(dir, "names.yaml"),
		cfgPath:  filepath.Join(dir, "config.yaml"),
		secrets:  newMemSecrets(),
	}
	require.NoError(t, store.WriteFile(env.dictPath, testTables()))

	cfg := config.DefaultConfig()
	cfg.Dictionary.Source = config.SourceFile
	cfg.Dictionary.Path = env.dictPath
	cfg.Dispatcher.Workers = 2
	if mutate != nil {
		mutate(cfg)
	}
	env.cfg = cfg

	deps := DefaultDeps(nil)
	deps.LoadConfig = func() (*config.Config, error) {
		c := *env.cfg
		return &c, nil
	}
	deps.ConfigPath = func() (string, error) { return env.cfgPath, nil }
	deps.NewLogger = func(*config.Config) logging.Logger { return logging.NewNopLogger() }
	deps.Secrets = env.secrets
	deps.IsTerminal = func(io.Writer) bool { return false }
	deps.Stdin = strings.NewReader("")
	return env, deps
}

func withFormat(format config.OutputFormat) func(*config.Config) {
	return func(c *config.Config) { c.OutputFormat = format }
}
