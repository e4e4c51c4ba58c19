package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/gendercode/credentials"
)

func TestCredentialsCommand_HasSubcommands(t *testing.T) {
	cmd := NewCredentialsCommand(nil)
	assert.Equal(t, "credentials", cmd.Use)
	assert.Contains(t, cmd.Aliases, "creds")

	for _, name := range []string{"set", "show", "delete"} {
		_, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
	}
}

func TestRunCredentialsSet(t *testing.T) {
	env, deps := newTestEnv(t, nil)
	deps.Stdin = strings.NewReader("  hunter2-long-password \n")

	var out bytes.Buffer
	require.NoError(t, runCredentialsSet(deps, &out, credentials.DatabasePassword))
	assert.Contains(t, out.String(), "Stored "+credentials.DatabasePassword)

	v, err := env.secrets.Get(credentials.DatabasePassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter2-long-password", v)
}

func TestRunCredentialsSet_Empty(t *testing.T) {
	_, deps := newTestEnv(t, nil)
	deps.Stdin = strings.NewReader("\n")

	err := runCredentialsSet(deps, &bytes.Buffer{}, credentials.RedisPassword)
	require.Error(t, err)
}

func TestRunCredentialsShow(t *testing.T) {
	t.Setenv(credentials.EnvVar(credentials.DatabasePassword), "")
	t.Setenv(credentials.EnvVar(credentials.RedisPassword), "from-env-value")

	env, deps := newTestEnv(t, nil)
	require.NoError(t, env.secrets.Set(credentials.DatabasePassword, "abcdefghij"))

	var out bytes.Buffer
	require.NoError(t, runCredentialsShow(deps, &out))

	s := out.String()
	assert.Contains(t, s, "keyring")
	assert.Contains(t, s, "ab******ij")
	assert.NotContains(t, s, "abcdefghij")
	assert.Contains(t, s, "env "+credentials.EnvVar(credentials.RedisPassword))
	assert.NotContains(t, s, "from-env-value")
}

func TestCredentialsDelete(t *testing.T) {
	env, deps := newTestEnv(t, nil)
	require.NoError(t, env.secrets.Set(credentials.RedisPassword, "x"))

	cmd := NewCredentialsCommand(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"delete", credentials.RedisPassword})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "Deleted")
	_, err := env.secrets.Get(credentials.RedisPassword)
	assert.ErrorIs(t, err, credentials.ErrNoCredentials)
}
