package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"wakesched/internal/models/config"
)

func TestConfigShow_RedactsSecrets(t *testing.T) {
	cfg, err := config.NewSchedConfig("node-1",
		config.WithSecret("s3cret"),
		config.WithPostgresConfig(config.PostgresConfig{ConnectionUrl: "postgres://user:pw@db/sched"}),
	)
	require.NoError(t, err)

	cmd := ConfigCmd(func() (*config.SchedConfig, error) { return cfg, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"show"})
	require.NoError(t, cmd.Execute())

	assert.NotContains(t, out.String(), "s3cret")
	assert.NotContains(t, out.String(), "pw@db")

	var shown effectiveConfig
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &shown))
	assert.Equal(t, "node-1", shown.Instance)
	assert.Equal(t, "postgres", shown.StorageDriver)
	assert.Equal(t, "stream", shown.DispatchMode)
	assert.Equal(t, 10, shown.WorkerPoolSize)
	assert.Equal(t, "6h0m0s", shown.DrainTimeout)
}

func TestPurge_RequiresConfirmation(t *testing.T) {
	called := false
	cmd := PurgeCmd(func() (*config.SchedConfig, error) {
		called = true
		return nil, nil
	})
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.ErrorContains(t, cmd.Execute(), "--yes")
	assert.False(t, called)
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "cycle", "purge", "outcomes", "config"})
}
