// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Haven Contributors

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenwell/haven/internal/config"
	"github.com/havenwell/haven/pkg/errutil"
)

// setConfigFile points the global --config value at a file for one test.
func setConfigFile(t *testing.T, path string) {
	t.Helper()
	prev := configFile
	configFile = path
	t.Cleanup(func() { configFile = prev })
}

func writeDatabaseConfig(t *testing.T, databaseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "database_url: \"" + databaseURL + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetDatabaseURL(t *testing.T) {
	isolate := func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv(config.EnvDatabaseURL, "")
	}

	t.Run("fails when nothing provides a URL", func(t *testing.T) {
		isolate(t)

		url, err := getDatabaseURL()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
		assert.Empty(t, url)
	})

	t.Run("reads DATABASE_URL from the environment", func(t *testing.T) {
		isolate(t)
		t.Setenv(config.EnvDatabaseURL, "postgres://localhost:5432/testdb")

		url, err := getDatabaseURL()
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost:5432/testdb", url)
	})

	t.Run("reads database_url from the config file", func(t *testing.T) {
		isolate(t)
		setConfigFile(t, writeDatabaseConfig(t, "postgres://file.internal/haven"))

		url, err := getDatabaseURL()
		require.NoError(t, err)
		assert.Equal(t, "postgres://file.internal/haven", url)
	})

	t.Run("environment overrides the config file", func(t *testing.T) {
		isolate(t)
		setConfigFile(t, writeDatabaseConfig(t, "postgres://file.internal/haven"))
		t.Setenv(config.EnvDatabaseURL, "postgres://env.internal/haven")

		url, err := getDatabaseURL()
		require.NoError(t, err)
		assert.Equal(t, "postgres://env.internal/haven", url)
	})

	t.Run("missing explicit config file fails", func(t *testing.T) {
		isolate(t)
		setConfigFile(t, filepath.Join(t.TempDir(), "absent.yaml"))

		url, err := getDatabaseURL()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
		assert.Empty(t, url)
	})
}

func TestMigrateCommand_HasSubcommands(t *testing.T) {
	cmd := NewMigrateCmd()

	names := make([]string, 0, 4)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Contains(t, names, "up")
	assert.Contains(t, names, "down")
	assert.Contains(t, names, "version")
	assert.Contains(t, names, "status")
}
