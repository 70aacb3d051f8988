// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia/koinonia/pkg/errutil"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, ":9100", cfg.Observability.Addr)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "koinonia.yaml")
	content := []byte(`
http:
  addr: ":9999"
log:
  level: debug
database:
  url: postgres://db.internal:5432/koinonia
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "postgres://db.internal:5432/koinonia", cfg.Database.URL)
	// Untouched keys keep their defaults.
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "koinonia.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":9999\"\n"), 0o600))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("http.addr", ":8080", "")
	require.NoError(t, flags.Parse([]string{"--http.addr=:7777"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, ":7777", cfg.HTTP.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/koinonia.yaml", nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_FILE_FAILED")
}
