// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Koinonia Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koinonia/koinonia/pkg/errutil"
)

func TestMigrateCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewMigrateCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"up", "down", "status", "force"} {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestMigrateForce_RequiresVersionFlag(t *testing.T) {
	configFile = ""

	cmd := NewMigrateCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"force"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, "INVALID_VERSION", errutil.Code(err))
}

func TestMigrateUp_BadConfigFile(t *testing.T) {
	configFile = "/nonexistent/koinonia.yaml"
	t.Cleanup(func() { configFile = "" })

	cmd := NewMigrateCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"up"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, "CONFIG_FILE_FAILED", errutil.Code(err))
}
