package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"export", "serve", "preview", "config"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "flightglobe", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestExportCommand_Flags(t *testing.T) {
	for _, name := range []string{"stride", "out", "token", "port", "geojson", "no-serve", "no-open"} {
		require.NotNil(t, exportCmd.Flags().Lookup(name), "export should have --%s", name)
	}
	assert.Equal(t, "0", exportCmd.Flags().Lookup("stride").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestPreviewCommand_Flags(t *testing.T) {
	flag := previewCmd.Flags().Lookup("dir")
	require.NotNil(t, flag)
	assert.Equal(t, "previews", flag.DefValue)
}

func TestConfigCommand_HasShow(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range configCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["show"])
}
