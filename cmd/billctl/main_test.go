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

	for _, name := range []string{"capture", "list", "download", "export", "query"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "billctl", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	tests := []struct {
		name   string
		defVal string
	}{
		{"server", "http://localhost:8000"},
		{"user", "u1"},
		{"timeout", "2m0s"},
		{"debounce", "500ms"},
		{"log-level", "warn"},
		{"camera", "fswebcam"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := rootCmd.PersistentFlags().Lookup(tt.name)
			require.NotNil(t, flag)
			assert.Equal(t, tt.defVal, flag.DefValue)
		})
	}
}

func TestCaptureCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range captureCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"upload", "camera", "manual"} {
		assert.True(t, names[name], "expected capture subcommand %q not found", name)
	}
}

func TestManualCommand_Flags(t *testing.T) {
	for _, name := range []string{"vendor", "date", "category", "total", "payment", "bill-no", "item", "no-confirm"} {
		assert.NotNil(t, manualCmd.Flags().Lookup(name), "manual command should have --%s", name)
	}
}

func TestListCommand_Flags(t *testing.T) {
	flag := listCmd.Flags().Lookup("page-size")
	require.NotNil(t, flag)
	assert.Equal(t, "10", flag.DefValue)

	flag = listCmd.Flags().Lookup("sort")
	require.NotNil(t, flag)
	assert.Equal(t, "bill_date", flag.DefValue)

	flag = listCmd.Flags().Lookup("order")
	require.NotNil(t, flag)
	assert.Equal(t, "desc", flag.DefValue)

	assert.NotNil(t, listCmd.Flags().Lookup("interactive"))
}

func TestExportCommand_Flags(t *testing.T) {
	for _, name := range []string{"output", "sort", "order", "search"} {
		assert.NotNil(t, exportCmd.Flags().Lookup(name), "export command should have --%s", name)
	}
	assert.Nil(t, exportCmd.Flags().Lookup("page"))
}
