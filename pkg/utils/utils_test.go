package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"receipt.pdf", "receipt.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\scan 01.JPG`, "scan 01.JPG"},
		{"bill\x00.png", "bill.png"},
		{"caf\u00e9 bill.png", "caf_ bill.png"},
		{"..", "upload"},
		{"", "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}
}

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"u1", "u1"},
		{"team-a_01", "team-a_01"},
		{"../u2", "u2"},
		{"a/b\\c", "abc"},
		{"user@example.com", "userexamplecom"},
		{"..", "_"},
		{"", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFolderName(tt.in))
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "Acme Stores", SanitizeString("  Acme\x07 Stores\n"))
}

func TestNormalizeExtension(t *testing.T) {
	assert.Equal(t, ".pdf", NormalizeExtension("Invoice.PDF"))
	assert.Equal(t, "", NormalizeExtension("noext"))
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := t.TempDir() + "/logs/app.log"
	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	kv := NewKVLogger(zap.New(core))

	kv.Info("bill committed", "bill_id", "b-1", 42, "ignored", "total", 12.5)
	kv.Error("commit failed", "error", errors.New("disk full"))

	entries := logs.All()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "b-1", fields["bill_id"])
	assert.Equal(t, 12.5, fields["total"])
	assert.Len(t, fields, 2)

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "disk full", entries[1].ContextMap()["error"])
}

func TestNewKVLogger_NilIsSafe(t *testing.T) {
	assert.NotPanics(t, func() {
		NewKVLogger(nil).Info("nothing")
	})
}
