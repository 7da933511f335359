package camera

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell utilities")
	}
}

func TestCommandCamera_Capture(t *testing.T) {
	skipOnWindows(t)
	cam := NewCommandCamera("printf", []string{"jpeg-bytes"}, time.Second, zap.NewNop())
	cam.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	s, err := cam.Open(context.Background())
	require.NoError(t, err)

	f, err := s.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "capture-20250102-030405.jpg", f.Name)
	assert.Equal(t, "image/jpeg", f.ContentType)
	assert.Equal(t, []byte("jpeg-bytes"), f.Data)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	_, err = s.Capture(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCommandCamera_MissingProgram(t *testing.T) {
	cam := NewCommandCamera("definitely-not-a-camera-program", nil, time.Second, zap.NewNop())
	_, err := cam.Open(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCommandCamera_EmptyAndFailingOutput(t *testing.T) {
	skipOnWindows(t)

	s, err := NewCommandCamera("true", nil, time.Second, zap.NewNop()).Open(context.Background())
	require.NoError(t, err)
	_, err = s.Capture(context.Background())
	assert.ErrorIs(t, err, ErrEmptyFrame)

	s, err = NewCommandCamera("false", nil, time.Second, zap.NewNop()).Open(context.Background())
	require.NoError(t, err)
	_, err = s.Capture(context.Background())
	assert.Error(t, err)
}
