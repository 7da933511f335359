// Package camera captures photos by running an external capture program
// that writes one JPEG frame to stdout (fswebcam, libcamera-still,
// imagesnap and similar).
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
)

var (
	// ErrUnavailable is returned when the capture program cannot be found
	ErrUnavailable = errors.New("camera command not available")

	// ErrClosed is returned when capturing from a released stream
	ErrClosed = errors.New("camera stream closed")

	// ErrEmptyFrame is returned when the program exits cleanly without output
	ErrEmptyFrame = errors.New("camera returned no image")
)

// CommandCamera implements port.Camera with an external program
type CommandCamera struct {
	command string
	args    []string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewCommandCamera creates a camera that runs command with args per capture
func NewCommandCamera(command string, args []string, timeout time.Duration, logger *zap.Logger) *CommandCamera {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CommandCamera{
		command: command,
		args:    args,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Open checks the program exists and holds the camera until Close
func (c *CommandCamera) Open(ctx context.Context) (port.CameraStream, error) {
	path, err := exec.LookPath(c.command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, c.command)
	}
	c.logger.Debug("Camera opened", zap.String("command", path))
	return &stream{camera: c, path: path}, nil
}

type stream struct {
	camera *CommandCamera
	path   string

	mu     sync.Mutex
	closed bool
}

// Capture runs the program once and returns its stdout as a JPEG upload
func (s *stream) Capture(ctx context.Context) (*port.UploadFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, s.camera.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.path, s.camera.args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.camera.logger.Error("Camera capture failed",
			zap.String("command", s.path),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to capture photo: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, ErrEmptyFrame
	}

	return &port.UploadFile{
		Name:        fmt.Sprintf("capture-%s.jpg", s.camera.now().Format("20060102-150405")),
		ContentType: "image/jpeg",
		Data:        stdout.Bytes(),
	}, nil
}

// Close releases the stream. Closing twice is a no-op.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.camera.logger.Debug("Camera released")
	}
	return nil
}

// Verify interface compliance
var _ port.Camera = (*CommandCamera)(nil)
