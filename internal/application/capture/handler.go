// Package capture accepts a bill submission, either a finished manual entry or
// a document from the file picker or camera, and classifies the collaborator's
// answer into exactly one entity.Outcome.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

var (
	// ErrNoItems is returned when a manual submission carries no line items
	ErrNoItems = errors.New("add at least one item")

	// ErrNoFile is returned when a file submission has nothing captured
	ErrNoFile = errors.New("no file captured")

	// ErrSubmissionFailed wraps every transport or protocol failure
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrNoCamera is returned when camera capture is used without a camera
	ErrNoCamera = errors.New("camera not available")
)

// Mode is the active capture input
type Mode string

const (
	ModeUpload Mode = "upload"
	ModeCamera Mode = "camera"
	ModeManual Mode = "manual"
)

// Submission is either a FileSubmission or a ManualSubmission
type Submission interface {
	submission()
}

// FileSubmission sends the captured document with optional hints
type FileSubmission struct {
	Category    string
	TotalAmount *float64
}

// ManualSubmission is a finished record entered by hand
type ManualSubmission struct {
	Vendor        string
	BillDate      string
	Category      string
	TotalAmount   *float64
	PaymentMethod string
	BillNo        string
	Items         []entity.BillItem
}

func (FileSubmission) submission()   {}
func (ManualSubmission) submission() {}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Handler holds the captured file and the camera for one principal
type Handler struct {
	principal entity.Principal
	auth      entity.Authorizer
	ingester  port.Ingester
	camera    port.Camera
	logger    Logger

	mu     sync.Mutex
	mode   Mode
	file   *port.UploadFile
	stream port.CameraStream
}

// NewHandler creates a capture handler. camera may be nil when no camera is attached.
func NewHandler(principal entity.Principal, auth entity.Authorizer, ingester port.Ingester, camera port.Camera, logger Logger) *Handler {
	return &Handler{
		principal: principal,
		auth:      auth,
		ingester:  ingester,
		camera:    camera,
		logger:    logger,
		mode:      ModeUpload,
	}
}

// Mode returns the active capture input
func (h *Handler) Mode() Mode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mode
}

// File returns the captured document, or nil
func (h *Handler) File() *port.UploadFile {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.file
}

// SwitchMode changes the capture input. The camera is released first.
func (h *Handler) SwitchMode(mode Mode) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.releaseCameraLocked()
	h.mode = mode
	return err
}

// PickFile reads a document from disk and makes it the captured file
func (h *Handler) PickFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	name := filepath.Base(path)
	return h.SetFile(port.UploadFile{
		Name:        name,
		ContentType: entity.ContentTypeFor(name),
		Data:        data,
	})
}

// SetFile makes f the captured file and releases the camera
func (h *Handler) SetFile(f port.UploadFile) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrNoFile, f.Name)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	err := h.releaseCameraLocked()
	h.file = &f
	return err
}

// ClearFile drops the captured file
func (h *Handler) ClearFile() {
	h.mu.Lock()
	h.file = nil
	h.mu.Unlock()
}

// StartCamera opens the camera stream, replacing any previous one
func (h *Handler) StartCamera(ctx context.Context) error {
	if h.camera == nil {
		return ErrNoCamera
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.releaseCameraLocked(); err != nil {
		h.logError("Failed to release previous camera stream", err)
	}
	stream, err := h.camera.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	h.stream = stream
	h.mode = ModeCamera
	return nil
}

// CapturePhoto grabs a frame as the captured file and releases the camera,
// whether or not the capture succeeded
func (h *Handler) CapturePhoto(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stream == nil {
		return ErrNoCamera
	}
	f, err := h.stream.Capture(ctx)
	if relErr := h.releaseCameraLocked(); relErr != nil {
		h.logError("Failed to release camera", relErr)
	}
	if err != nil {
		return fmt.Errorf("failed to capture photo: %w", err)
	}
	h.file = f
	return nil
}

// StopCamera releases the camera if it is held
func (h *Handler) StopCamera() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releaseCameraLocked()
}

// CameraActive reports whether a camera stream is held
func (h *Handler) CameraActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stream != nil
}

func (h *Handler) releaseCameraLocked() error {
	if h.stream == nil {
		return nil
	}
	err := h.stream.Close()
	h.stream = nil
	return err
}

// Submit sends a submission and classifies the answer. The camera is released
// on every exit. A failed extraction or transport error clears the captured
// file so the user can retry with a different input.
func (h *Handler) Submit(ctx context.Context, sub Submission) (entity.Outcome, error) {
	defer func() {
		if err := h.StopCamera(); err != nil {
			h.logError("Failed to release camera", err)
		}
	}()

	if err := h.auth.Authorize(h.principal); err != nil {
		return nil, err
	}

	switch s := sub.(type) {
	case ManualSubmission:
		return h.submitManual(ctx, s)
	case FileSubmission:
		return h.submitFile(ctx, s)
	default:
		return nil, fmt.Errorf("%w: unsupported submission %T", ErrSubmissionFailed, sub)
	}
}

func (h *Handler) submitManual(ctx context.Context, s ManualSubmission) (entity.Outcome, error) {
	if len(s.Items) == 0 {
		return nil, ErrNoItems
	}
	date, err := entity.NormalizeBillDate(s.BillDate)
	if err != nil {
		return nil, err
	}

	bill := entity.Draft{
		Vendor:        strings.TrimSpace(s.Vendor),
		BillDate:      date,
		TotalAmount:   s.TotalAmount,
		Category:      s.Category,
		PaymentMethod: s.PaymentMethod,
		BillNo:        s.BillNo,
		Items:         append([]entity.BillItem(nil), s.Items...),
	}
	resp, err := h.ingester.Ingest(ctx, port.IngestRequest{
		UserID: h.principal.UserID,
		Bill:   &bill,
		Metadata: port.IngestMetadata{
			Category:    s.Category,
			TotalAmount: s.TotalAmount,
		},
	})
	if err != nil {
		return nil, h.transportError(err)
	}
	return h.classify(resp)
}

func (h *Handler) submitFile(ctx context.Context, s FileSubmission) (entity.Outcome, error) {
	f := h.File()
	if f == nil {
		return nil, ErrNoFile
	}

	resp, err := h.ingester.Ingest(ctx, port.IngestRequest{
		UserID: h.principal.UserID,
		File:   f,
		Metadata: port.IngestMetadata{
			Category:    s.Category,
			TotalAmount: s.TotalAmount,
		},
	})
	if err != nil {
		h.ClearFile()
		return nil, h.transportError(err)
	}

	outcome, err := h.classify(resp)
	if err != nil {
		h.ClearFile()
		return nil, err
	}
	switch outcome.(type) {
	case entity.ExtractionFailed, entity.Committed:
		h.ClearFile()
	}
	return outcome, nil
}

// classify maps a wire status to an outcome. Unknown statuses are failures.
func (h *Handler) classify(resp *port.IngestResponse) (entity.Outcome, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrSubmissionFailed)
	}

	switch resp.Status {
	case entity.StatusOK, "committed":
		h.logInfo("Bill committed", "bill_id", resp.BillID)
		return entity.Committed{BillID: resp.BillID}, nil
	case entity.StatusRequiresConfirmation:
		var d entity.Draft
		if resp.Extracted != nil {
			d = resp.Extracted.Clone()
		}
		h.logInfo("Bill needs confirmation", "missing_fields", resp.MissingFields)
		return entity.NeedsConfirmation{
			Draft:         d,
			RawText:       resp.RawText,
			FilePath:      resp.FilePath,
			BillID:        resp.BillID,
			MissingFields: resp.MissingFields,
		}, nil
	case entity.StatusExtractionFailed:
		reason := resp.Message
		if reason == "" {
			reason = entity.ExtractionFailedMessage
		}
		h.logInfo("Extraction failed", "reason", reason)
		return entity.ExtractionFailed{Reason: reason}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected status %q", ErrSubmissionFailed, resp.Status)
	}
}

// transportError keeps authorization failures recognisable and folds
// everything else into ErrSubmissionFailed
func (h *Handler) transportError(err error) error {
	h.logError("Submission failed", err)
	if errors.Is(err, entity.ErrUnauthorized) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
}

func (h *Handler) logInfo(msg string, keysAndValues ...interface{}) {
	if h.logger != nil {
		h.logger.Info(msg, keysAndValues...)
	}
}

func (h *Handler) logError(msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, "user_id", h.principal.UserID, "error", err)
	}
}
