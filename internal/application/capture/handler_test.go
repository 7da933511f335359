package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

type mockIngester struct {
	IngestFunc func(ctx context.Context, req port.IngestRequest) (*port.IngestResponse, error)
	calls      []port.IngestRequest
}

func (m *mockIngester) Ingest(ctx context.Context, req port.IngestRequest) (*port.IngestResponse, error) {
	m.calls = append(m.calls, req)
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, req)
	}
	return &port.IngestResponse{Status: entity.StatusOK, BillID: "bill-1"}, nil
}

type mockStream struct {
	CaptureFunc func(ctx context.Context) (*port.UploadFile, error)
	closed      int
}

func (m *mockStream) Capture(ctx context.Context) (*port.UploadFile, error) {
	if m.CaptureFunc != nil {
		return m.CaptureFunc(ctx)
	}
	return &port.UploadFile{Name: "photo.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}}, nil
}

func (m *mockStream) Close() error {
	m.closed++
	return nil
}

type mockCamera struct {
	stream *mockStream
	opened int
}

func (m *mockCamera) Open(ctx context.Context) (port.CameraStream, error) {
	m.opened++
	m.stream = &mockStream{}
	return m.stream, nil
}

func amount(v float64) *float64 {
	return &v
}

func newHandler(ing *mockIngester, cam port.Camera) *Handler {
	return NewHandler(entity.Principal{UserID: "u1"}, entity.NewAllowList("u1"), ing, cam, nil)
}

func pdf() port.UploadFile {
	return port.UploadFile{Name: "invoice.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}
}

func TestSubmit_ManualWithoutItemsIsRejectedLocally(t *testing.T) {
	ing := &mockIngester{}
	h := newHandler(ing, nil)

	_, err := h.Submit(context.Background(), ManualSubmission{
		Vendor:        "Acme",
		BillDate:      "2025-01-31",
		TotalAmount:   amount(120),
		PaymentMethod: "CASH",
	})

	assert.ErrorIs(t, err, ErrNoItems)
	assert.Empty(t, ing.calls)
}

func TestSubmit_ManualNormalizesDate(t *testing.T) {
	ing := &mockIngester{}
	h := newHandler(ing, nil)

	outcome, err := h.Submit(context.Background(), ManualSubmission{
		Vendor:        " Acme ",
		BillDate:      "2025-01-31",
		Category:      "Food",
		TotalAmount:   amount(120),
		PaymentMethod: "CASH",
		Items:         []entity.BillItem{{Description: "Coffee", Quantity: 1, Amount: 120}},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.Committed{BillID: "bill-1"}, outcome)
	require.Len(t, ing.calls, 1)
	req := ing.calls[0]
	assert.Equal(t, "u1", req.UserID)
	assert.Nil(t, req.File)
	require.NotNil(t, req.Bill)
	assert.Equal(t, "2025-01-31T00:00:00+00:00", req.Bill.BillDate)
	assert.Equal(t, "Acme", req.Bill.Vendor)
}

func TestSubmit_ManualInvalidDate(t *testing.T) {
	ing := &mockIngester{}
	h := newHandler(ing, nil)

	_, err := h.Submit(context.Background(), ManualSubmission{
		BillDate: "someday",
		Items:    []entity.BillItem{{Quantity: 1}},
	})

	assert.ErrorIs(t, err, entity.ErrInvalidDate)
	assert.Empty(t, ing.calls)
}

func TestSubmit_Unauthorized(t *testing.T) {
	ing := &mockIngester{}
	h := NewHandler(entity.Principal{UserID: "u2"}, entity.NewAllowList(), ing, nil, nil)
	require.NoError(t, h.SetFile(pdf()))

	_, err := h.Submit(context.Background(), FileSubmission{})

	assert.ErrorIs(t, err, entity.ErrUnauthorized)
	assert.Empty(t, ing.calls)
}

func TestSubmit_FileWithoutCapture(t *testing.T) {
	ing := &mockIngester{}
	h := newHandler(ing, nil)

	_, err := h.Submit(context.Background(), FileSubmission{})

	assert.ErrorIs(t, err, ErrNoFile)
	assert.Empty(t, ing.calls)
}

func TestSubmit_FileOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		resp      *port.IngestResponse
		err       error
		want      entity.Outcome
		wantErr   error
		keepsFile bool
	}{
		{
			name: "committed",
			resp: &port.IngestResponse{Status: entity.StatusOK, BillID: "b-9"},
			want: entity.Committed{BillID: "b-9"},
		},
		{
			name: "needs confirmation",
			resp: &port.IngestResponse{
				Status:        entity.StatusRequiresConfirmation,
				Extracted:     &entity.Draft{Vendor: "Acme", TotalAmount: amount(120)},
				RawText:       "ACME 120.00",
				FilePath:      "uploads/u1/x.pdf",
				BillID:        "b-7",
				MissingFields: []entity.Field{entity.FieldPaymentMethod},
			},
			want: entity.NeedsConfirmation{
				Draft:         entity.Draft{Vendor: "Acme", TotalAmount: amount(120)},
				RawText:       "ACME 120.00",
				FilePath:      "uploads/u1/x.pdf",
				BillID:        "b-7",
				MissingFields: []entity.Field{entity.FieldPaymentMethod},
			},
			keepsFile: true,
		},
		{
			name: "extraction failed",
			resp: &port.IngestResponse{Status: entity.StatusExtractionFailed, Message: "blurry"},
			want: entity.ExtractionFailed{Reason: "blurry"},
		},
		{
			name: "extraction failed default reason",
			resp: &port.IngestResponse{Status: entity.StatusExtractionFailed},
			want: entity.ExtractionFailed{Reason: entity.ExtractionFailedMessage},
		},
		{
			name:    "unknown status",
			resp:    &port.IngestResponse{Status: "maybe"},
			wantErr: ErrSubmissionFailed,
		},
		{
			name:    "transport error",
			err:     errors.New("connection refused"),
			wantErr: ErrSubmissionFailed,
		},
		{
			name:    "server says unauthorized",
			err:     entity.ErrUnauthorized,
			wantErr: entity.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &mockIngester{IngestFunc: func(ctx context.Context, req port.IngestRequest) (*port.IngestResponse, error) {
				return tt.resp, tt.err
			}}
			h := newHandler(ing, nil)
			require.NoError(t, h.SetFile(pdf()))

			outcome, err := h.Submit(context.Background(), FileSubmission{Category: "Food", TotalAmount: amount(5)})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, outcome)
			}
			assert.Equal(t, tt.keepsFile, h.File() != nil)

			require.Len(t, ing.calls, 1)
			assert.Equal(t, "Food", ing.calls[0].Metadata.Category)
			assert.Equal(t, 5.0, *ing.calls[0].Metadata.TotalAmount)
			assert.Equal(t, "invoice.pdf", ing.calls[0].File.Name)
		})
	}
}

func TestPickFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.PNG")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	h := newHandler(&mockIngester{}, nil)
	require.NoError(t, h.PickFile(path))

	f := h.File()
	require.NotNil(t, f)
	assert.Equal(t, "scan.PNG", f.Name)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, []byte("png-bytes"), f.Data)

	assert.Error(t, h.PickFile(filepath.Join(t.TempDir(), "missing.pdf")))
	assert.ErrorIs(t, h.SetFile(port.UploadFile{Name: "empty.pdf"}), ErrNoFile)
}

func TestCamera_CaptureReleasesStream(t *testing.T) {
	cam := &mockCamera{}
	h := newHandler(&mockIngester{}, cam)

	require.NoError(t, h.StartCamera(context.Background()))
	assert.True(t, h.CameraActive())
	assert.Equal(t, ModeCamera, h.Mode())

	require.NoError(t, h.CapturePhoto(context.Background()))
	assert.False(t, h.CameraActive())
	assert.Equal(t, 1, cam.stream.closed)
	require.NotNil(t, h.File())
	assert.Equal(t, "photo.jpg", h.File().Name)
}

func TestCamera_FailedCaptureStillReleases(t *testing.T) {
	cam := &mockCamera{}
	h := newHandler(&mockIngester{}, cam)
	require.NoError(t, h.StartCamera(context.Background()))
	cam.stream.CaptureFunc = func(ctx context.Context) (*port.UploadFile, error) {
		return nil, errors.New("sensor busy")
	}

	assert.Error(t, h.CapturePhoto(context.Background()))
	assert.False(t, h.CameraActive())
	assert.Equal(t, 1, cam.stream.closed)
	assert.Nil(t, h.File())
}

func TestCamera_ReleasedOnModeSwitchAndSubmit(t *testing.T) {
	cam := &mockCamera{}
	h := newHandler(&mockIngester{}, cam)

	require.NoError(t, h.StartCamera(context.Background()))
	first := cam.stream
	require.NoError(t, h.SwitchMode(ModeManual))
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, ModeManual, h.Mode())

	require.NoError(t, h.StartCamera(context.Background()))
	second := cam.stream
	_, err := h.Submit(context.Background(), ManualSubmission{})
	assert.ErrorIs(t, err, ErrNoItems)
	assert.Equal(t, 1, second.closed)
	assert.False(t, h.CameraActive())
}

func TestCamera_Unavailable(t *testing.T) {
	h := newHandler(&mockIngester{}, nil)
	assert.ErrorIs(t, h.StartCamera(context.Background()), ErrNoCamera)
	assert.ErrorIs(t, h.CapturePhoto(context.Background()), ErrNoCamera)
	assert.NoError(t, h.StopCamera())
}
