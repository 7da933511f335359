package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/domain/event"
)

func newConfirmFixture(files ...*entity.StoredFile) (*ConfirmService, *mockBillRepo, *mockFileRepo, *recordingPublisher) {
	bills := &mockBillRepo{}
	fileRepo := newMockFileRepo(files...)
	publisher := &recordingPublisher{}
	svc := NewConfirmService(bills, fileRepo, &mockTxManager{}, entity.NewAllowList("u1", "u2"), publisher, noopLogger{})
	return svc, bills, fileRepo, publisher
}

func TestConfirmService_CommitsWithFile(t *testing.T) {
	stored := &entity.StoredFile{Path: "uploads/u1/x.pdf", UserID: "u1", OriginalName: "invoice.pdf"}
	svc, bills, files, publisher := newConfirmFixture(stored)

	d := completeDraft()
	d.Items = append(d.Items, entity.BillItem{Description: "blank row"})
	resp, err := svc.Confirm(context.Background(), port.ConfirmRequest{
		UserID:    "u1",
		Extracted: d,
		RawText:   "INVOICE",
		FilePath:  stored.Path,
		BillID:    "bill-42",
	})

	require.NoError(t, err)
	assert.Equal(t, &port.ConfirmResponse{Status: entity.StatusOK, BillID: "bill-42"}, resp)

	require.Len(t, bills.created, 1)
	bill := bills.created[0]
	assert.Equal(t, "bill-42", bill.ID)
	assert.Equal(t, entity.SourceUpload, bill.Source)
	assert.Equal(t, "invoice.pdf", bill.SourceFile)
	assert.Equal(t, stored.Path, bill.FilePath)
	assert.Equal(t, "INVOICE", bill.RawText)
	assert.Equal(t, "2025-01-31T00:00:00+00:00", bill.BillDate)
	assert.Len(t, bill.Items, 2)
	assert.Equal(t, "bill-42", files.claimed[stored.Path])
	assert.Equal(t, []event.Type{event.TypeBillCommitted}, publisher.types())
}

func TestConfirmService_WithoutFileIsManual(t *testing.T) {
	svc, bills, _, _ := newConfirmFixture()

	_, err := svc.Confirm(context.Background(), port.ConfirmRequest{UserID: "u1", Extracted: completeDraft(), BillID: "b1"})

	require.NoError(t, err)
	assert.Equal(t, entity.SourceManual, bills.created[0].Source)
	assert.Equal(t, entity.DefaultCurrency, bills.created[0].Currency)
}

func TestConfirmService_Rejects(t *testing.T) {
	foreign := &entity.StoredFile{Path: "uploads/u2/y.jpg", UserID: "u2"}

	tests := []struct {
		name    string
		req     port.ConfirmRequest
		wantErr error
	}{
		{
			name:    "unknown user",
			req:     port.ConfirmRequest{UserID: "u9", Extracted: completeDraft(), BillID: "b1"},
			wantErr: entity.ErrUnauthorized,
		},
		{
			name:    "missing bill id",
			req:     port.ConfirmRequest{UserID: "u1", Extracted: completeDraft(), BillID: "  "},
			wantErr: port.ErrInvalidRequest,
		},
		{
			name: "draft fails validation",
			req: port.ConfirmRequest{UserID: "u1", BillID: "b1", Extracted: func() entity.Draft {
				d := completeDraft()
				d.Items = []entity.BillItem{{Description: "nothing"}}
				return d
			}()},
			wantErr: port.ErrInvalidRequest,
		},
		{
			name:    "file of another user",
			req:     port.ConfirmRequest{UserID: "u1", Extracted: completeDraft(), BillID: "b1", FilePath: foreign.Path},
			wantErr: port.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, bills, _, publisher := newConfirmFixture(foreign)

			_, err := svc.Confirm(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, bills.created)
			assert.Empty(t, publisher.types())
		})
	}
}

func TestConfirmService_DuplicateID(t *testing.T) {
	svc, bills, _, _ := newConfirmFixture()
	bills.createFunc = func(ctx context.Context, bill *entity.Bill) error {
		return port.ErrDuplicateBill
	}

	_, err := svc.Confirm(context.Background(), port.ConfirmRequest{UserID: "u1", Extracted: completeDraft(), BillID: "b1"})

	assert.ErrorIs(t, err, port.ErrDuplicateBill)
}
