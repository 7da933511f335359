package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/domain/event"
)

// Mock repositories
type mockBillRepo struct {
	createFunc    func(ctx context.Context, bill *entity.Bill) error
	getByIDFunc   func(ctx context.Context, userID, id string) (*entity.Bill, error)
	listFunc      func(ctx context.Context, userID string, q entity.ListingQuery) ([]*entity.Bill, int, error)
	findFunc      func(ctx context.Context, userID string, plan entity.QueryPlan) ([]*entity.Bill, error)
	aggregateFunc func(ctx context.Context, userID string, plan entity.QueryPlan) (int, float64, error)

	created []*entity.Bill
}

func (m *mockBillRepo) Create(ctx context.Context, bill *entity.Bill) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, bill); err != nil {
			return err
		}
	}
	m.created = append(m.created, bill)
	return nil
}

func (m *mockBillRepo) GetByID(ctx context.Context, userID, id string) (*entity.Bill, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, userID, id)
	}
	return nil, nil
}

func (m *mockBillRepo) List(ctx context.Context, userID string, q entity.ListingQuery) ([]*entity.Bill, int, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, userID, q)
	}
	return nil, 0, nil
}

func (m *mockBillRepo) Find(ctx context.Context, userID string, plan entity.QueryPlan) ([]*entity.Bill, error) {
	if m.findFunc != nil {
		return m.findFunc(ctx, userID, plan)
	}
	return nil, nil
}

func (m *mockBillRepo) Aggregate(ctx context.Context, userID string, plan entity.QueryPlan) (int, float64, error) {
	if m.aggregateFunc != nil {
		return m.aggregateFunc(ctx, userID, plan)
	}
	return 0, 0, nil
}

type mockFileRepo struct {
	createFunc func(ctx context.Context, file *entity.StoredFile) error
	claimFunc  func(ctx context.Context, path, billID string, at time.Time) error

	files   map[string]*entity.StoredFile
	claimed map[string]string
}

func newMockFileRepo(files ...*entity.StoredFile) *mockFileRepo {
	m := &mockFileRepo{
		files:   make(map[string]*entity.StoredFile),
		claimed: make(map[string]string),
	}
	for _, f := range files {
		m.files[f.Path] = f
	}
	return m
}

func (m *mockFileRepo) Create(ctx context.Context, file *entity.StoredFile) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, file); err != nil {
			return err
		}
	}
	m.files[file.Path] = file
	return nil
}

func (m *mockFileRepo) GetByPath(ctx context.Context, path string) (*entity.StoredFile, error) {
	return m.files[path], nil
}

func (m *mockFileRepo) Claim(ctx context.Context, path, billID string, at time.Time) error {
	if m.claimFunc != nil {
		if err := m.claimFunc(ctx, path, billID, at); err != nil {
			return err
		}
	}
	if _, ok := m.files[path]; !ok {
		return port.ErrFileNotFound
	}
	m.claimed[path] = billID
	return nil
}

func (m *mockFileRepo) ListUnclaimedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.StoredFile, error) {
	return nil, nil
}

func (m *mockFileRepo) Delete(ctx context.Context, path string) error {
	delete(m.files, path)
	return nil
}

type mockStorage struct {
	saveFunc func(ctx context.Context, path string, content []byte) error
	readFunc func(ctx context.Context, path string) ([]byte, error)

	saved   map[string][]byte
	deleted []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{saved: make(map[string][]byte)}
}

func (m *mockStorage) Save(ctx context.Context, path string, content []byte) error {
	if m.saveFunc != nil {
		if err := m.saveFunc(ctx, path, content); err != nil {
			return err
		}
	}
	m.saved[path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, path string) ([]byte, error) {
	if m.readFunc != nil {
		return m.readFunc(ctx, path)
	}
	data, ok := m.saved[path]
	if !ok {
		return nil, port.ErrFileNotFound
	}
	return data, nil
}

func (m *mockStorage) Exists(ctx context.Context, path string) bool {
	_, ok := m.saved[path]
	return ok
}

func (m *mockStorage) Delete(ctx context.Context, path string) error {
	m.deleted = append(m.deleted, path)
	delete(m.saved, path)
	return nil
}

// mockTxManager runs the function directly and reports how often it was used
type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockExtractor struct {
	extractFunc func(ctx context.Context, file port.UploadFile) (*port.Extraction, error)
	calls       int
}

func (m *mockExtractor) Extract(ctx context.Context, file port.UploadFile) (*port.Extraction, error) {
	m.calls++
	if m.extractFunc != nil {
		return m.extractFunc(ctx, file)
	}
	return &port.Extraction{}, nil
}

type mockPlanner struct {
	planFunc func(ctx context.Context, question string, today time.Time) (*entity.QueryPlan, error)
	calls    int
}

func (m *mockPlanner) Plan(ctx context.Context, question string, today time.Time) (*entity.QueryPlan, error) {
	m.calls++
	if m.planFunc != nil {
		return m.planFunc(ctx, question, today)
	}
	return &entity.QueryPlan{Operation: entity.QueryList}, nil
}

type mockExporter struct {
	writeFunc func(w io.Writer, bills []*entity.Bill) error
	written   []*entity.Bill
}

func (m *mockExporter) ContentType() string { return "text/csv" }

func (m *mockExporter) Extension() string { return ".csv" }

func (m *mockExporter) Write(w io.Writer, bills []*entity.Bill) error {
	m.written = bills
	if m.writeFunc != nil {
		return m.writeFunc(w, bills)
	}
	_, err := io.WriteString(w, "ok")
	return err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Dispatch(ctx context.Context, evt *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

func amount(v float64) *float64 {
	return &v
}

func completeDraft() entity.Draft {
	return entity.Draft{
		Vendor:        "Acme Stores",
		BillDate:      "2025-01-31",
		TotalAmount:   amount(450),
		Category:      "Grocery",
		PaymentMethod: "UPI",
		Items:         []entity.BillItem{{Description: "Rice", Quantity: 2, Amount: 450}},
	}
}
