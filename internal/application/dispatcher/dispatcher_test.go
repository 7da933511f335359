package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-capture/internal/domain/event"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}

func committed() *event.Event {
	return event.NewEvent(event.TypeBillCommitted, "u1", "bill-1", nil)
}

func TestDispatch_RunsHandlersInOrder(t *testing.T) {
	d := NewDispatcher()
	var order []string

	d.Subscribe(event.TypeBillCommitted, "metrics", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "metrics")
		return nil
	})
	d.Subscribe(event.TypeBillCommitted, "files", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "files")
		return nil
	})
	d.Subscribe(event.TypeExtractionFailed, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), committed()))
	assert.Equal(t, []string{"metrics", "files"}, order)
}

func TestDispatch_StopsAtFirstError(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	boom := errors.New("boom")
	secondCalled := false

	d.Subscribe(event.TypeBillCommitted, "failing", func(ctx context.Context, evt *event.Event) error {
		return boom
	})
	d.Subscribe(event.TypeBillCommitted, "second", func(ctx context.Context, evt *event.Event) error {
		secondCalled = true
		return nil
	})

	err := d.Dispatch(context.Background(), committed())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failing")
	assert.False(t, secondCalled)
	assert.Equal(t, 1, logger.ErrorCount())
}

func TestDispatch_RecoversPanic(t *testing.T) {
	d := NewDispatcher()
	d.Subscribe(event.TypeBillCommitted, "panics", func(ctx context.Context, evt *event.Event) error {
		panic("nil map")
	})

	err := d.Dispatch(context.Background(), committed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic: nil map")
}

func TestSubscribe_GeneratesNameWhenEmpty(t *testing.T) {
	d := NewDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }
	d.Subscribe(event.TypeFileStored, "", noop)
	d.Subscribe(event.TypeFileStored, "", noop)

	handlers := d.Handlers(event.TypeFileStored)
	require.Len(t, handlers, 2)
	assert.Equal(t, "handler-0", handlers[0].Name)
	assert.Equal(t, "handler-1", handlers[1].Name)
	assert.Nil(t, handlers[0].Handler)
}

func TestUnsubscribe(t *testing.T) {
	d := NewDispatcher()
	calls := 0
	d.Subscribe(event.TypeBillCommitted, "refresh", func(ctx context.Context, evt *event.Event) error {
		calls++
		return nil
	})

	require.NoError(t, d.Dispatch(context.Background(), committed()))
	d.Unsubscribe(event.TypeBillCommitted, "refresh")
	require.NoError(t, d.Dispatch(context.Background(), committed()))

	assert.Equal(t, 1, calls)
	assert.Empty(t, d.Handlers(event.TypeBillCommitted))
}

func TestDispatchAsync_CloseWaitsForHandlers(t *testing.T) {
	d := NewDispatcher()
	var done atomic.Int32

	for i := 0; i < 5; i++ {
		d.Subscribe(event.TypeBillCommitted, fmt.Sprintf("slow-%d", i), func(ctx context.Context, evt *event.Event) error {
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
			return nil
		})
	}

	d.DispatchAsync(context.Background(), committed())
	require.NoError(t, d.Close())
	assert.Equal(t, int32(5), done.Load())
}

func TestClose(t *testing.T) {
	logger := &mockLogger{}
	d := NewDispatcher(WithLogger(logger))
	called := false
	d.Subscribe(event.TypeBillCommitted, "late", func(ctx context.Context, evt *event.Event) error {
		called = true
		return nil
	})

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), ErrClosed)
	assert.ErrorIs(t, d.Dispatch(context.Background(), committed()), ErrClosed)

	d.DispatchAsync(context.Background(), committed())
	assert.False(t, called)
	assert.Equal(t, 1, logger.ErrorCount())
}
