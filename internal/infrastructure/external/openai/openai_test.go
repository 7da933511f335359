package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/infrastructure/document"
	"github.com/garyjia/expense-capture/internal/infrastructure/resilience"
)

type fakeOpenAI struct {
	server   *httptest.Server
	calls    atomic.Int32
	failures int32
	reply    string
	lastBody map[string]interface{}
}

func newFakeOpenAI(t *testing.T, reply string, failures int32) *fakeOpenAI {
	f := &fakeOpenAI{reply: reply, failures: failures}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.calls.Add(1)
		if n <= f.failures {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.lastBody)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": f.reply},
			}},
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeOpenAI) config() Config {
	return Config{
		APIKey:  "test-key",
		BaseURL: f.server.URL + "/v1",
		Model:   "gpt-4o",
		Retry:   resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}
}

func pngUpload(t *testing.T) port.UploadFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return port.UploadFile{Name: "receipt.png", ContentType: "image/png", Data: buf.Bytes()}
}

func TestExtractor_Extract(t *testing.T) {
	fake := newFakeOpenAI(t, `{"raw_text":"ACME\nTOTAL 99","bill":{"vendor":"Acme","total_amount":99,"payment_method":"UPI"}}`, 0)
	ex := NewExtractor(fake.config(), nil, document.NewRenderer(2, zap.NewNop()), zap.NewNop())

	ext, err := ex.Extract(context.Background(), pngUpload(t))
	require.NoError(t, err)
	assert.Equal(t, "Acme", ext.Draft.Vendor)
	assert.Equal(t, "UPI", ext.Draft.PaymentMethod)
	assert.Equal(t, "ACME\nTOTAL 99", ext.RawText)

	assert.Equal(t, "gpt-4o", fake.lastBody["model"])
	messages := fake.lastBody["messages"].([]interface{})
	require.Len(t, messages, 2)
	user := messages[1].(map[string]interface{})
	parts := user["content"].([]interface{})
	require.Len(t, parts, 2)
	imagePart := parts[1].(map[string]interface{})
	url := imagePart["image_url"].(map[string]interface{})["url"].(string)
	assert.Contains(t, url, "data:image/png;base64,")
}

func TestExtractor_RetriesServerErrors(t *testing.T) {
	fake := newFakeOpenAI(t, `{"raw_text":"","bill":{}}`, 2)
	ex := NewExtractor(fake.config(), nil, document.NewRenderer(2, zap.NewNop()), zap.NewNop())

	ext, err := ex.Extract(context.Background(), pngUpload(t))
	require.NoError(t, err)
	assert.True(t, ext.Draft.IsEmpty())
	assert.Equal(t, int32(3), fake.calls.Load())
}

func TestExtractor_UnsupportedUpload(t *testing.T) {
	fake := newFakeOpenAI(t, `{}`, 0)
	ex := NewExtractor(fake.config(), nil, document.NewRenderer(2, zap.NewNop()), zap.NewNop())

	_, err := ex.Extract(context.Background(), port.UploadFile{Name: "a.txt", Data: []byte("plain words")})
	assert.ErrorIs(t, err, document.ErrUnsupportedType)
	assert.Equal(t, int32(0), fake.calls.Load())
}

func TestPlanner_Plan(t *testing.T) {
	fake := newFakeOpenAI(t, "```json\n{\"operation\":\"SUM\",\"filters\":{\"category\":\"Food\"},\"from\":\"2025-02-01\",\"to\":\"2025-02-28\"}\n```", 0)
	p := NewPlanner(fake.config(), nil, zap.NewNop())

	plan, err := p.Plan(context.Background(), "how much did I spend on food last month?", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, entity.QuerySum, plan.Operation)
	assert.Equal(t, "Food", plan.Filters.Category)
	assert.Equal(t, "2025-02-01", plan.From)
	assert.Equal(t, 50, plan.Limit)

	messages := fake.lastBody["messages"].([]interface{})
	user := messages[1].(map[string]interface{})
	assert.Contains(t, user["content"], "Today is 2025-03-10.")
}

func TestPlanner_PermanentFailureNotRetried(t *testing.T) {
	calls := atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	p := NewPlanner(Config{APIKey: "x", BaseURL: server.URL + "/v1", Model: "m"}, nil, zap.NewNop())
	_, err := p.Plan(context.Background(), "anything", time.Now())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
