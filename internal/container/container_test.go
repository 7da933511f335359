package container

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "bills.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "files")
	cfg.Extraction.OpenAI.APIKey = "test-key"
	return cfg
}

func startContainer(t *testing.T, cfg *Config) *Container {
	t.Helper()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		if !c.closed.Load() {
			_ = c.Close()
		}
	})
	return c
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"defaults with key", func(c *Config) {}, ""},
		{"missing openai key", func(c *Config) { c.Extraction.OpenAI.APIKey = "" }, "openai.api_key"},
		{"gemini without key", func(c *Config) { c.Extraction.Provider = "gemini" }, "gemini.api_key"},
		{"gemini with key", func(c *Config) {
			c.Extraction.Provider = "gemini"
			c.Extraction.OpenAI.APIKey = ""
			c.Extraction.Gemini.APIKey = "g"
		}, ""},
		{"unknown provider", func(c *Config) { c.Extraction.Provider = "llama" }, "unknown extraction provider"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.bucket"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, "unknown storage backend"},
		{"no users", func(c *Config) { c.Auth.AllowedUsers = nil }, "auth.allowed_users"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Extraction.OpenAI.APIKey = "k"
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewContainer_RequiresConfigAndLogger(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c := startContainer(t, testConfig(t))

	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()))

	health := c.Health()
	assert.True(t, health.Overall, health.Components)
	assert.Equal(t, "local", health.Components["storage"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.Health().Overall)
}

func TestContainer_HTTPRoundTrip(t *testing.T) {
	c := startContainer(t, testConfig(t))

	srv, err := c.NewHTTPServer()
	require.NoError(t, err)
	router := srv.Router()

	body := `{"user_id":"u1","bill":{"vendor":"Acme Stores","bill_date":"31/01/2025","total_amount":"1,250.50",` +
		`"payment_method":"UPI","category":"Grocery","items":[{"name":"Rice","quantity":2,"amount":1250.5}]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var ingested struct {
		Status string `json:"status"`
		BillID string `json:"bill_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ingested))
	assert.Equal(t, entity.StatusOK, ingested.Status)
	require.NotEmpty(t, ingested.BillID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bills?user_id=u1&search=acme", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page entity.BillPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)
	assert.Equal(t, ingested.BillID, page.Data[0].ID)
	assert.Equal(t, "2025-01-31", page.Data[0].BillDate)
	assert.Equal(t, 1250.5, page.Data[0].TotalAmount)
	assert.Equal(t, 1, page.Pagination.Total)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bills/export?user_id=u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "PK"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bills?user_id=stranger", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "expense_capture_")
}

func TestContainer_NewHTTPServerBeforeStart(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	_, err = c.NewHTTPServer()
	assert.Error(t, err)
}

func TestProvideModels_PlannerDisabledWithoutOpenAIKey(t *testing.T) {
	cfg := DefaultConfig().Extraction
	cfg.Provider = "gemini"
	cfg.Gemini.APIKey = "g"

	models, err := ProvideModels(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = models.Planner.Plan(context.Background(), "total", time.Time{})
	assert.ErrorIs(t, err, ErrQueryPlanningDisabled)
	assert.IsType(t, &boundedExtractor{}, models.Extractor)
}
