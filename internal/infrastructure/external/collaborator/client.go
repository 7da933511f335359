// Package collaborator is the client side of the bill server's HTTP API. It
// implements the application ports the capture, confirmation, listing and
// retrieval components depend on.
package collaborator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/infrastructure/resilience"
)

// Client calls the bill server over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithRetry sets the retry policy for idempotent reads
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		retry:   resilience.DefaultRetryConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest submits a document as multipart form data or a manual bill as JSON
func (c *Client) Ingest(ctx context.Context, req port.IngestRequest) (*port.IngestResponse, error) {
	var (
		body        io.Reader
		contentType string
	)

	if req.File != nil {
		buf, ct, err := multipartIngest(req)
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	} else {
		data, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("failed to encode ingest request: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	var out port.IngestResponse
	if err := c.do(ctx, http.MethodPost, "/api/ingest", nil, body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func multipartIngest(req port.IngestRequest) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", req.File.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(req.File.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %w", err)
	}

	fields := map[string]string{"user_id": req.UserID}
	if req.Metadata.Category != "" {
		fields["category"] = req.Metadata.Category
	}
	if req.Metadata.TotalAmount != nil {
		fields["total_amount"] = strconv.FormatFloat(*req.Metadata.TotalAmount, 'f', -1, 64)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", k, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// Confirm commits an approved draft
func (c *Client) Confirm(ctx context.Context, req port.ConfirmRequest) (*port.ConfirmResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode confirm request: %w", err)
	}

	var out port.ConfirmResponse
	if err := c.do(ctx, http.MethodPost, "/api/ingest/confirm", nil, bytes.NewReader(data), "application/json", &out); err != nil {
		return nil, err
	}
	if out.Status != entity.StatusOK {
		return nil, fmt.Errorf("%w: confirm returned %q", port.ErrUnexpectedStatus, out.Status)
	}
	return &out, nil
}

// List fetches one page of bills. Transient failures are retried.
func (c *Client) List(ctx context.Context, req port.ListRequest) (*entity.BillPage, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*entity.BillPage, error) {
		var out entity.BillPage
		if err := c.do(ctx, http.MethodGet, "/api/bills", listValues(req), nil, "", &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func listValues(req port.ListRequest) url.Values {
	q := req.Query
	v := url.Values{}
	v.Set("user_id", req.UserID)
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("page_size", strconv.Itoa(q.PageSize))
	v.Set("sort_by", string(q.SortBy))
	v.Set("sort_order", string(q.SortOrder))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	return v
}

// Retrieve downloads a stored document
func (c *Client) Retrieve(ctx context.Context, req port.RetrieveRequest) (*entity.RetrievedFile, error) {
	v := url.Values{}
	v.Set("user_id", req.UserID)
	v.Set("path", req.Path)
	if req.Preview {
		v.Set("preview", "true")
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*entity.RetrievedFile, error) {
		resp, err := c.send(ctx, http.MethodGet, "/api/download", v, nil, "")
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(fmt.Errorf("failed to read file body: %w", err), 0)
		}

		out := &entity.RetrievedFile{
			Data:        data,
			ContentType: resp.Header.Get("Content-Type"),
			Disposition: entity.DispositionFor(req.Preview),
			FileName:    lastSegment(req.Path),
		}
		if disp, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
			out.Disposition = entity.Disposition(disp)
			if name := params["filename"]; name != "" {
				out.FileName = name
			}
		}
		return out, nil
	})
}

// Export downloads the listing as a spreadsheet and returns its file name
func (c *Client) Export(ctx context.Context, req port.ListRequest) ([]byte, string, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/bills/export", listValues(req), nil, "")
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read export body: %w", err)
	}
	name := "bills.xlsx"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return data, name, nil
}

// Answer asks a natural-language question
func (c *Client) Answer(ctx context.Context, req port.QueryRequest) (*port.QueryResponse, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	var out port.QueryResponse
	if err := c.do(ctx, http.MethodPost, "/api/query", nil, bytes.NewReader(data), "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends a request and decodes a JSON success body into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out interface{}) error {
	resp, err := c.send(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// send performs the request and turns non-2xx replies into classified errors
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, statusError(resp)
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
}

// statusError maps a failed reply to the sentinel callers test for
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil {
		switch {
		case env.Error != "":
			msg = env.Error
		case env.Detail != "":
			msg = env.Detail
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = port.ErrInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = entity.ErrUnauthorized
	case http.StatusNotFound:
		sentinel = port.ErrFileNotFound
	case http.StatusConflict:
		sentinel = port.ErrDuplicateBill
	}
	if sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}

	err := &StatusError{Code: resp.StatusCode, Message: msg}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return resilience.NewTransientError(err, resp.StatusCode)
	}
	return err
}

// StatusError is an unclassified non-2xx reply
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// IsStatus reports whether err carries the given HTTP status
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func lastSegment(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Verify interface compliance
var (
	_ port.Ingester      = (*Client)(nil)
	_ port.Confirmer     = (*Client)(nil)
	_ port.BillLister    = (*Client)(nil)
	_ port.FileRetriever = (*Client)(nil)
	_ port.QueryAnswerer = (*Client)(nil)
)
