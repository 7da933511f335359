package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/application/service"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// BillService serves listings and exports
type BillService interface {
	port.BillLister
	Export(ctx context.Context, req port.ListRequest) (*service.ExportResult, error)
}

// Services are the application use cases the handlers call
type Services struct {
	Ingester  port.Ingester
	Confirmer port.Confirmer
	Bills     BillService
	Retriever port.FileRetriever
	Answerer  port.QueryAnswerer
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	services       Services
	maxUploadBytes int64
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, maxUploadBytes int64, logger Logger) *Handlers {
	return &Handlers{
		services:       services,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ListBillsRequest represents query parameters for listing bills
type ListBillsRequest struct {
	UserID    string `form:"user_id"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortBy    string `form:"sort_by"`
	SortOrder string `form:"sort_order"`
	Search    string `form:"search"`
}

func (r ListBillsRequest) toPort() port.ListRequest {
	return port.ListRequest{
		UserID: r.UserID,
		Query: entity.ListingQuery{
			Page:      r.Page,
			PageSize:  r.PageSize,
			SortBy:    entity.SortField(r.SortBy),
			SortOrder: entity.SortOrder(r.SortOrder),
			Search:    r.Search,
		},
	}
}

// DownloadRequest represents query parameters for file retrieval
type DownloadRequest struct {
	UserID  string `form:"user_id"`
	Path    string `form:"path"`
	Preview bool   `form:"preview"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// Ingest handles POST /api/ingest. Documents arrive as multipart form data,
// manual bills and reprocessing requests as JSON.
func (h *Handlers) Ingest(c *gin.Context) {
	var (
		req port.IngestRequest
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err = h.bindUpload(c)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		h.logger.Error("Invalid ingest request", "error", err)
		h.fail(c, http.StatusBadRequest, invalidMessage(err))
		return
	}

	resp, err := h.services.Ingester.Ingest(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Ingest failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) bindUpload(c *gin.Context) (port.IngestRequest, error) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+(1<<20))
	}

	header, err := c.FormFile("file")
	if err != nil {
		return port.IngestRequest{}, fmt.Errorf("file is required: %w", err)
	}
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		return port.IngestRequest{}, fmt.Errorf("file exceeds %d bytes", h.maxUploadBytes)
	}

	f, err := header.Open()
	if err != nil {
		return port.IngestRequest{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return port.IngestRequest{}, fmt.Errorf("failed to read upload: %w", err)
	}

	req := port.IngestRequest{
		UserID: c.PostForm("user_id"),
		File: &port.UploadFile{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		},
		Metadata: port.IngestMetadata{Category: strings.TrimSpace(c.PostForm("category"))},
	}
	if raw := strings.TrimSpace(c.PostForm("total_amount")); raw != "" {
		v, err := entity.ParseAmount(raw)
		if err != nil {
			return port.IngestRequest{}, fmt.Errorf("total_amount: %w", err)
		}
		req.Metadata.TotalAmount = &v
	}
	return req, nil
}

// Confirm handles POST /api/ingest/confirm
func (h *Handlers) Confirm(c *gin.Context) {
	var req port.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid confirm request", "error", err)
		h.fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.services.Confirmer.Confirm(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Confirm failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListBills handles GET /api/bills
func (h *Handlers) ListBills(c *gin.Context) {
	var req ListBillsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		h.fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	page, err := h.services.Bills.List(c.Request.Context(), req.toPort())
	if err != nil {
		h.writeError(c, "Failed to list bills", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// ExportBills handles GET /api/bills/export
func (h *Handlers) ExportBills(c *gin.Context) {
	var req ListBillsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		h.fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	result, err := h.services.Bills.Export(c.Request.Context(), req.toPort())
	if err != nil {
		h.writeError(c, "Failed to export bills", err)
		return
	}

	c.Header("Content-Disposition", entity.DispositionAttachment.Header(result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// Download handles GET /api/download
func (h *Handlers) Download(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		h.fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}

	file, err := h.services.Retriever.Retrieve(c.Request.Context(), port.RetrieveRequest{
		UserID:  req.UserID,
		Path:    req.Path,
		Preview: req.Preview,
	})
	if err != nil {
		h.writeError(c, "Failed to retrieve file", err)
		return
	}

	c.Header("Content-Disposition", file.Disposition.Header(file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Query handles POST /api/query
func (h *Handlers) Query(c *gin.Context) {
	var req port.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid query request", "error", err)
		h.fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.services.Answerer.Answer(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "Query failed", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeError maps application errors to status codes without leaking
// internal detail
func (h *Handlers) writeError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, entity.ErrUnauthorized):
		h.fail(c, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, port.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidQuery),
		errors.Is(err, entity.ErrInvalidSort):
		h.fail(c, http.StatusBadRequest, invalidMessage(err))
	case errors.Is(err, port.ErrFileNotFound):
		h.fail(c, http.StatusNotFound, "File not found")
	case errors.Is(err, port.ErrDuplicateBill):
		h.fail(c, http.StatusConflict, "bill already exists")
	default:
		h.logger.Error(msg, "error", err, "path", c.Request.URL.Path)
		h.fail(c, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handlers) fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

// invalidMessage strips the sentinel prefix so the caller sees the reason
func invalidMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{port.ErrInvalidRequest, service.ErrInvalidQuery} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}
