// Package document turns uploaded bills into page images a vision model can
// read, keeping any text a PDF already embeds.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

const (
	mimePDF  = "application/pdf"
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"

	// DefaultMaxPages bounds how many PDF pages are sent to the model
	DefaultMaxPages = 2
)

var (
	// ErrUnsupportedType is returned for uploads that are neither PDF nor JPEG/PNG
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrNoPages is returned when no page of a PDF could be rendered
	ErrNoPages = errors.New("no pages rendered")
)

// Page is one image sent to a vision model
type Page struct {
	Data     []byte
	MIMEType string
}

// Rendered is a document ready for extraction
type Rendered struct {
	MIMEType string
	Pages    []Page
	// Text is the text layer of a PDF, empty for images and scans
	Text      string
	PageCount int
}

// Renderer rasterizes PDFs with MuPDF and passes images through
type Renderer struct {
	maxPages int
	quality  int
	logger   *zap.Logger
}

// NewRenderer creates a renderer. maxPages <= 0 uses DefaultMaxPages.
func NewRenderer(maxPages int, logger *zap.Logger) *Renderer {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Renderer{
		maxPages: maxPages,
		quality:  85,
		logger:   logger,
	}
}

// DetectMIME resolves an upload's type from its bytes, then its declared
// content type, then its file name
func DetectMIME(file port.UploadFile) string {
	if sniffed := http.DetectContentType(file.Data); sniffed != "application/octet-stream" {
		if i := strings.IndexByte(sniffed, ';'); i >= 0 {
			sniffed = sniffed[:i]
		}
		return sniffed
	}
	if ct := strings.TrimSpace(file.ContentType); ct != "" {
		return strings.ToLower(ct)
	}
	return entity.ContentTypeFor(file.Name)
}

// Render prepares an upload for a vision model
func (r *Renderer) Render(file port.UploadFile) (*Rendered, error) {
	mime := DetectMIME(file)
	switch mime {
	case mimeJPEG, mimePNG:
		return &Rendered{
			MIMEType:  mime,
			Pages:     []Page{{Data: file.Data, MIMEType: mime}},
			PageCount: 1,
		}, nil
	case mimePDF:
		return r.renderPDF(file)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mime)
	}
}

func (r *Renderer) renderPDF(file port.UploadFile) (*Rendered, error) {
	doc, err := fitz.NewFromMemory(file.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	out := &Rendered{MIMEType: mimePDF, PageCount: doc.NumPage()}
	var text []string

	for n := 0; n < out.PageCount && n < r.maxPages; n++ {
		if t, err := doc.Text(n); err == nil && strings.TrimSpace(t) != "" {
			text = append(text, strings.TrimSpace(t))
		}

		img, err := doc.Image(n)
		if err != nil {
			r.logger.Warn("Failed to render page",
				zap.String("file", file.Name),
				zap.Int("page", n),
				zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			r.logger.Warn("Failed to encode page",
				zap.String("file", file.Name),
				zap.Int("page", n),
				zap.Error(err))
			continue
		}
		out.Pages = append(out.Pages, Page{Data: buf.Bytes(), MIMEType: mimeJPEG})
	}

	if len(out.Pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPages, file.Name)
	}
	out.Text = strings.Join(text, "\n\n")

	r.logger.Debug("Rendered PDF",
		zap.String("file", file.Name),
		zap.Int("page_count", out.PageCount),
		zap.Int("rendered", len(out.Pages)))
	return out, nil
}
