package entity

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Disposition tells the caller how retrieved bytes should be presented
type Disposition string

const (
	DispositionInline     Disposition = "inline"
	DispositionAttachment Disposition = "attachment"
)

// DispositionFor maps the preview flag to a disposition
func DispositionFor(preview bool) Disposition {
	if preview {
		return DispositionInline
	}
	return DispositionAttachment
}

// Header renders the Content-Disposition header value for a file name
func (d Disposition) Header(fileName string) string {
	return fmt.Sprintf("%s; filename=%q", d, fileName)
}

// ContentTypeFor resolves a content type from the file name's extension
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

// StoredFile is an uploaded source document registered for later retrieval
type StoredFile struct {
	Path         string     `json:"path"`
	UserID       string     `json:"user_id"`
	OriginalName string     `json:"original_name"`
	ContentType  string     `json:"content_type"`
	Size         int64      `json:"size"`
	BillID       string     `json:"bill_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`
}

// IsClaimed reports whether a committed bill references the file
func (f *StoredFile) IsClaimed() bool {
	return f.ClaimedAt != nil
}

// RetrievedFile is the payload of a preview or download
type RetrievedFile struct {
	Data        []byte
	ContentType string
	Disposition Disposition
	FileName    string
}
