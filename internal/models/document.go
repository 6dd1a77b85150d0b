// ABOUTME: Document represents an uploaded book and its parse-derived metadata
// ABOUTME: Owns its chunks; created at upload time, filled in once by ingestion
package models

import (
	"errors"
	"strings"
	"time"
)

// FileType is the declared format of an uploaded document
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeEPUB FileType = "epub"
	FileTypeTXT  FileType = "txt"
)

// ErrUnsupportedFileType is returned for formats other than pdf, epub and txt
var ErrUnsupportedFileType = errors.New("unsupported file type")

// IsValid returns true if the file type is one the parser understands
func (ft FileType) IsValid() bool {
	switch ft {
	case FileTypePDF, FileTypeEPUB, FileTypeTXT:
		return true
	}
	return false
}

// ParseFileType normalizes a declared type or file extension ("PDF", ".epub")
func ParseFileType(s string) (FileType, error) {
	ft := FileType(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	if !ft.IsValid() {
		return "", ErrUnsupportedFileType
	}
	return ft, nil
}

// ChapterRef maps a page entry to its chapter label
type ChapterRef struct {
	Page    int    `json:"page"`
	Chapter string `json:"chapter,omitempty"`
}

// Document is a stored book. Empty Author/Language/OwnerID mean absent.
type Document struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Author     string       `json:"author,omitempty"`
	Language   string       `json:"language,omitempty"`
	FileType   FileType     `json:"file_type"`
	FileSize   int64        `json:"file_size"`
	StorageKey string       `json:"storage_key"`
	TotalPages *int         `json:"total_pages,omitempty"`
	Chapters   []ChapterRef `json:"chapters,omitempty"`
	OwnerID    string       `json:"owner_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// IsOrphan reports whether the document has no owner
func (d *Document) IsOrphan() bool {
	return d.OwnerID == ""
}

// CanDelete reports whether caller may delete the document (owner, or anyone for orphans)
func (d *Document) CanDelete(callerID string) bool {
	return d.IsOrphan() || (callerID != "" && d.OwnerID == callerID)
}

// DerivedMetadata is what ingestion learns about a document after parsing
type DerivedMetadata struct {
	Title      string
	Author     string
	Language   string
	TotalPages int
	Chapters   []ChapterRef
}
