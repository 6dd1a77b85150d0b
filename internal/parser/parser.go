// ABOUTME: Document parser that turns raw PDF, EPUB, and TXT bytes into paged text
// ABOUTME: Dispatches by file type and reports metadata without inventing values
package parser

import (
	"errors"
	"fmt"

	"github.com/harper/bookbuddy/internal/models"
)

// ErrUnsupportedType is returned for any file type other than pdf, epub, or txt
var ErrUnsupportedType = errors.New("unsupported file type")

// DefaultWordsPerPage is the TXT page size in whitespace-separated words
const DefaultWordsPerPage = 500

// Parser converts document bytes into a ParsedDocument
type Parser struct {
	wordsPerPage int
}

// Option configures a Parser
type Option func(*Parser)

// WithWordsPerPage sets the TXT page size; non-positive values are ignored
func WithWordsPerPage(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.wordsPerPage = n
		}
	}
}

// New creates a Parser
func New(opts ...Option) *Parser {
	p := &Parser{wordsPerPage: DefaultWordsPerPage}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses data as the given file type using default settings
func Parse(data []byte, fileType models.FileType) (*models.ParsedDocument, error) {
	return New().Parse(data, fileType)
}

// Parse parses data as the given file type.
// Corrupt input fails the whole parse; there are no partial results.
func (p *Parser) Parse(data []byte, fileType models.FileType) (*models.ParsedDocument, error) {
	switch fileType {
	case models.FileTypePDF:
		doc, err := parsePDF(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PDF: %w", err)
		}
		return doc, nil
	case models.FileTypeEPUB:
		doc, err := parseEPUB(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EPUB: %w", err)
		}
		return doc, nil
	case models.FileTypeTXT:
		return parseTXT(data, p.wordsPerPage), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
	}
}
