// ABOUTME: PDF extraction via dslipak/pdf with proportional page splitting
// ABOUTME: Page texts are joined then re-split by rune count, approximating page boundaries
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/harper/bookbuddy/internal/models"
)

func parsePDF(data []byte) (doc *models.ParsedDocument, err error) {
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}

	// The pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages := r.NumPage()
	text, err := pdfText(r, numPages)
	if err != nil {
		return nil, err
	}

	info := r.Trailer().Key("Info")

	return &models.ParsedDocument{
		FullText: text,
		Pages:    splitProportional(text, numPages),
		Metadata: models.ParsedMetadata{
			Title:      strings.TrimSpace(info.Key("Title").Text()),
			Author:     strings.TrimSpace(info.Key("Author").Text()),
			TotalPages: numPages,
		},
	}, nil
}

// pdfText extracts each page separately and joins pages with a blank line.
// Reader.GetPlainText concatenates pages with no separator, which fuses the
// last word of one page with the first word of the next.
func pdfText(r *pdf.Reader, numPages int) (string, error) {
	fonts := make(map[string]*pdf.Font)
	texts := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		t, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("failed to read text of page %d: %w", i, err)
		}
		texts = append(texts, t)
	}
	return strings.Join(texts, "\n\n"), nil
}

// splitProportional cuts text into exactly pages spans of ceil(len/pages) runes.
// Spans are contiguous and cover the text; each page is trimmed after cutting.
func splitProportional(text string, pages int) []models.Page {
	if pages <= 0 {
		return nil
	}

	runes := []rune(text)
	total := len(runes)
	perPage := (total + pages - 1) / pages

	out := make([]models.Page, pages)
	for i := 0; i < pages; i++ {
		start := min(i*perPage, total)
		end := min((i+1)*perPage, total)
		out[i] = models.Page{
			Number: i + 1,
			Text:   strings.TrimSpace(string(runes[start:end])),
		}
	}
	return out
}
