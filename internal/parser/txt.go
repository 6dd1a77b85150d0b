// ABOUTME: Plain-text parsing into fixed-size word pages
// ABOUTME: Invalid UTF-8 is replaced rather than rejected
package parser

import (
	"strings"

	"github.com/harper/bookbuddy/internal/models"
)

func parseTXT(data []byte, wordsPerPage int) *models.ParsedDocument {
	text := strings.ToValidUTF8(string(data), "\uFFFD")
	words := strings.Fields(text)

	var pages []models.Page
	for i := 0; i < len(words); i += wordsPerPage {
		end := min(i+wordsPerPage, len(words))
		pages = append(pages, models.Page{
			Number: i/wordsPerPage + 1,
			Text:   strings.Join(words[i:end], " "),
		})
	}

	return &models.ParsedDocument{
		FullText: text,
		Pages:    pages,
		Metadata: models.ParsedMetadata{TotalPages: len(pages)},
	}
}
