// ABOUTME: Parser output types shared by the parser, chunker and ingestion pipeline
// ABOUTME: Pages are numbered from 1 and carry an optional chapter label
package models

// Page is one page-like unit of normalized text
type Page struct {
	Number  int    `json:"page_number"`
	Text    string `json:"text"`
	Chapter string `json:"chapter,omitempty"`
}

// ParsedMetadata is best-effort metadata; empty fields were not found in the source
type ParsedMetadata struct {
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
	Language   string `json:"language,omitempty"`
	TotalPages int    `json:"total_pages"`
}

// ParsedDocument is the normalized, page-structured form of an uploaded file
type ParsedDocument struct {
	FullText string         `json:"full_text"`
	Pages    []Page         `json:"pages"`
	Metadata ParsedMetadata `json:"metadata"`
}

// ChapterRefs returns the page → chapter table stored on the document
func (p *ParsedDocument) ChapterRefs() []ChapterRef {
	refs := make([]ChapterRef, len(p.Pages))
	for i, page := range p.Pages {
		refs[i] = ChapterRef{Page: page.Number, Chapter: page.Chapter}
	}
	return refs
}
