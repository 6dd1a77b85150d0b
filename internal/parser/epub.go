// ABOUTME: EPUB parsing: container.xml to OPF, spine order, NCX chapter labels
// ABOUTME: Each spine item becomes one page with markup stripped and whitespace collapsed
package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/harper/bookbuddy/internal/models"
	"golang.org/x/net/html"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles    []string `xml:"title"`
		Creators  []string `xml:"creator"`
		Languages []string `xml:"language"`
	} `xml:"metadata"`
	Manifest []struct {
		ID        string `xml:"id,attr"`
		Href      string `xml:"href,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"manifest>item"`
	Spine struct {
		Toc      string `xml:"toc,attr"`
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type ncxNavPoint struct {
	Label   string `xml:"navLabel>text"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxNavPoint `xml:"navPoint"`
}

type ncxDocument struct {
	NavPoints []ncxNavPoint `xml:"navMap>navPoint"`
}

func parseEPUB(data []byte) (*models.ParsedDocument, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open EPUB zip: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := decodeXML(files, "META-INF/container.xml", &container); err != nil {
		return nil, err
	}
	if len(container.Rootfiles) == 0 || container.Rootfiles[0].FullPath == "" {
		return nil, errors.New("invalid EPUB: container.xml names no rootfile")
	}
	opfPath := container.Rootfiles[0].FullPath
	opfDir := path.Dir(opfPath)

	var opf opfPackage
	if err := decodeXML(files, opfPath, &opf); err != nil {
		return nil, err
	}

	hrefs := make(map[string]string, len(opf.Manifest))
	for _, item := range opf.Manifest {
		hrefs[item.ID] = resolveHref(opfDir, item.Href)
	}

	labels := map[string]string{}
	if tocPath, ok := hrefs[opf.Spine.Toc]; ok {
		var toc ncxDocument
		// A broken table of contents only costs chapter labels
		if err := decodeXML(files, tocPath, &toc); err == nil {
			collectLabels(path.Dir(tocPath), toc.NavPoints, labels)
		}
	}

	if len(opf.Spine.ItemRefs) == 0 {
		return nil, errors.New("invalid EPUB: empty spine")
	}

	var (
		pages    []models.Page
		fullText strings.Builder
	)
	for _, ref := range opf.Spine.ItemRefs {
		itemPath, ok := hrefs[ref.IDRef]
		if !ok {
			return nil, fmt.Errorf("invalid EPUB: spine references unknown item %q", ref.IDRef)
		}
		raw, err := readZipFile(files, itemPath)
		if err != nil {
			return nil, err
		}

		text, title := stripMarkup(raw)
		chapter := labels[itemPath]
		if chapter == "" {
			chapter = title
		}

		pages = append(pages, models.Page{
			Number:  len(pages) + 1,
			Text:    text,
			Chapter: chapter,
		})
		fullText.WriteString(text)
		fullText.WriteString("\n\n")
	}

	return &models.ParsedDocument{
		FullText: fullText.String(),
		Pages:    pages,
		Metadata: models.ParsedMetadata{
			Title:      firstNonEmpty(opf.Metadata.Titles),
			Author:     firstNonEmpty(opf.Metadata.Creators),
			Language:   firstNonEmpty(opf.Metadata.Languages),
			TotalPages: len(pages),
		},
	}, nil
}

func readZipFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("invalid EPUB: missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func decodeXML(files map[string]*zip.File, name string, v any) error {
	data, err := readZipFile(files, name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// resolveHref joins a manifest href onto its base directory, dropping any fragment
func resolveHref(base, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	if base == "." || base == "" {
		return path.Clean(href)
	}
	return path.Join(base, href)
}

// collectLabels maps content paths to navPoint titles; the first label seen wins
func collectLabels(base string, points []ncxNavPoint, labels map[string]string) {
	for _, p := range points {
		target := resolveHref(base, p.Content.Src)
		label := collapseWhitespace(p.Label)
		if _, seen := labels[target]; !seen && label != "" {
			labels[target] = label
		}
		collectLabels(base, p.Children, labels)
	}
}

// stripMarkup returns the visible text of an XHTML document and its <title>
func stripMarkup(raw []byte) (text, title string) {
	z := html.NewTokenizer(bytes.NewReader(raw))

	var (
		body    strings.Builder
		titleSB strings.Builder
		skip    int
		inTitle bool
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(body.String()), collapseWhitespace(titleSB.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "title":
				inTitle = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "title":
				inTitle = false
			}
		case html.TextToken:
			switch {
			case inTitle:
				titleSB.Write(z.Text())
			case skip == 0:
				body.Write(z.Text())
			}
		}
		// Tags are word boundaries
		body.WriteByte(' ')
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
