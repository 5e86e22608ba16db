package pdfextract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MinPageChars is the shortest page text kept; shorter pages are usually
// scans, blank pages or page numbers.
const MinPageChars = 10

type Page struct {
	Number int
	Text   string
}

// ExtractPages returns the plain text of each page with at least
// MinPageChars characters. Page numbers are 1-based.
func ExtractPages(data []byte) ([]Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty pdf")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d failed: %w", i, err)
		}
		text = strings.ToValidUTF8(text, "�")
		if len([]rune(strings.TrimSpace(text))) < MinPageChars {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
