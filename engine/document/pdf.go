package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// MaxPDFPages caps extraction; pages past the cap are dropped and the
// document is marked truncated.
const MaxPDFPages = 50

// extractPDF pulls plain text from a PDF, page by page, up to the page
// cap. Pages that fail to decode are skipped rather than failing the
// whole document.
func extractPDF(data []byte) (text string, pages int, truncated bool, err error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, false, fmt.Errorf("opening pdf: %w", err)
	}
	total := reader.NumPage()
	limit := total
	if limit > MaxPDFPages {
		limit = MaxPDFPages
		truncated = true
	}
	var b strings.Builder
	for i := 1; i <= limit; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
	}
	return b.String(), limit, truncated, nil
}
