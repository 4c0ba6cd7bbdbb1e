// internal/processor/pdf.go
package processor

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrMissingInput is returned when an input file does not exist
var ErrMissingInput = errors.New("input file not found")

// PDFExtractor handles PDF text extraction
type PDFExtractor struct {
	// PageSeparator is appended after every extracted page
	PageSeparator string
}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{
		PageSeparator: "\n",
	}
}

// CheckInputs verifies that every path exists before any processing starts
func CheckInputs(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("%w: no input files given", ErrMissingInput)
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrMissingInput, p)
			}
			return fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s is a directory", ErrMissingInput, p)
		}
	}
	return nil
}

// ExtractText extracts the text of every page of a PDF file in document order
func (p *PDFExtractor) ExtractText(filePath string) (string, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract plain text from page %d: %w", i, err)
		}

		sb.WriteString(text)
		sb.WriteString(p.PageSeparator)
	}

	return sb.String(), nil
}

// ExtractAll concatenates the text of all files in list order
func (p *PDFExtractor) ExtractAll(paths []string) (string, error) {
	var sb strings.Builder
	for _, path := range paths {
		text, err := p.ExtractText(path)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from %s: %w", path, err)
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
