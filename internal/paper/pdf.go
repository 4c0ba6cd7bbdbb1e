package paper

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFRenderer draws a paper onto bordered pages. All sizes are in points.
type PDFRenderer struct {
	PageSize   string
	Margin     float64
	Font       string
	TitleSize  float64
	BodySize   float64
	Leading    float64
	Inset      float64
	SpaceAfter float64
	BorderLine float64
}

// NewPDFRenderer returns a renderer with the default Letter layout
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{
		PageSize:   "Letter",
		Margin:     72,
		Font:       "Helvetica",
		TitleSize:  16,
		BodySize:   11,
		Leading:    14,
		Inset:      20,
		SpaceAfter: 12,
		BorderLine: 1,
	}
}

// Render writes the paper as a PDF to w and returns its page count
func (r *PDFRenderer) Render(p Paper, w io.Writer) (int, error) {
	doc := r.draw(p)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return 0, fmt.Errorf("failed to build PDF: %w", err)
	}

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(buf.Bytes()), model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("generated PDF failed validation: %w", err)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to write PDF: %w", err)
	}
	return ctx.PageCount, nil
}

// RenderFile renders the paper to path, replacing any existing file
func (r *PDFRenderer) RenderFile(p Paper, path string) (int, error) {
	var buf bytes.Buffer
	pages, err := r.Render(p, &buf)
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return pages, nil
}

func (r *PDFRenderer) draw(p Paper) *fpdf.Fpdf {
	m := r.Margin
	doc := fpdf.New("P", "pt", r.PageSize, "")
	// frame padding between the border and the content
	pad := r.Leading / 2

	doc.SetMargins(m, m, m)
	doc.SetAutoPageBreak(true, m+pad)
	doc.SetTitle(p.Title, true)

	pageW, pageH := doc.GetPageSize()
	tr := doc.UnicodeTranslatorFromDescriptor("")

	top := m + pad
	bottom := pageH - m - pad

	doc.SetHeaderFunc(func() {
		doc.SetDrawColor(0, 0, 0)
		doc.SetLineWidth(r.BorderLine)
		doc.Rect(m, m, pageW-2*m, pageH-2*m, "D")
		doc.SetXY(m, top)
	})

	doc.AddPage()

	doc.SetFont(r.Font, "B", r.TitleSize)
	doc.CellFormat(0, r.TitleSize*1.5, tr(p.Title), "", 1, "C", false, 0, "")
	doc.Ln(r.SpaceAfter * 2)

	doc.SetFont(r.Font, "", r.BodySize)
	left := m + r.Inset
	textW := pageW - 2*m - 2*r.Inset - r.Inset

	for _, it := range p.Items {
		text := tr(it.Text)

		// keep each question on a single page when it fits on one
		height := float64(len(doc.SplitText(text, textW))) * r.Leading
		if doc.GetY()+height > bottom && doc.GetY() > top+r.Leading {
			doc.AddPage()
		}

		y := doc.GetY()
		doc.SetXY(left, y)
		doc.CellFormat(r.Inset, r.Leading, fmt.Sprintf("%d.", it.Number), "", 0, "L", false, 0, "")

		doc.SetLeftMargin(left + r.Inset)
		doc.SetXY(left+r.Inset, y)
		doc.MultiCell(textW, r.Leading, text, "", "J", false)
		doc.SetLeftMargin(m)

		doc.Ln(r.SpaceAfter)
	}

	return doc
}
