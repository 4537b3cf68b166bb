package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// RenderPDF converts report markdown to a PDF byte slice. The walker
// covers the node kinds BuildMarkdown emits plus whatever the analysis
// text carries through from the model.
func (s *Service) RenderPDF(markdown string, title string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
	)
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{
		pdf:    pdf,
		source: source,
		font:   "Arial",
		size:   9,
	}
	if err := renderer.render(doc); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render report PDF")
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write PDF output")
		return nil, fmt.Errorf("failed to write PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Str("title", title).Msg("Report PDF rendered")
	return buf.Bytes(), nil
}

// pdfRenderer draws a goldmark AST with fpdf. Ordered lists keep their
// ordinals so a numbered citation list lines up with the inline
// [n][score] markers in the analysis text above it.
type pdfRenderer struct {
	pdf      *fpdf.Fpdf
	source   []byte
	font     string
	size     float64
	bold     bool
	italic   bool
	quoted   bool
	linkURL  string
	ordinals []int // next ordinal per open list, 0 for bulleted lists
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.font, style, r.size)
	if r.quoted {
		r.pdf.SetTextColor(90, 90, 90)
	} else {
		r.pdf.SetTextColor(0, 0, 0)
	}
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case ast.KindText:
		return r.handleText(n.(*ast.Text), entering)
	case ast.KindEmphasis:
		return r.handleEmphasis(n.(*ast.Emphasis), entering)
	case ast.KindLink:
		return r.handleLink(n.(*ast.Link), entering)
	case ast.KindAutoLink:
		return r.handleAutoLink(n.(*ast.AutoLink), entering)
	case ast.KindBlockquote:
		return r.handleBlockquote(entering)
	case ast.KindCodeSpan:
		return r.handleCodeSpan(n, entering)
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if entering {
			r.drawCodeLines(n.Lines())
			return ast.WalkSkipChildren, nil
		}
	case ast.KindList:
		return r.handleList(n.(*ast.List), entering)
	case ast.KindListItem:
		return r.handleListItem(entering)
	case ast.KindThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(10, r.pdf.GetY(), 200, r.pdf.GetY())
			r.pdf.Ln(4)
		}
	case extast.KindTable:
		return r.handleTable(n.(*extast.Table), entering)
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(5)
		size := 10.0
		switch n.Level {
		case 1:
			size = 15
		case 2:
			size = 13
		case 3:
			size = 11
		}
		r.pdf.SetFont(r.font, "B", size)
	} else {
		r.pdf.Ln(6)
		r.updateFont()
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleText(n *ast.Text, entering bool) (ast.WalkStatus, error) {
	if entering {
		segment := string(n.Segment.Value(r.source))
		if r.linkURL != "" {
			r.pdf.WriteLinkString(5, segment, r.linkURL)
		} else {
			r.pdf.Write(5, segment)
		}
		if n.HardLineBreak() {
			r.pdf.Ln(5)
		} else if n.SoftLineBreak() {
			r.pdf.Write(5, " ")
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleEmphasis(n *ast.Emphasis, entering bool) (ast.WalkStatus, error) {
	if n.Level == 2 {
		r.bold = entering
	} else {
		r.italic = entering
	}
	r.updateFont()
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleLink(n *ast.Link, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.linkURL = string(n.Destination)
		r.pdf.SetTextColor(0, 102, 204)
	} else {
		r.linkURL = ""
		r.updateFont()
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleAutoLink(n *ast.AutoLink, entering bool) (ast.WalkStatus, error) {
	if entering {
		url := string(n.URL(r.source))
		r.pdf.SetTextColor(0, 102, 204)
		r.pdf.WriteLinkString(5, url, url)
		r.updateFont()
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleBlockquote(entering bool) (ast.WalkStatus, error) {
	if entering {
		r.quoted = true
		r.pdf.SetLeftMargin(16)
		r.pdf.SetX(16)
	} else {
		r.quoted = false
		r.pdf.SetLeftMargin(10)
		r.pdf.SetX(10)
	}
	r.updateFont()
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleCodeSpan(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.SetFont("Courier", "", r.size)
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if textNode, ok := c.(*ast.Text); ok {
				r.pdf.Write(5, string(textNode.Segment.Value(r.source)))
			}
		}
		return ast.WalkSkipChildren, nil
	}
	r.updateFont()
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) drawCodeLines(lines *text.Segments) {
	r.pdf.Ln(2)
	r.pdf.SetFont("Courier", "", r.size)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		r.pdf.MultiCell(0, 5, string(lines.At(i).Value(r.source)), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.updateFont()
	r.pdf.Ln(2)
}

func (r *pdfRenderer) handleList(n *ast.List, entering bool) (ast.WalkStatus, error) {
	if entering {
		start := 0
		if n.IsOrdered() {
			start = n.Start
			if start == 0 {
				start = 1
			}
		}
		r.ordinals = append(r.ordinals, start)
	} else {
		r.ordinals = r.ordinals[:len(r.ordinals)-1]
		if len(r.ordinals) == 0 {
			r.pdf.Ln(4)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleListItem(entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(5)
		r.pdf.SetX(10 + float64(len(r.ordinals))*5)
		last := len(r.ordinals) - 1
		if r.ordinals[last] > 0 {
			r.pdf.Write(5, fmt.Sprintf("%d. ", r.ordinals[last]))
			r.ordinals[last]++
		} else {
			r.pdf.Write(5, "- ")
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleTable(n *extast.Table, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	// The header's cells sit directly under the TableHeader node, not
	// inside a nested TableRow, so both kinds flatten the same way.
	var rows [][]string
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *extast.TableHeader, *extast.TableRow:
			rows = append(rows, r.cellTexts(child))
		}
	}

	r.drawTable(rows)
	return ast.WalkSkipChildren, nil
}

func (r *pdfRenderer) cellTexts(row ast.Node) []string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			cells = append(cells, string(cell.Text(r.source)))
		}
	}
	return cells
}

func (r *pdfRenderer) drawTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}

	const avail = 190.0
	const fontSize = 8.0
	const lineHeight = 4.0

	widths := r.columnWidths(rows, avail, fontSize)

	r.pdf.Ln(2)
	r.pdf.SetFillColor(235, 235, 235)
	for i, row := range rows {
		header := i == 0
		if header {
			r.pdf.SetFont(r.font, "B", fontSize)
		} else {
			r.pdf.SetFont(r.font, "", fontSize)
		}

		// Wrap every cell first so the row height covers the tallest one
		wrapped := make([][]string, len(widths))
		maxLines := 1
		for j := range widths {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			wrapped[j] = r.wrapToWidth(cell, widths[j]-2)
			if len(wrapped[j]) > maxLines {
				maxLines = len(wrapped[j])
			}
		}
		if maxLines > 8 {
			maxLines = 8
		}

		rowHeight := float64(maxLines)*lineHeight + 2
		if r.pdf.GetY()+rowHeight > 287 {
			r.pdf.AddPage()
		}
		startX := r.pdf.GetX()
		startY := r.pdf.GetY()

		x := startX
		for j := range widths {
			if header {
				r.pdf.Rect(x, startY, widths[j], rowHeight, "FD")
			} else {
				r.pdf.Rect(x, startY, widths[j], rowHeight, "D")
			}
			r.pdf.SetXY(x+1, startY+1)
			for k := 0; k < len(wrapped[j]) && k < maxLines; k++ {
				line := wrapped[j][k]
				if k == maxLines-1 && len(wrapped[j]) > maxLines {
					line = r.ellipsize(line, widths[j]-2)
				}
				r.pdf.CellFormat(widths[j]-2, lineHeight, line, "", 2, "L", false, 0, "")
			}
			x += widths[j]
		}
		r.pdf.SetXY(startX, startY+rowHeight)
	}
	r.pdf.Ln(3)
	r.updateFont()
}

// columnWidths sizes columns from measured content, clamped per column
// and scaled to the printable width
func (r *pdfRenderer) columnWidths(rows [][]string, avail, fontSize float64) []float64 {
	cols := len(rows[0])
	widths := make([]float64, cols)

	r.pdf.SetFont(r.font, "B", fontSize)
	for i, row := range rows {
		if i == 1 {
			r.pdf.SetFont(r.font, "", fontSize)
		}
		for j, cell := range row {
			if j >= cols {
				break
			}
			if w := r.pdf.GetStringWidth(cell) + 4; w > widths[j] {
				widths[j] = w
			}
		}
	}

	const minWidth = 14.0
	total := 0.0
	for j := range widths {
		if widths[j] < minWidth {
			widths[j] = minWidth
		}
		if widths[j] > avail/2 {
			widths[j] = avail / 2
		}
		total += widths[j]
	}

	scale := 1.0
	if total > avail {
		scale = avail / total
	} else if total < avail*0.85 {
		scale = avail * 0.85 / total
		if scale > 1.6 {
			scale = 1.6
		}
	}
	for j := range widths {
		widths[j] *= scale
	}
	return widths
}

// wrapToWidth greedily wraps text into lines no wider than width
func (r *pdfRenderer) wrapToWidth(cell string, width float64) []string {
	words := strings.Fields(cell)
	if len(words) == 0 {
		return []string{""}
	}

	space := r.pdf.GetStringWidth(" ")
	lines := make([]string, 0, 1)
	current := words[0]
	currentWidth := r.pdf.GetStringWidth(words[0])
	for _, word := range words[1:] {
		w := r.pdf.GetStringWidth(word)
		if currentWidth+space+w <= width {
			current += " " + word
			currentWidth += space + w
			continue
		}
		lines = append(lines, current)
		current = word
		currentWidth = w
	}
	return append(lines, current)
}

func (r *pdfRenderer) ellipsize(line string, width float64) string {
	runes := []rune(line)
	for r.pdf.GetStringWidth(string(runes)+"...") > width && len(runes) > 3 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
