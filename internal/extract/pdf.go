package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"docingest/internal/blocks"
)

// Heuristic font-size thresholds in points.
const (
	headingFontSizeThreshold = 14.0
	h1FontSizeThreshold      = 18.0

	// maxHeadingTextLength bounds how long a bold or >= 14pt line can be
	// and still classify as a level-2/3 heading rather than emphasized body
	// text. Lines at or above h1FontSizeThreshold are level-1 headings
	// whatever their length.
	maxHeadingTextLength = 200
)

// PDFExtractor runs a two-pass page scan: detect table regions by runs of
// rows with the same number of fragments, then classify remaining text
// fragments by font size into heading levels or paragraphs.
type PDFExtractor struct{}

type pdfFragment struct {
	text     string
	fontSize float64
	bold     bool
	x, y     float64
}

func (PDFExtractor) Extract(path string) ([]blocks.Block, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, ErrInputFormat
	}

	f, r, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
	}
	defer f.Close()

	out := make([]blocks.Block, 0, 64)
	numPages := r.NumPage()
	for pageIdx := 1; pageIdx <= numPages; pageIdx++ {
		page := r.Page(pageIdx)
		if page.V.IsNull() {
			continue
		}
		fragments := extractFragments(page)
		tableRegions, tableRows := detectTables(fragments)

		textFrags := make([]pdfFragment, 0, len(fragments))
		for _, fr := range fragments {
			if insideAnyRegion(fr, tableRegions) {
				continue
			}
			textFrags = append(textFrags, fr)
		}
		out = append(out, classifyTextFragments(textFrags)...)

		for _, rows := range tableRows {
			md, numRows, numCols := tableToMarkdown(rows)
			if md == "" {
				continue
			}
			out = append(out, blocks.Block{
				Kind: blocks.Table,
				Text: md,
				Meta: map[string]any{"format": "markdown", "rows": numRows, "cols": numCols, "page": pageIdx},
			})
		}
	}

	if len(out) == 0 {
		return nil, ErrExtractEmpty
	}
	return out, nil
}

func extractFragments(page pdflib.Page) []pdfFragment {
	texts := page.Content().Text
	frags := make([]pdfFragment, 0, len(texts))
	for _, t := range texts {
		s := strings.TrimSpace(t.S)
		if s == "" {
			continue
		}
		frags = append(frags, pdfFragment{
			text:     t.S,
			fontSize: t.FontSize,
			bold:     strings.Contains(strings.ToLower(t.Font), "bold"),
			x:        t.X,
			y:        t.Y,
		})
	}
	return frags
}

type bbox struct{ x0, y0, x1, y1 float64 }

// detectTables groups fragments into rows and treats a run of at least two
// consecutive rows that each hold the same number (at least two) of
// fragments as a table region, a stand-in for line-intersection detection
// when no line geometry is available. Cells are ordered by X within a row;
// X positions are not compared across rows.
func detectTables(frags []pdfFragment) ([]bbox, [][][]string) {
	if len(frags) == 0 {
		return nil, nil
	}
	rows := groupByRow(frags)
	var regions []bbox
	var tables [][][]string

	i := 0
	for i < len(rows) {
		var run [][]pdfFragment
		j := i
		var cols int
		for j < len(rows) {
			cells := sortByX(rows[j])
			if len(cells) < 2 {
				break
			}
			if cols == 0 {
				cols = len(cells)
			} else if len(cells) != cols {
				break
			}
			run = append(run, cells)
			j++
		}
		if len(run) >= 2 {
			grid := make([][]string, len(run))
			minX, minY, maxX, maxY := run[0][0].x, run[0][0].y, run[0][0].x, run[0][0].y
			for ri, cells := range run {
				row := make([]string, len(cells))
				for ci, c := range cells {
					row[ci] = strings.TrimSpace(c.text)
					if c.x < minX {
						minX = c.x
					}
					if c.x > maxX {
						maxX = c.x
					}
					if c.y < minY {
						minY = c.y
					}
					if c.y > maxY {
						maxY = c.y
					}
				}
				grid[ri] = row
			}
			tables = append(tables, grid)
			regions = append(regions, bbox{minX - 1, minY - 1, maxX + 1, maxY + 1})
			i = j
			continue
		}
		i++
	}
	return regions, tables
}

func groupByRow(frags []pdfFragment) [][]pdfFragment {
	byY := map[float64][]pdfFragment{}
	for _, fr := range frags {
		key := roundTo(fr.y, 2.0)
		byY[key] = append(byY[key], fr)
	}
	ys := make([]float64, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))
	rows := make([][]pdfFragment, 0, len(ys))
	for _, y := range ys {
		rows = append(rows, byY[y])
	}
	return rows
}

func sortByX(frags []pdfFragment) []pdfFragment {
	out := append([]pdfFragment(nil), frags...)
	sort.Slice(out, func(i, j int) bool { return out[i].x < out[j].x })
	return out
}

func roundTo(v, step float64) float64 {
	return float64(int(v/step)) * step
}

func insideAnyRegion(fr pdfFragment, regions []bbox) bool {
	for _, r := range regions {
		if fr.y >= r.y0 && fr.y <= r.y1 && fr.x >= r.x0 && fr.x <= r.x1 {
			return true
		}
	}
	return false
}

func classifyTextFragments(frags []pdfFragment) []blocks.Block {
	rows := groupByRow(frags)
	out := make([]blocks.Block, 0, len(rows))
	for _, row := range rows {
		cells := sortByX(row)
		var b strings.Builder
		maxFont := 0.0
		bold := false
		for i, c := range cells {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(c.text)
			if c.fontSize > maxFont {
				maxFont = c.fontSize
			}
			if c.bold {
				bold = true
			}
		}
		text := collapseWhitespace(b.String())
		if text == "" {
			continue
		}
		switch {
		case maxFont >= h1FontSizeThreshold:
			out = append(out, blocks.Block{Kind: blocks.Heading, Text: text, Meta: map[string]any{"level": 1, "font_size": maxFont}})
		case (maxFont >= headingFontSizeThreshold || bold) && len(text) < maxHeadingTextLength:
			level := 3
			if maxFont >= 16.0 {
				level = 2
			}
			out = append(out, blocks.Block{Kind: blocks.Heading, Text: text, Meta: map[string]any{"level": level, "font_size": maxFont}})
		default:
			out = append(out, blocks.Block{Kind: blocks.Paragraph, Text: text})
		}
	}
	return out
}
