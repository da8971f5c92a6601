package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"docingest/internal/blocks"
)

// DocxExtractor walks a word-processor document body in source order,
// reading the OOXML package directly with archive/zip and encoding/xml so
// w:p/w:tbl interleaving is preserved exactly.
type DocxExtractor struct{}

type wStyle struct {
	StyleID string `xml:"styleId,attr"`
	Name    struct {
		Val string `xml:"val,attr"`
	} `xml:"name"`
}

type wStyles struct {
	Styles []wStyle `xml:"style"`
}

type wRun struct {
	Text []string `xml:"t"`
}

type wParagraph struct {
	PPr struct {
		PStyle struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
		NumPr *struct{} `xml:"numPr"`
	} `xml:"pPr"`
	Runs []wRun `xml:"r"`
}

func (p wParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return collapseWhitespace(b.String())
}

type wTableCell struct {
	Paragraphs []wParagraph `xml:"p"`
}

func (c wTableCell) text() string {
	parts := make([]string, 0, len(c.Paragraphs))
	for _, p := range c.Paragraphs {
		if t := p.text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

type wTableRow struct {
	Cells []wTableCell `xml:"tc"`
}

type wTable struct {
	Rows []wTableRow `xml:"tr"`
}

func (t wTable) grid() [][]string {
	rows := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		row := make([]string, 0, len(r.Cells))
		for _, c := range r.Cells {
			row = append(row, c.text())
		}
		rows = append(rows, row)
	}
	return rows
}

var listStyleMarkers = []string{"list", "bullet", "number"}

func (DocxExtractor) styleNames(z *zip.ReadCloser) map[string]string {
	names := map[string]string{}
	f := findInZip(z, "word/styles.xml")
	if f == nil {
		return names
	}
	rc, err := f.Open()
	if err != nil {
		return names
	}
	defer rc.Close()
	var parsed wStyles
	if err := xml.NewDecoder(rc).Decode(&parsed); err != nil {
		return names
	}
	for _, s := range parsed.Styles {
		names[s.StyleID] = s.Name.Val
	}
	return names
}

func findInZip(z *zip.ReadCloser, name string) *zip.File {
	for _, f := range z.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (e DocxExtractor) Extract(path string) ([]blocks.Block, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".docx") {
		return nil, ErrInputFormat
	}
	z, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
	}
	defer z.Close()

	styleNames := e.styleNames(z)

	doc := findInZip(z, "word/document.xml")
	if doc == nil {
		return nil, fmt.Errorf("%w: missing word/document.xml", ErrInputFormat)
	}
	rc, err := doc.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
	}
	defer rc.Close()

	out := make([]blocks.Block, 0, 64)
	dec := xml.NewDecoder(rc)
	depth := 0
	inBody := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "body" {
				inBody = true
				continue
			}
			if !inBody || depth != 3 {
				continue
			}
			switch t.Name.Local {
			case "p":
				var p wParagraph
				if err := dec.DecodeElement(&p, &t); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
				}
				depth--
				txt := p.text()
				if txt == "" {
					continue
				}
				styleName := strings.ToLower(styleNames[p.PPr.PStyle.Val])
				if level, ok := headingLevel(styleName); ok {
					out = append(out, blocks.Block{Kind: blocks.Heading, Text: txt, Meta: map[string]any{"level": level}})
					continue
				}
				if p.PPr.NumPr != nil || isListStyle(styleName) {
					out = append(out, blocks.Block{Kind: blocks.List, Text: txt})
					continue
				}
				out = append(out, blocks.Block{Kind: blocks.Paragraph, Text: txt})
			case "tbl":
				var tbl wTable
				if err := dec.DecodeElement(&tbl, &t); err != nil {
					return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
				}
				depth--
				grid := tbl.grid()
				md, rows, cols := tableToMarkdown(grid)
				if md == "" {
					continue
				}
				out = append(out, blocks.Block{Kind: blocks.Table, Text: md, Meta: map[string]any{"format": "markdown", "rows": rows, "cols": cols}})
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "body" {
				inBody = false
			}
		}
	}

	if len(out) == 0 {
		return nil, ErrExtractEmpty
	}
	return out, nil
}

func headingLevel(styleName string) (int, bool) {
	if !strings.HasPrefix(styleName, "heading") {
		return 0, false
	}
	fields := strings.Fields(styleName)
	if len(fields) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 || n > 6 {
		return 0, false
	}
	return n, true
}

func isListStyle(styleName string) bool {
	for _, marker := range listStyleMarkers {
		if strings.Contains(styleName, marker) {
			return true
		}
	}
	return false
}
