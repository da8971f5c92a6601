package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"

	"docingest/internal/blocks"
)

// HTMLExtractor walks the DOM from the most specific available root
// (main, then article, then body, then the document itself).
type HTMLExtractor struct{}

var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"header": true, "aside": true, "noscript": true, "meta": true, "link": true,
}

func (HTMLExtractor) Extract(path string) ([]blocks.Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	defer f.Close()
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".html" && ext != ".htm" {
		return nil, ErrInputFormat
	}

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInputFormat, err)
	}

	root := findRoot(doc)
	seen := map[string]bool{}
	out := make([]blocks.Block, 0, 64)
	walkHTML(root, seen, &out)

	if len(out) == 0 {
		return nil, ErrExtractEmpty
	}
	return out, nil
}

func findRoot(doc *html.Node) *html.Node {
	for _, tag := range []string{"main", "article", "body"} {
		if n := findFirst(doc, tag); n != nil {
			return n
		}
	}
	return doc
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func walkHTML(n *html.Node, seen map[string]bool, out *[]blocks.Block) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			text := collapseWhitespace(textContent(n))
			emit(out, seen, blocks.Block{Kind: blocks.Heading, Text: text, Meta: map[string]any{"level": level}})
			return
		case "table":
			grid := tableGrid(n)
			md, rows, cols := tableToMarkdown(grid)
			if md != "" {
				*out = append(*out, blocks.Block{Kind: blocks.Table, Text: md, Meta: map[string]any{"format": "markdown", "rows": rows, "cols": cols}})
			}
			return
		case "ul", "ol":
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "li" {
					text := collapseWhitespace(textContent(c))
					emit(out, seen, blocks.Block{Kind: blocks.List, Text: text})
				}
			}
			return
		case "pre", "code":
			text := strings.TrimSpace(textContent(n))
			classNode := n
			if code := findChild(n, "code"); code != nil {
				classNode = code
			}
			lang := languageFromClass(attr(classNode, "class"))
			if text != "" {
				meta := map[string]any{}
				if lang != "" {
					meta["language"] = lang
				}
				emit(out, seen, blocks.Block{Kind: blocks.Code, Text: text, Meta: meta})
			}
			return
		case "p":
			text := collapseWhitespace(textContent(n))
			emit(out, seen, blocks.Block{Kind: blocks.Paragraph, Text: text})
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, seen, out)
	}
}

func emit(out *[]blocks.Block, seen map[string]bool, b blocks.Block) {
	if b.Text == "" || seen[b.Text] {
		return
	}
	seen[b.Text] = true
	*out = append(*out, b)
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// findChild returns the first direct element child of n matching tag, or
// nil. Used to reach the nested <code class="language-*"> that carries the
// language class in the common <pre><code> pattern.
func findChild(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

func languageFromClass(class string) string {
	for _, c := range strings.Fields(class) {
		if strings.HasPrefix(c, "language-") {
			return strings.TrimPrefix(c, "language-")
		}
		if strings.HasPrefix(c, "lang-") {
			return strings.TrimPrefix(c, "lang-")
		}
	}
	return ""
}

func tableGrid(tbl *html.Node) [][]string {
	var rows [][]string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch c.Data {
			case "thead", "tbody", "tfoot":
				visit(c)
			case "tr":
				var row []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						row = append(row, collapseWhitespace(textContent(cell)))
					}
				}
				if row != nil {
					rows = append(rows, row)
				}
			}
		}
	}
	visit(tbl)
	return rows
}
