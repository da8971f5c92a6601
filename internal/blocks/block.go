// Package blocks defines the structural unit passed between extractors and
// the chunker.
package blocks

// Kind identifies the structural role of a Block.
type Kind string

const (
	Heading   Kind = "heading"
	Paragraph Kind = "paragraph"
	List      Kind = "list"
	Table     Kind = "table"
	Code      Kind = "code"
)

// Block is an immutable, ordered record produced by extraction.
type Block struct {
	Kind Kind
	Text string
	Meta map[string]any
}

// Level returns the heading level of a heading block, or 0 if the block is
// not a heading or carries no level.
func (b Block) Level() int {
	if b.Kind != Heading {
		return 0
	}
	lvl, _ := b.Meta["level"].(int)
	return lvl
}

// TableInfo returns rows/cols/format/page for a table block, ok=false
// otherwise.
func (b Block) TableInfo() (rows, cols, page int, format string, ok bool) {
	if b.Kind != Table {
		return 0, 0, 0, "", false
	}
	rows, _ = b.Meta["rows"].(int)
	cols, _ = b.Meta["cols"].(int)
	page, _ = b.Meta["page"].(int)
	format, _ = b.Meta["format"].(string)
	return rows, cols, page, format, true
}
