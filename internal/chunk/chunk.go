// Package chunk assembles an ordered block stream into token-bounded
// chunks, honoring structural rules: heading-path tracking, prose
// accumulation with soft/hard token budgets, sentence-level splitting for
// oversized blocks, and table row-packing with header replication.
package chunk

import (
	"regexp"
	"strings"

	"docingest/internal/blocks"
	"docingest/internal/tokenizer"
)

type Kind string

const (
	Text  Kind = "text"
	Table Kind = "table"
)

// Chunk is a token-bounded unit destined for embedding and storage.
type Chunk struct {
	Kind        Kind
	Text        string
	TokenCount  int
	HeadingPath []string
	Ordinal     int
	TableFormat string
}

// Config carries the token-budget parameters of the chunking policy.
type Config struct {
	Target  int
	Min     int
	Max     int
	HardCap int
}

// DefaultConfig matches the documented defaults.
func DefaultConfig() Config {
	return Config{Target: 450, Min: 350, Max: 500, HardCap: 800}
}

// Result carries the emitted chunks plus a count of chunks that exceeded
// HardCap because they hold a single unsplittable atomic unit.
type Result struct {
	Chunks          []Chunk
	HardCapWarnings int
}

type chunker struct {
	cfg         Config
	counter     tokenizer.Counter
	headingPath []string
	buf         []string
	out         []Chunk
	warnings    int
}

// Run is the public entry point: assemble blocks into ordered chunks
// honoring the separate prose and table policies.
func Run(bs []blocks.Block, counter tokenizer.Counter, cfg Config) Result {
	c := &chunker{cfg: cfg, counter: counter}
	for _, b := range bs {
		switch b.Kind {
		case blocks.Heading:
			c.onHeading(b)
		case blocks.Table:
			c.flushProse()
			c.chunkTable(b)
		default:
			c.onProse(b)
		}
	}
	c.flushProse()

	for i := range c.out {
		c.out[i].Ordinal = i
	}
	return Result{Chunks: c.out, HardCapWarnings: c.warnings}
}

func (c *chunker) onHeading(b blocks.Block) {
	if len(c.buf) > 0 {
		c.flushProse()
	}
	level := b.Level()
	if level < 1 {
		level = 1
	}
	if level-1 < len(c.headingPath) {
		c.headingPath = c.headingPath[:level-1]
	}
	c.headingPath = append(c.headingPath, b.Text)
	c.appendToBuf(b.Text)
}

func (c *chunker) onProse(b blocks.Block) {
	text := b.Text
	if text == "" {
		return
	}
	if c.tokensWith(text) > c.cfg.Max {
		c.flushProse()
		if c.counter.Count(text) > c.cfg.Max {
			c.splitOversized(text)
			return
		}
	}
	c.appendToBuf(text)
	if c.counter.Count(c.joinedBuf()) >= c.cfg.Target {
		c.flushProse()
	}
}

func (c *chunker) appendToBuf(text string) {
	c.buf = append(c.buf, text)
}

func (c *chunker) joinedBuf() string {
	return strings.Join(c.buf, "\n\n")
}

func (c *chunker) tokensWith(next string) int {
	if len(c.buf) == 0 {
		return c.counter.Count(next)
	}
	return c.counter.Count(c.joinedBuf() + "\n\n" + next)
}

func (c *chunker) flushProse() {
	if len(c.buf) == 0 {
		return
	}
	text := c.joinedBuf()
	c.buf = nil
	c.out = append(c.out, Chunk{
		Kind:        Text,
		Text:        text,
		TokenCount:  c.counter.Count(text),
		HeadingPath: append([]string(nil), c.headingPath...),
	})
}

var sentenceSplit = regexp.MustCompile(`(?s)([^.!?]*[.!?]+)\s*`)

func (c *chunker) splitOversized(text string) {
	sentences := splitSentences(text)
	var cur []string
	flush := func() {
		if len(cur) == 0 {
			return
		}
		joined := strings.Join(cur, " ")
		c.out = append(c.out, Chunk{
			Kind:        Text,
			Text:        joined,
			TokenCount:  c.counter.Count(joined),
			HeadingPath: append([]string(nil), c.headingPath...),
		})
		cur = nil
	}
	for _, s := range sentences {
		if c.counter.Count(s) > c.cfg.HardCap {
			flush()
			c.out = append(c.out, Chunk{
				Kind:        Text,
				Text:        s,
				TokenCount:  c.counter.Count(s),
				HeadingPath: append([]string(nil), c.headingPath...),
			})
			c.warnings++
			continue
		}
		candidate := append(append([]string(nil), cur...), s)
		if c.counter.Count(strings.Join(candidate, " ")) > c.cfg.Max {
			flush()
		}
		cur = append(cur, s)
	}
	flush()
}

func splitSentences(text string) []string {
	matches := sentenceSplit.FindAllString(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

func (c *chunker) chunkTable(b blocks.Block) {
	lines := strings.Split(b.Text, "\n")
	if len(lines) < 2 {
		return
	}
	header, sep := lines[0], lines[1]
	dataRows := lines[2:]
	headerTokens := c.counter.Count(header + "\n" + sep)

	full := b.Text
	if c.counter.Count(full) <= c.cfg.HardCap {
		c.out = append(c.out, Chunk{
			Kind:        Table,
			Text:        full,
			TokenCount:  c.counter.Count(full),
			HeadingPath: append([]string(nil), c.headingPath...),
			TableFormat: "markdown",
		})
		return
	}

	var cur []string
	curTokens := headerTokens
	flush := func() {
		if len(cur) == 0 {
			return
		}
		text := header + "\n" + sep + "\n" + strings.Join(cur, "\n")
		c.out = append(c.out, Chunk{
			Kind:        Table,
			Text:        text,
			TokenCount:  c.counter.Count(text),
			HeadingPath: append([]string(nil), c.headingPath...),
			TableFormat: "markdown",
		})
		cur = nil
		curTokens = headerTokens
	}
	for _, row := range dataRows {
		rowTokens := c.counter.Count(row)
		if headerTokens+rowTokens > c.cfg.HardCap {
			flush()
			text := header + "\n" + sep + "\n" + row
			c.out = append(c.out, Chunk{
				Kind:        Table,
				Text:        text,
				TokenCount:  c.counter.Count(text),
				HeadingPath: append([]string(nil), c.headingPath...),
				TableFormat: "markdown",
			})
			c.warnings++
			continue
		}
		if curTokens+rowTokens > c.cfg.HardCap {
			flush()
		}
		cur = append(cur, row)
		curTokens += rowTokens
	}
	flush()
}
