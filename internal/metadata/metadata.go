// Package metadata derives per-chunk keywords and carries table metadata,
// reserving stable field names for V2 summary/question generation.
package metadata

import (
	"regexp"
	"sort"
	"strings"
)

const maxKeywords = 8

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "shall": true, "can": true, "need": true, "must": true,
	"it": true, "its": true, "this": true, "that": true, "these": true,
	"those": true, "i": true, "you": true, "he": true, "she": true, "we": true,
	"they": true, "me": true, "him": true, "her": true, "us": true, "them": true,
	"my": true, "your": true, "his": true, "our": true, "their": true,
	"what": true, "which": true, "who": true, "whom": true, "when": true,
	"where": true, "why": true, "how": true, "all": true, "each": true,
	"every": true, "both": true, "few": true, "more": true, "most": true,
	"other": true, "some": true, "such": true, "no": true, "not": true,
	"only": true, "own": true, "same": true, "so": true, "than": true,
	"too": true, "very": true, "just": true, "because": true, "as": true,
	"until": true, "while": true, "about": true, "between": true,
	"through": true, "during": true, "before": true, "after": true,
	"above": true, "below": true, "up": true, "down": true, "out": true,
	"off": true, "over": true, "under": true, "again": true, "further": true,
	"then": true, "once": true, "here": true, "there": true, "also": true,
	"if": true, "into": true,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z]{3,}`)

// Metadata is the per-chunk metadata payload, stored as JSONB alongside the
// chunk row.
type Metadata struct {
	Summary               string     `json:"summary"`
	Keywords              []string   `json:"keywords"`
	HypotheticalQuestions []string   `json:"hypothetical_questions"`
	Table                 *TableMeta `json:"table,omitempty"`
}

type TableMeta struct {
	Format string `json:"format"`
}

// ExtractKeywords returns the top maxKeywords most frequent non-stop-word
// lowercase alphabetic runs of length >= 3 in text.
func ExtractKeywords(text string) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	counts := map[string]int{}
	order := []string{}
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	if len(order) == 0 {
		return []string{}
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// Generate builds the metadata payload for one chunk. tableFormat is
// non-empty only for table chunks.
func Generate(text, tableFormat string) Metadata {
	m := Metadata{
		Summary:               "",
		Keywords:              ExtractKeywords(text),
		HypotheticalQuestions: []string{},
	}
	if tableFormat != "" {
		m.Table = &TableMeta{Format: tableFormat}
	}
	return m
}
