package metadata

import (
	"testing"
)

func TestExtractKeywords_DropsStopWordsAndShortTokens(t *testing.T) {
	kws := ExtractKeywords("The quick brown fox and the lazy dog jump over a log")
	for _, kw := range kws {
		if stopWords[kw] {
			t.Fatalf("keyword %q should have been dropped as a stop word", kw)
		}
		if len(kw) < 3 {
			t.Fatalf("keyword %q shorter than the minimum run length", kw)
		}
	}
}

func TestExtractKeywords_TopEightByFrequency(t *testing.T) {
	text := "alpha alpha alpha beta beta gamma delta epsilon zeta eta theta iota kappa"
	kws := ExtractKeywords(text)
	if len(kws) > 8 {
		t.Fatalf("expected at most 8 keywords, got %d: %v", len(kws), kws)
	}
	if len(kws) == 0 || kws[0] != "alpha" {
		t.Fatalf("expected most frequent word first, got %v", kws)
	}
}

func TestExtractKeywords_EmptyWhenNoQualifyingWords(t *testing.T) {
	kws := ExtractKeywords("a an is to of")
	if len(kws) != 0 {
		t.Fatalf("expected no keywords, got %v", kws)
	}
}

func TestGenerate_ReservesV2Slots(t *testing.T) {
	m := Generate("some prose text about testing", "")
	if m.Summary != "" {
		t.Fatalf("V1 summary slot should be empty, got %q", m.Summary)
	}
	if m.HypotheticalQuestions == nil || len(m.HypotheticalQuestions) != 0 {
		t.Fatalf("V1 hypothetical_questions slot should be an empty (non-nil) list")
	}
	if m.Table != nil {
		t.Fatalf("non-table chunk should not carry table metadata")
	}
}

func TestGenerate_CarriesTableFormat(t *testing.T) {
	m := Generate("| a | b |\n| --- | --- |\n| 1 | 2 |", "markdown")
	if m.Table == nil || m.Table.Format != "markdown" {
		t.Fatalf("expected table.format=markdown, got %+v", m.Table)
	}
}
