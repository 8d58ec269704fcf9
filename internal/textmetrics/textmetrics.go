// Package textmetrics derives simple character-level statistics from
// extracted document text.
package textmetrics

import "strings"

// Record holds text statistics for one page of extracted text.
type Record struct {
	CharacterCount    int     `json:"character_count"`
	WordCount         int     `json:"word_count"`
	AverageWordLength float64 `json:"average_word_length"`
	LineCount         int     `json:"line_count"`
	Note              string  `json:"note,omitempty"`
}

// Aggregate holds averaged statistics across all pages of a document.
type Aggregate struct {
	AverageCharacterCount float64 `json:"average_character_count"`
	AverageWordLength     float64 `json:"average_word_length"`
	TotalLines            int     `json:"total_lines"`
	Note                  string  `json:"note,omitempty"`
}

// Compute calculates statistics for a block of extracted text.
// Character count excludes ASCII spaces only; words are split on any
// whitespace; average word length is 0 when no words were found.
func Compute(text string) Record {
	if text == "" {
		return Record{Note: "No text found for character analysis"}
	}

	words := strings.Fields(text)

	var totalWordLen int
	for _, w := range words {
		totalWordLen += len(w)
	}

	avg := 0.0
	if len(words) > 0 {
		avg = float64(totalWordLen) / float64(len(words))
	}

	return Record{
		CharacterCount:    len(strings.ReplaceAll(text, " ", "")),
		WordCount:         len(words),
		AverageWordLength: avg,
		LineCount:         len(strings.Split(text, "\n")),
	}
}

// Average combines per-page records into a document-level aggregate.
// An empty input yields a note-only aggregate.
func Average(records []Record) Aggregate {
	if len(records) == 0 {
		return Aggregate{Note: "No character metrics available"}
	}

	var chars, wordLen float64
	var lines int
	for _, r := range records {
		chars += float64(r.CharacterCount)
		wordLen += r.AverageWordLength
		lines += r.LineCount
	}

	n := float64(len(records))
	return Aggregate{
		AverageCharacterCount: chars / n,
		AverageWordLength:     wordLen / n,
		TotalLines:            lines,
	}
}
