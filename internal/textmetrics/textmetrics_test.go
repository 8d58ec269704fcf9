package textmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected Record
	}{
		{
			name: "simple words",
			text: "a bb ccc",
			expected: Record{
				CharacterCount:    6,
				WordCount:         3,
				AverageWordLength: 2.0,
				LineCount:         1,
			},
		},
		{
			name: "multiline text",
			text: "hello world\nsecond line",
			expected: Record{
				CharacterCount:    21,
				WordCount:         4,
				AverageWordLength: 5.0,
				LineCount:         2,
			},
		},
		{
			name: "tabs and newlines kept in character count",
			text: "a\tb",
			expected: Record{
				CharacterCount:    3,
				WordCount:         2,
				AverageWordLength: 1.0,
				LineCount:         1,
			},
		},
		{
			name: "spaces only",
			text: "   ",
			expected: Record{
				CharacterCount:    0,
				WordCount:         0,
				AverageWordLength: 0,
				LineCount:         1,
			},
		},
		{
			name: "single word",
			text: "document",
			expected: Record{
				CharacterCount:    8,
				WordCount:         1,
				AverageWordLength: 8.0,
				LineCount:         1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compute(tt.text))
		})
	}
}

func TestCompute_EmptyText(t *testing.T) {
	rec := Compute("")

	assert.NotEmpty(t, rec.Note)
	assert.Zero(t, rec.CharacterCount)
	assert.Zero(t, rec.WordCount)
	assert.Zero(t, rec.AverageWordLength)
	assert.Zero(t, rec.LineCount)
}

func TestAverage(t *testing.T) {
	records := []Record{
		{CharacterCount: 10, AverageWordLength: 4.0, LineCount: 2},
		{CharacterCount: 20, AverageWordLength: 6.0, LineCount: 3},
	}

	agg := Average(records)

	assert.InDelta(t, 15.0, agg.AverageCharacterCount, 1e-9)
	assert.InDelta(t, 5.0, agg.AverageWordLength, 1e-9)
	assert.Equal(t, 5, agg.TotalLines)
	assert.Empty(t, agg.Note)
}

func TestAverage_Empty(t *testing.T) {
	agg := Average(nil)

	assert.NotEmpty(t, agg.Note)
	assert.Zero(t, agg.AverageCharacterCount)
}

func BenchmarkCompute(b *testing.B) {
	text := "The quick brown fox jumps over the lazy dog.\nPack my box with five dozen liquor jugs."

	b.ResetTimer()
	for range b.N {
		Compute(text)
	}
}
