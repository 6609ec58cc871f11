package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scholarhub/backend/internal/domain"
)

func TestParseQueryPhrasesAndTokens(t *testing.T) {
	q := ParseQuery(`"machine learning" climate`)
	assert.Equal(t, []string{"machine learning"}, q.Phrases)
	assert.Equal(t, []string{"climate"}, q.Tokens)
	assert.Equal(t, `"machine learning" climate`, q.Raw)
}

func TestParseQueryEmpty(t *testing.T) {
	q := ParseQuery("")
	assert.Empty(t, q.Phrases)
	assert.Empty(t, q.Tokens)
	assert.Equal(t, "", q.Raw)
	assert.True(t, q.IsEmpty())
}

func TestParseQueryLowercasesAndTrims(t *testing.T) {
	q := ParseQuery(`  Climate CHANGE  `)
	assert.Equal(t, []string{"climate", "change"}, q.Tokens)
	assert.Equal(t, "climate change", q.Raw)
}

func TestMatchesConjunctive(t *testing.T) {
	rec := &domain.Record{
		Title:       "Coastal erosion",
		Description: "Long-term climate change indicators",
		Keywords:    []string{"sediment"},
		Authors:     []string{"Ndlovu, T"},
		Identifier:  "10.1/x",
	}

	assert.True(t, Matches(rec, ParseQuery("climate erosion")))
	assert.True(t, Matches(rec, ParseQuery(`"climate change" sediment`)))
	assert.True(t, Matches(rec, ParseQuery("ndlovu")))
	assert.True(t, Matches(rec, ParseQuery("")))

	// One term missing from the haystack rejects the whole record.
	assert.False(t, Matches(rec, ParseQuery("climate volcano")))
	assert.False(t, Matches(rec, ParseQuery(`"change climate"`)))
}

func TestScoreExactTitleBeatsSubstring(t *testing.T) {
	q := ParseQuery("coastal erosion")
	exact := &domain.Record{Title: "Coastal erosion"}
	substring := &domain.Record{Title: "Coastal erosion in the Western Cape"}

	assert.Greater(t, Score(exact, q), Score(substring, q))
}

func TestScoreIdentifierContribution(t *testing.T) {
	q := ParseQuery("10.1/x")
	withID := &domain.Record{Title: "Some work", Identifier: "10.1/x"}
	withoutID := &domain.Record{Title: "Some work"}

	assert.Greater(t, Score(withID, q), Score(withoutID, q))
}

func TestScorePhraseAndTokenWeights(t *testing.T) {
	q := ParseQuery(`"climate change"`)
	inTitle := &domain.Record{Title: "Climate change impacts"}
	inDescription := &domain.Record{Title: "Impacts", Description: "climate change studies"}

	// Phrase in the title adds the title weight on top of the haystack
	// weight, so the title match must rank higher.
	assert.Greater(t, Score(inTitle, q), Score(inDescription, q))
	assert.Positive(t, Score(inDescription, q))
}

func TestScoreEmptyQuery(t *testing.T) {
	assert.Zero(t, Score(&domain.Record{Title: "anything"}, ParseQuery("")))
}
