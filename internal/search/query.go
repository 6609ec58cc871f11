package search

import (
	"regexp"
	"strings"

	"github.com/scholarhub/backend/internal/domain"
)

// reQueryTerm captures either a quoted phrase or a bare token per match.
var reQueryTerm = regexp.MustCompile(`"([^"]*)"|(\S+)`)

// Query is a parsed free-text search query. Raw keeps the whole lowered
// query string for the exact/substring scoring rules, which compare
// against the unsplit query rather than the parsed terms.
type Query struct {
	Raw     string
	Phrases []string
	Tokens  []string
}

// IsEmpty reports whether the query carries no searchable terms.
func (q Query) IsEmpty() bool {
	return len(q.Phrases) == 0 && len(q.Tokens) == 0
}

// ParseQuery lowercases and trims the query, then splits it into quoted
// phrases and bare whitespace-delimited tokens in a single regex pass.
func ParseQuery(raw string) Query {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	q := Query{Raw: lowered}
	for _, m := range reQueryTerm.FindAllStringSubmatch(lowered, -1) {
		if m[1] != "" {
			q.Phrases = append(q.Phrases, m[1])
		} else if m[2] != "" {
			q.Tokens = append(q.Tokens, m[2])
		}
	}
	return q
}

// Haystack flattens a record's searchable text into one lowered string.
func Haystack(r *domain.Record) string {
	parts := []string{
		r.Title,
		r.Description,
		strings.Join(r.Keywords, " "),
		strings.Join(r.Authors, " "),
		r.Identifier,
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Matches reports whether a record satisfies every phrase and every token
// of the query. AND semantics: one missing term rejects the record. An
// empty query matches everything.
func Matches(r *domain.Record, q Query) bool {
	if q.IsEmpty() {
		return true
	}
	hay := Haystack(r)
	for _, p := range q.Phrases {
		if !strings.Contains(hay, p) {
			return false
		}
	}
	for _, t := range q.Tokens {
		if !strings.Contains(hay, t) {
			return false
		}
	}
	return true
}

// Score computes the additive relevance signal for a record already known
// to match the query. Exact and substring rules compare against the raw
// query string; phrase and token rules use the parsed terms.
func Score(r *domain.Record, q Query) int {
	if q.IsEmpty() {
		return 0
	}
	title := strings.ToLower(r.Title)
	ident := strings.ToLower(r.Identifier)
	hay := Haystack(r)

	score := 0
	if title == q.Raw {
		score += 60
	} else if strings.Contains(title, q.Raw) {
		score += 35
	}
	if ident != "" {
		if ident == q.Raw {
			score += 40
		} else if strings.Contains(ident, q.Raw) {
			score += 20
		}
	}
	for _, p := range q.Phrases {
		if strings.Contains(title, p) {
			score += 12
		}
		if ident != "" && strings.Contains(ident, p) {
			score += 8
		}
		if strings.Contains(hay, p) {
			score += 6
		}
	}
	for _, t := range q.Tokens {
		if strings.Contains(title, t) {
			score += 5
		}
		if ident != "" && strings.Contains(ident, t) {
			score += 4
		}
		if strings.Contains(hay, t) {
			score += 3
		}
	}
	return score
}
