package search

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scholarhub/backend/internal/domain"
)

// Filters narrows a search beyond the free-text query.
type Filters struct {
	Year   int
	Source string
	Type   string
	// Author is a case-insensitive substring match over author names.
	Author string
}

// FacetEntry is one value/count pair of a facet dimension.
type FacetEntry struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets are tallied over the full filtered result set before pagination.
type Facets struct {
	Years   []FacetEntry `json:"years"`
	Authors []FacetEntry `json:"authors"`
	Sources []FacetEntry `json:"sources"`
	Types   []FacetEntry `json:"types"`
}

// Result is one page of a corpus search.
type Result struct {
	Results  []*domain.Record `json:"results"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	HasMore  bool             `json:"hasMore"`
	Facets   *Facets          `json:"facets"`
}

// Engine answers corpus searches by loading the persisted records of the
// requested category into memory and scoring them with the query
// heuristic. The store does no text search of its own.
type Engine struct {
	records domain.RecordRepository
	log     zerolog.Logger
}

func NewEngine(records domain.RecordRepository, log zerolog.Logger) *Engine {
	return &Engine{
		records: records,
		log:     log.With().Str("component", "search").Logger(),
	}
}

// maximum distinct authors reported in the author facet
const authorFacetCap = 100

// Search runs a free-text query over one category ("" means the whole
// corpus), applies structured filters, scores and sorts when a query was
// supplied, and returns one offset page plus facets over the full
// filtered set.
func (e *Engine) Search(ctx context.Context, category domain.Category, rawQuery string, page, pageSize int, f Filters) (*Result, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	records, err := e.records.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	q := ParseQuery(rawQuery)
	var matched []*domain.Record
	for _, r := range records {
		if !passesFilters(r, f) {
			continue
		}
		if !Matches(r, q) {
			continue
		}
		matched = append(matched, r)
	}

	// Without a query the persisted newest-first order stands.
	if !q.IsEmpty() {
		scores := make(map[*domain.Record]int, len(matched))
		for _, r := range matched {
			scores[r] = Score(r, q)
		}
		sort.SliceStable(matched, func(i, j int) bool {
			return scores[matched[i]] > scores[matched[j]]
		})
	}

	total := len(matched)
	res := &Result{
		Results:  pageSlice(matched, page, pageSize),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  page*pageSize < total,
		Facets:   buildFacets(matched),
	}
	e.log.Debug().Str("category", string(category)).Str("query", q.Raw).
		Int("total", total).Int("page", page).Msg("search served")
	return res, nil
}

func passesFilters(r *domain.Record, f Filters) bool {
	if f.Year != 0 && r.Year != f.Year {
		return false
	}
	if f.Source != "" && !strings.EqualFold(r.Source, f.Source) {
		return false
	}
	if f.Type != "" && !strings.EqualFold(r.Type, f.Type) {
		return false
	}
	if f.Author != "" {
		needle := strings.ToLower(f.Author)
		found := false
		for _, a := range r.Authors {
			if strings.Contains(strings.ToLower(a), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func pageSlice(records []*domain.Record, page, pageSize int) []*domain.Record {
	start := (page - 1) * pageSize
	if start >= len(records) {
		return []*domain.Record{}
	}
	end := start + pageSize
	if end > len(records) {
		end = len(records)
	}
	return records[start:end]
}

// facetTally counts values preserving first-encounter order for stable
// tie-breaks.
type facetTally struct {
	counts map[string]int
	order  []string
}

func newFacetTally() *facetTally {
	return &facetTally{counts: make(map[string]int)}
}

func (t *facetTally) add(value string) {
	if value == "" {
		return
	}
	if _, ok := t.counts[value]; !ok {
		t.order = append(t.order, value)
	}
	t.counts[value]++
}

func (t *facetTally) entries(limit int) []FacetEntry {
	out := make([]FacetEntry, 0, len(t.order))
	for _, v := range t.order {
		out = append(out, FacetEntry{Value: v, Count: t.counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func buildFacets(records []*domain.Record) *Facets {
	years := newFacetTally()
	authors := newFacetTally()
	sources := newFacetTally()
	types := newFacetTally()
	for _, r := range records {
		if r.Year != 0 {
			years.add(strconv.Itoa(r.Year))
		}
		for _, a := range r.Authors {
			authors.add(a)
		}
		sources.add(r.Source)
		types.add(r.Type)
	}
	return &Facets{
		Years:   years.entries(0),
		Authors: authors.entries(authorFacetCap),
		Sources: sources.entries(0),
		Types:   types.entries(0),
	}
}
