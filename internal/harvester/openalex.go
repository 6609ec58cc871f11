package harvester

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/scholarhub/backend/internal/domain"
)

const openAlexSource = "OpenAlex"

type openAlexPage struct {
	Meta struct {
		Count   int `json:"count"`
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
	} `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID          string `json:"id"`
	DOI         string `json:"doi"`
	Title       string `json:"title"`
	DisplayName string `json:"display_name"`
	PubYear     int    `json:"publication_year"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
	Concepts []struct {
		DisplayName string `json:"display_name"`
	} `json:"concepts"`
	PrimaryLocation *struct {
		LandingPageURL string `json:"landing_page_url"`
		Source         *struct {
			DisplayName string `json:"display_name"`
		} `json:"source"`
	} `json:"primary_location"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// OpenAlexResult is one page of a live dataset search. Nothing here is
// persisted; the records exist only for the duration of the response.
type OpenAlexResult struct {
	Results  []*domain.Record `json:"results"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	HasMore  bool             `json:"hasMore"`
}

// SearchOpenAlexLive queries the OpenAlex works API for datasets matching
// the query and maps the page into canonical records. The API's own
// relevance matching is looser than ours, so a client-side relevance
// filter is applied on top: a work survives only when its title contains
// the whole query or one of its concepts contains a query token.
func (s *Service) SearchOpenAlexLive(ctx context.Context, query string, page, pageSize int) (*OpenAlexResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 50 {
		pageSize = 10
	}

	q := strings.TrimSpace(query)
	u := fmt.Sprintf("%s/works?filter=%s&page=%d&per-page=%d",
		s.cfg.OpenAlexBaseURL,
		url.QueryEscape("type:dataset,title.search:"+q),
		page, pageSize)

	var resp openAlexPage
	if err := s.client.FetchJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	lowered := strings.ToLower(q)
	tokens := strings.Fields(lowered)

	out := &OpenAlexResult{
		Results:  []*domain.Record{},
		Total:    resp.Meta.Count,
		Page:     page,
		PageSize: pageSize,
		HasMore:  page*pageSize < resp.Meta.Count,
	}
	for _, w := range resp.Results {
		if !openAlexRelevant(w, lowered, tokens) {
			continue
		}
		out.Results = append(out.Results, s.openAlexToRecord(w))
	}
	return out, nil
}

func openAlexRelevant(w openAlexWork, lowered string, tokens []string) bool {
	title := strings.ToLower(firstNonEmpty(w.Title, w.DisplayName))
	if lowered == "" || strings.Contains(title, lowered) {
		return true
	}
	for _, c := range w.Concepts {
		concept := strings.ToLower(c.DisplayName)
		for _, tok := range tokens {
			if strings.Contains(concept, tok) {
				return true
			}
		}
	}
	return false
}

func (s *Service) openAlexToRecord(w openAlexWork) *domain.Record {
	var authors []string
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, a.Author.DisplayName)
		}
	}

	var keywords []string
	for _, c := range w.Concepts {
		if c.DisplayName != "" {
			keywords = append(keywords, c.DisplayName)
		}
	}

	// OpenAlex IDs arrive as full URLs; keep just the W-number.
	shortID := w.ID
	if i := strings.LastIndex(shortID, "/"); i >= 0 {
		shortID = shortID[i+1:]
	}

	rec := &domain.Record{
		ID:          "openalex-" + shortID,
		Title:       firstNonEmpty(w.Title, w.DisplayName, "Untitled"),
		Authors:     authors,
		Description: reconstructAbstract(w.AbstractInvertedIndex),
		Keywords:    keywords,
		Year:        w.PubYear,
		Source:      openAlexSource,
		Type:        domain.TypeResearch,
		Category:    domain.CategoryResearch,
		CreatedAt:   s.now(),
	}
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil && w.PrimaryLocation.Source.DisplayName != "" {
		rec.Source = w.PrimaryLocation.Source.DisplayName
	}
	if w.DOI != "" {
		rec.Identifier = strings.TrimPrefix(w.DOI, "https://doi.org/")
		rec.IdentifierType = domain.IdentifierDOI
		rec.URL = w.DOI
	} else {
		rec.Identifier = shortID
		rec.IdentifierType = domain.IdentifierOpenAlex
		rec.URL = w.ID
	}
	if w.PrimaryLocation != nil && w.PrimaryLocation.LandingPageURL != "" {
		rec.URL = w.PrimaryLocation.LandingPageURL
	}
	reassignSource(rec)
	return rec
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted
// abstract index (word -> positions).
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	max := 0
	for _, positions := range index {
		for _, p := range positions {
			if p > max {
				max = p
			}
		}
	}
	words := make([]string, max+1)
	for word, positions := range index {
		for _, p := range positions {
			if p >= 0 && p <= max {
				words[p] = word
			}
		}
	}
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
	}
	return b.String()
}
