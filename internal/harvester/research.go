package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/scholarhub/backend/internal/domain"
)

// Display names for the research-data sources.
const (
	SourceDryad    = "Dryad Digital Repository"
	SourceZenodo   = "Zenodo"
	SourceMendeley = "Mendeley Data"
)

// ResearchSources lists the persisted JSON research-data source keys in
// harvest order.
var ResearchSources = []string{"dryad", "zenodo", "datacite"}

// FetchResearchSource pulls up to limit dataset records from one JSON
// research-data API, mapped into the canonical schema with category
// "research".
func (s *Service) FetchResearchSource(ctx context.Context, source string, limit int) ([]*domain.Record, error) {
	switch source {
	case "dryad":
		return s.fetchDryad(ctx, limit)
	case "zenodo":
		return s.fetchZenodo(ctx, limit)
	case "datacite":
		return s.fetchDataCite(ctx, limit)
	default:
		return nil, fmt.Errorf("harvester: unknown research source %q", source)
	}
}

// ---------- Dryad ----------

type dryadPage struct {
	Embedded struct {
		Datasets []dryadDataset `json:"stash:datasets"`
		Items    []dryadDataset `json:"stash:items"`
	} `json:"_embedded"`
	Results []dryadDataset `json:"results"`
}

type dryadDataset struct {
	Identifier      string        `json:"identifier"`
	Title           string        `json:"title"`
	Abstract        string        `json:"abstract"`
	Authors         []dryadAuthor `json:"authors"`
	Keywords        []string      `json:"keywords"`
	PublicationDate string        `json:"publicationDate"`
	Attributes      *struct {
		DOI        string `json:"doi"`
		Identifier string `json:"identifier"`
	} `json:"attributes"`
}

// dryadAuthor tolerates every author-name shape Dryad has served over
// the years.
type dryadAuthor struct {
	FullName   string `json:"fullName"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Name       string `json:"name"`
}

func (a dryadAuthor) display() string {
	switch {
	case a.FullName != "":
		return a.FullName
	case a.FirstName != "" || a.LastName != "":
		return strings.TrimSpace(a.FirstName + " " + a.LastName)
	case a.GivenName != "" || a.FamilyName != "":
		return strings.TrimSpace(a.GivenName + " " + a.FamilyName)
	default:
		return a.Name
	}
}

func (s *Service) fetchDryad(ctx context.Context, limit int) ([]*domain.Record, error) {
	var out []*domain.Record
	for page := 1; len(out) < limit; page++ {
		if page > 1 {
			if err := s.pause(ctx, s.cfg.PageDelay); err != nil {
				return out, err
			}
		}
		u := fmt.Sprintf("%s/search?page=%d&per_page=%d", s.cfg.DryadBaseURL, page, s.cfg.PageSize)
		var resp dryadPage
		if err := s.client.FetchJSON(ctx, u, &resp); err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}

		datasets := resp.Embedded.Datasets
		if len(datasets) == 0 {
			datasets = resp.Embedded.Items
		}
		if len(datasets) == 0 {
			datasets = resp.Results
		}
		if len(datasets) == 0 {
			break
		}

		for _, d := range datasets {
			doi := d.Identifier
			if d.Attributes != nil {
				if d.Attributes.DOI != "" {
					doi = d.Attributes.DOI
				} else if d.Attributes.Identifier != "" {
					doi = d.Attributes.Identifier
				}
			}
			doi = strings.TrimPrefix(strings.TrimSpace(doi), "doi:")

			var authors []string
			for _, a := range d.Authors {
				if name := a.display(); name != "" {
					authors = append(authors, name)
				}
			}

			rec := &domain.Record{
				ID:          "dryad-" + firstNonEmpty(doi, d.Title),
				Title:       firstNonEmpty(d.Title, "Untitled"),
				Authors:     authors,
				Description: d.Abstract,
				Keywords:    d.Keywords,
				Year:        yearFrom(d.PublicationDate),
				Source:      SourceDryad,
				Type:        domain.TypeResearch,
				Category:    domain.CategoryResearch,
				CreatedAt:   s.now(),
			}
			if doi != "" {
				rec.Identifier = doi
				rec.IdentifierType = domain.IdentifierDOI
				rec.URL = "https://doi.org/" + doi
			} else {
				rec.IdentifierType = domain.IdentifierDryad
			}
			reassignSource(rec)
			out = append(out, rec)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// ---------- Zenodo ----------

type zenodoPage struct {
	Hits struct {
		Hits  []zenodoHit `json:"hits"`
		Total int         `json:"total"`
	} `json:"hits"`
}

type zenodoHit struct {
	ID       json.Number `json:"id"`
	DOI      string      `json:"doi"`
	Metadata struct {
		Title           string   `json:"title"`
		Description     string   `json:"description"`
		PublicationDate string   `json:"publication_date"`
		Keywords        []string `json:"keywords"`
		Creators        []struct {
			Name string `json:"name"`
		} `json:"creators"`
	} `json:"metadata"`
	Links struct {
		SelfHTML string `json:"self_html"`
	} `json:"links"`
}

func (s *Service) fetchZenodo(ctx context.Context, limit int) ([]*domain.Record, error) {
	var out []*domain.Record
	for page := 1; len(out) < limit; page++ {
		if page > 1 {
			if err := s.pause(ctx, s.cfg.PageDelay); err != nil {
				return out, err
			}
		}
		u := fmt.Sprintf("%s/records?page=%d&size=%d&type=dataset&sort=mostrecent", s.cfg.ZenodoBaseURL, page, s.cfg.PageSize)
		var resp zenodoPage
		if err := s.client.FetchJSON(ctx, u, &resp); err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}
		if len(resp.Hits.Hits) == 0 {
			break
		}

		for _, h := range resp.Hits.Hits {
			var authors []string
			for _, c := range h.Metadata.Creators {
				if c.Name != "" {
					authors = append(authors, c.Name)
				}
			}
			rec := &domain.Record{
				ID:          "zenodo-" + h.ID.String(),
				Title:       firstNonEmpty(h.Metadata.Title, "Untitled"),
				Authors:     authors,
				Description: stripMarkup(h.Metadata.Description),
				Keywords:    h.Metadata.Keywords,
				Year:        yearFrom(h.Metadata.PublicationDate),
				Source:      SourceZenodo,
				Type:        domain.TypeResearch,
				Category:    domain.CategoryResearch,
				CreatedAt:   s.now(),
			}
			if h.DOI != "" {
				rec.Identifier = h.DOI
				rec.IdentifierType = domain.IdentifierDOI
				rec.URL = "https://doi.org/" + h.DOI
			} else {
				rec.Identifier = h.ID.String()
				rec.IdentifierType = domain.IdentifierZenodo
				rec.URL = h.Links.SelfHTML
			}
			reassignSource(rec)
			out = append(out, rec)
			if len(out) >= limit {
				break
			}
		}

		// A short page means the source is exhausted.
		if len(resp.Hits.Hits) < s.cfg.PageSize {
			break
		}
	}
	return out, nil
}

// ---------- DataCite (Mendeley Data) ----------

type dataCitePage struct {
	Data []dataCiteDOI `json:"data"`
	Meta struct {
		TotalPages int `json:"totalPages"`
	} `json:"meta"`
}

type dataCiteDOI struct {
	ID         string `json:"id"`
	Attributes struct {
		DOI    string `json:"doi"`
		Title  string `json:"title"`
		Titles []struct {
			Title string `json:"title"`
		} `json:"titles"`
		Creators []struct {
			Name       string `json:"name"`
			GivenName  string `json:"givenName"`
			FamilyName string `json:"familyName"`
		} `json:"creators"`
		Descriptions []struct {
			Description string `json:"description"`
		} `json:"descriptions"`
		Subjects []struct {
			Subject string `json:"subject"`
		} `json:"subjects"`
		PublicationYear int    `json:"publicationYear"`
		URL             string `json:"url"`
	} `json:"attributes"`
}

func (s *Service) fetchDataCite(ctx context.Context, limit int) ([]*domain.Record, error) {
	var out []*domain.Record
	for page := 1; len(out) < limit; page++ {
		if page > 1 {
			if err := s.pause(ctx, s.cfg.PageDelay); err != nil {
				return out, err
			}
		}
		u := fmt.Sprintf("%s/dois?client-id=mdy.data&page%s=%d&page%s=%d",
			s.cfg.DataCiteBaseURL,
			url.QueryEscape("[number]"), page,
			url.QueryEscape("[size]"), s.cfg.PageSize)
		var resp dataCitePage
		if err := s.client.FetchJSON(ctx, u, &resp); err != nil {
			if page == 1 {
				return nil, err
			}
			break
		}
		if len(resp.Data) == 0 {
			break
		}

		for _, d := range resp.Data {
			a := d.Attributes
			title := a.Title
			if len(a.Titles) > 0 && a.Titles[0].Title != "" {
				title = a.Titles[0].Title
			}

			var authors []string
			for _, c := range a.Creators {
				name := c.Name
				if name == "" {
					name = strings.TrimSpace(c.GivenName + " " + c.FamilyName)
				}
				if name != "" {
					authors = append(authors, name)
				}
			}

			var keywords []string
			for _, sub := range a.Subjects {
				if sub.Subject != "" {
					keywords = append(keywords, sub.Subject)
				}
			}

			doi := firstNonEmpty(a.DOI, d.ID)
			rec := &domain.Record{
				ID:        "datacite-" + doi,
				Title:     firstNonEmpty(title, "Untitled"),
				Authors:   authors,
				Keywords:  keywords,
				Year:      a.PublicationYear,
				Source:    SourceMendeley,
				Type:      domain.TypeResearch,
				Category:  domain.CategoryResearch,
				CreatedAt: s.now(),
			}
			if len(a.Descriptions) > 0 {
				rec.Description = stripMarkup(a.Descriptions[0].Description)
			}
			if doi != "" {
				rec.Identifier = doi
				rec.IdentifierType = domain.IdentifierDOI
				rec.URL = firstNonEmpty(a.URL, "https://doi.org/"+doi)
			}
			reassignSource(rec)
			out = append(out, rec)
			if len(out) >= limit {
				break
			}
		}

		// The API announces its own page count; honor it.
		if resp.Meta.TotalPages > 0 && page >= resp.Meta.TotalPages {
			break
		}
	}
	return out, nil
}

// reassignSource overrides a record's source when its identifier or URL
// proves a different origin registry than the endpoint it was fetched
// from. Identifiers outrank endpoints as a provenance signal: Dryad and
// Zenodo datasets are mirrored widely.
func reassignSource(r *domain.Record) {
	id := strings.ToLower(r.Identifier)
	link := strings.ToLower(r.URL)
	switch {
	case strings.HasPrefix(id, "10.5061/"):
		r.Source = SourceDryad
	case strings.HasPrefix(id, "10.5281/"):
		r.Source = SourceZenodo
	case strings.HasPrefix(id, "10.17632/"):
		r.Source = SourceMendeley
	case strings.Contains(link, "datadryad.org"):
		r.Source = SourceDryad
	case strings.Contains(link, "zenodo.org"):
		r.Source = SourceZenodo
	case strings.Contains(link, "data.mendeley.com"):
		r.Source = SourceMendeley
	}
}
