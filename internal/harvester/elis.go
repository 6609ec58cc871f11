package harvester

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/scholarhub/backend/internal/domain"
	"github.com/scholarhub/backend/internal/search"
	"github.com/scholarhub/backend/pkg/oaixml"
)

const elisSourceName = "E-LIS ePrints"

// ErrNoWorkingEndpoint distinguishes "couldn't search" from "nothing
// matched" for the live E-LIS path.
var ErrNoWorkingEndpoint = errors.New("harvester: no working E-LIS endpoint")

// selectElisEndpoint probes the primary then the backup endpoint with a
// lightweight ListRecords call and returns whichever serves <record>
// content. All pages of the run reuse the chosen endpoint.
func (s *Service) selectElisEndpoint(ctx context.Context) (endpoint, firstPage string, err error) {
	for _, ep := range []string{s.cfg.ElisPrimary, s.cfg.ElisBackup} {
		if ep == "" {
			continue
		}
		body, ferr := s.client.FetchText(ctx, oaixml.ListRecordsURL(ep, ""))
		if ferr != nil {
			continue
		}
		if strings.Contains(body, "<record") {
			return ep, body, nil
		}
	}
	return "", "", ErrNoWorkingEndpoint
}

// HarvestElis collects up to recordCap records from E-LIS, reporting the
// endpoint that served the run.
func (s *Service) HarvestElis(ctx context.Context, recordCap int) ([]*domain.Record, string, error) {
	endpoint, body, err := s.selectElisEndpoint(ctx)
	if err != nil {
		return nil, "", err
	}

	var out []*domain.Record
	token := ""
	for page := 0; page < s.cfg.MaxPages; page++ {
		if page > 0 {
			if err := s.pause(ctx, s.cfg.PageDelay); err != nil {
				return out, endpoint, err
			}
			body, err = s.client.FetchText(ctx, oaixml.ListRecordsURL(endpoint, token))
			if err != nil {
				break
			}
		}

		parsed := oaixml.ParseList(body, elisSourceName)
		if parsed.ErrorCode == "noRecordsMatch" {
			break
		}
		for _, pr := range parsed.Records {
			if pr.Type == oaixml.TypeOther && len(pr.TypeTerms) == 0 {
				pr.Type = oaixml.TypeArticle
			}
			out = append(out, s.toRecord(pr, "elis", domain.CategoryArticle))
			if len(out) >= recordCap {
				return out, endpoint, nil
			}
		}

		token = parsed.Next
		if token == "" {
			break
		}
	}
	return out, endpoint, nil
}

// ElisLiveResult is one page of a live (non-persisted) E-LIS search.
type ElisLiveResult struct {
	Results      []*domain.Record `json:"results"`
	Total        int              `json:"total"`
	Page         int              `json:"page"`
	PageSize     int              `json:"pageSize"`
	HasMore      bool             `json:"hasMore"`
	EndpointUsed string           `json:"endpointUsed"`
}

// SearchElisLive harvests a bounded window from E-LIS and filters it
// against the query in memory. ErrNoWorkingEndpoint is surfaced so the
// caller can distinguish an unreachable repository from zero matches.
func (s *Service) SearchElisLive(ctx context.Context, query string, page, pageSize int) (*ElisLiveResult, error) {
	records, endpoint, err := s.HarvestElis(ctx, s.cfg.RecordCap)
	if err != nil {
		return nil, err
	}

	parsed := search.ParseQuery(query)
	var matched []*domain.Record
	for _, r := range records {
		if search.Matches(r, parsed) {
			matched = append(matched, r)
		}
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	total := len(matched)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &ElisLiveResult{
		Results:      matched[start:end],
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
		HasMore:      page*pageSize < total,
		EndpointUsed: endpoint,
	}, nil
}

// FixMissingURLs re-harvests E-LIS and patches persisted records that
// lack a usable landing URL. Matching is by dedup signature: the original
// id scheme embeds a per-parse random suffix and can never match across
// runs, so the signature is the only stable join key.
func (s *Service) FixMissingURLs(ctx context.Context) (int, error) {
	records, _, err := s.HarvestElis(ctx, s.cfg.RecordCap)
	if err != nil {
		return 0, err
	}

	patched := 0
	for _, r := range records {
		if !r.HasURL() {
			continue
		}
		n, err := s.records.UpdateLink(ctx, Signature(r), r.URL, r.Identifier, r.IdentifierType)
		if err != nil {
			return patched, fmt.Errorf("update link: %w", err)
		}
		patched += n
	}
	s.log.Info().Int("patched", patched).Msg("fix-urls pass complete")
	return patched, nil
}
