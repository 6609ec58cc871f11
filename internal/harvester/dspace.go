package harvester

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/scholarhub/backend/internal/config"
	"github.com/scholarhub/backend/internal/domain"
	"github.com/scholarhub/backend/pkg/oaixml"
)

// ErrSourceUnreachable marks a repository that failed its probe or served
// no usable data. The caller skips the source and continues the batch.
var ErrSourceUnreachable = errors.New("harvester: source unreachable")

// DSpaceResult holds one repository's harvest, already split by category.
type DSpaceResult struct {
	Theses   []*domain.Record
	Articles []*domain.Record
}

// HarvestDSpaceRepo pages through one repository's ListRecords feed up to
// the page cap and recordCap. The repository is probed first; a probe
// response without any <record> marker skips the whole repository for
// this run.
func (s *Service) HarvestDSpaceRepo(ctx context.Context, repo config.OAIRepo, recordCap int) (*DSpaceResult, error) {
	body, err := s.client.FetchText(ctx, oaixml.ListRecordsURL(repo.Endpoint, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnreachable, repo.ID, err)
	}
	if !strings.Contains(body, "<record") {
		return nil, fmt.Errorf("%w: %s: probe returned no records", ErrSourceUnreachable, repo.ID)
	}

	result := &DSpaceResult{}
	total := 0
	token := ""
	for page := 0; page < s.cfg.MaxPages; page++ {
		if page > 0 {
			if err := s.pause(ctx, s.cfg.PageDelay); err != nil {
				return result, err
			}
			body, err = s.client.FetchText(ctx, oaixml.ListRecordsURL(repo.Endpoint, token))
			if err != nil {
				// Later pages failing is not fatal; keep what we have.
				s.log.Warn().Str("repo", repo.ID).Err(err).Msg("page fetch failed mid-harvest")
				break
			}
		}

		parsed := oaixml.ParseList(body, repo.Name)
		if parsed.ErrorCode == "noRecordsMatch" {
			break
		}
		for _, pr := range parsed.Records {
			cat, keep := categorize(pr)
			if !keep {
				continue
			}
			rec := s.toRecord(pr, repo.ID, cat)
			switch cat {
			case domain.CategoryThesis:
				result.Theses = append(result.Theses, rec)
			default:
				result.Articles = append(result.Articles, rec)
			}
			total++
			if total >= recordCap {
				return result, nil
			}
		}

		token = parsed.Next
		if token == "" {
			break
		}
	}
	return result, nil
}

// categorize maps a parsed record onto a persisted category. Records with
// a named but non-thesis type fall through to articles; records whose
// type vocabulary is entirely absent are dropped.
func categorize(pr *oaixml.ParsedRecord) (domain.Category, bool) {
	switch pr.Type {
	case oaixml.TypeThesis:
		return domain.CategoryThesis, true
	case oaixml.TypeArticle:
		return domain.CategoryArticle, true
	default:
		if len(pr.TypeTerms) > 0 {
			return domain.CategoryArticle, true
		}
		return "", false
	}
}

// toRecord converts a parsed OAI record into the canonical schema. OAI
// sources carry no stable native id, so the persisted id is the source id
// plus a random suffix; identity across harvests is the dedup signature.
func (s *Service) toRecord(pr *oaixml.ParsedRecord, sourceID string, cat domain.Category) *domain.Record {
	return &domain.Record{
		ID:             fmt.Sprintf("%s-%s", sourceID, uuid.NewString()),
		Title:          pr.Title,
		Authors:        pr.Authors,
		Description:    pr.Description,
		Keywords:       pr.Keywords,
		Year:           pr.Year,
		Source:         pr.Source,
		Type:           pr.Type,
		Identifier:     pr.Identifier,
		IdentifierType: pr.IdentifierType,
		URL:            pr.URL,
		Category:       cat,
		CreatedAt:      s.now(),
	}
}
