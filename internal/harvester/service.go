package harvester

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarhub/backend/internal/config"
	"github.com/scholarhub/backend/internal/domain"
	"github.com/scholarhub/backend/pkg/fetch"
)

// Service orchestrates every harvest run. One instance is shared by the
// HTTP layer, the scheduler, and the operator CLI; per-category locks
// keep concurrent runs over the same category from interleaving.
type Service struct {
	cfg     config.HarvestConfig
	client  *fetch.Client
	records domain.RecordRepository
	meta    domain.MetaRepository
	log     zerolog.Logger

	now func() time.Time

	mu    sync.Mutex
	locks map[domain.Category]*sync.Mutex
}

func NewService(cfg config.HarvestConfig, client *fetch.Client, records domain.RecordRepository, meta domain.MetaRepository, log zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		client:  client,
		records: records,
		meta:    meta,
		log:     log.With().Str("component", "harvester").Logger(),
		now:     time.Now,
		locks:   make(map[domain.Category]*sync.Mutex),
	}
}

// lockFor returns the serialization mutex for one category, creating it
// on first use.
func (s *Service) lockFor(cat domain.Category) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[cat]; !ok {
		s.locks[cat] = &sync.Mutex{}
	}
	return s.locks[cat]
}

// pause sleeps for d unless the context is cancelled first.
func (s *Service) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HarvestSummary reports what one run changed.
type HarvestSummary struct {
	Theses   int       `json:"theses"`
	Articles int       `json:"articles"`
	Research int       `json:"research"`
	Added    int       `json:"added"`
	Skipped  []string  `json:"skipped,omitempty"`
	Duration float64   `json:"duration_seconds"`
	Finished time.Time `json:"finished"`
}

// FullHarvest re-harvests every OAI source and rebuilds the thesis and
// article categories: existing records are concatenated ahead of the
// fresh batch before the first-wins dedup, so a work already persisted
// keeps its original record and anything contributed by a source that is
// unreachable this run survives the swap. One unreachable source skips
// that source, never the run.
func (s *Service) FullHarvest(ctx context.Context) (*HarvestSummary, error) {
	thesisLock := s.lockFor(domain.CategoryThesis)
	thesisLock.Lock()
	defer thesisLock.Unlock()
	articleLock := s.lockFor(domain.CategoryArticle)
	articleLock.Lock()
	defer articleLock.Unlock()

	start := s.now()
	theses, err := s.records.ListByCategory(ctx, domain.CategoryThesis)
	if err != nil {
		return nil, err
	}
	articles, err := s.records.ListByCategory(ctx, domain.CategoryArticle)
	if err != nil {
		return nil, err
	}
	var skipped []string

	for i, repo := range s.cfg.DSpaceRepos {
		if i > 0 {
			if err := s.pause(ctx, s.cfg.SourceDelay); err != nil {
				return nil, err
			}
		}
		res, err := s.HarvestDSpaceRepo(ctx, repo, s.cfg.RecordCap)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Str("source", repo.ID).Err(err).Msg("source unreachable, skipping")
			skipped = append(skipped, repo.ID)
			s.recordError(ctx, "full:"+repo.ID, err)
			continue
		}
		theses = append(theses, res.Theses...)
		articles = append(articles, res.Articles...)
	}

	if err := s.pause(ctx, s.cfg.SourceDelay); err != nil {
		return nil, err
	}
	elis, _, err := s.HarvestElis(ctx, s.cfg.RecordCap)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn().Err(err).Msg("elis unreachable, skipping")
		skipped = append(skipped, "elis")
		s.recordError(ctx, "full:elis", err)
	} else {
		articles = append(articles, elis...)
	}

	theses = Dedupe(theses)
	articles = Dedupe(articles)

	if err := s.records.ReplaceCategory(ctx, domain.CategoryThesis, theses); err != nil {
		s.recordError(ctx, "full:replace-thesis", err)
		return nil, err
	}
	if err := s.records.ReplaceCategory(ctx, domain.CategoryArticle, articles); err != nil {
		s.recordError(ctx, "full:replace-article", err)
		return nil, err
	}
	if err := s.refreshMeta(ctx); err != nil {
		return nil, err
	}

	sum := &HarvestSummary{
		Theses:   len(theses),
		Articles: len(articles),
		Added:    len(theses) + len(articles),
		Skipped:  skipped,
		Duration: s.now().Sub(start).Seconds(),
		Finished: s.now(),
	}
	s.log.Info().Int("theses", sum.Theses).Int("articles", sum.Articles).
		Strs("skipped", skipped).Float64("seconds", sum.Duration).
		Msg("full harvest complete")
	return sum, nil
}

// IncrementalHarvest appends up to limit genuinely novel records per OAI
// source to the thesis and article categories, judged against the dedup
// signatures already persisted. Existing records are never touched.
func (s *Service) IncrementalHarvest(ctx context.Context, limit int) (*HarvestSummary, error) {
	if limit <= 0 {
		limit = s.cfg.IncrementalCap
	}

	thesisLock := s.lockFor(domain.CategoryThesis)
	thesisLock.Lock()
	defer thesisLock.Unlock()
	articleLock := s.lockFor(domain.CategoryArticle)
	articleLock.Lock()
	defer articleLock.Unlock()

	start := s.now()
	// The novelty snapshot covers only the two OAI categories; a dataset
	// that happens to share a signature must not suppress a new record.
	existingTheses, err := s.records.ListByCategory(ctx, domain.CategoryThesis)
	if err != nil {
		return nil, err
	}
	existingArticles, err := s.records.ListByCategory(ctx, domain.CategoryArticle)
	if err != nil {
		return nil, err
	}
	seen := signatureSet(append(existingTheses, existingArticles...))

	var fresh []*domain.Record
	var thesisCount, articleCount int
	var skipped []string

	take := func(records []*domain.Record) (kept int) {
		for _, r := range records {
			if kept >= limit {
				return kept
			}
			sig := Signature(r)
			if sig == "" {
				continue
			}
			if _, ok := seen[sig]; ok {
				continue
			}
			seen[sig] = struct{}{}
			fresh = append(fresh, r)
			kept++
			if r.Category == domain.CategoryThesis {
				thesisCount++
			} else {
				articleCount++
			}
		}
		return kept
	}

	for i, repo := range s.cfg.DSpaceRepos {
		if i > 0 {
			if err := s.pause(ctx, s.cfg.SourceDelay); err != nil {
				return nil, err
			}
		}
		// Incremental ticks fetch only a small batch per repository.
		res, err := s.HarvestDSpaceRepo(ctx, repo, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Str("source", repo.ID).Err(err).Msg("source unreachable, skipping")
			skipped = append(skipped, repo.ID)
			s.recordError(ctx, "incremental:"+repo.ID, err)
			continue
		}
		take(res.Theses)
		take(res.Articles)
	}

	if err := s.pause(ctx, s.cfg.SourceDelay); err != nil {
		return nil, err
	}
	elis, _, err := s.HarvestElis(ctx, limit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn().Err(err).Msg("elis unreachable, skipping")
		skipped = append(skipped, "elis")
		s.recordError(ctx, "incremental:elis", err)
	} else {
		take(elis)
	}

	added := 0
	if len(fresh) > 0 {
		added, err = s.records.InsertMany(ctx, fresh)
		if err != nil {
			s.recordError(ctx, "incremental:insert", err)
			return nil, err
		}
	}
	if err := s.refreshMeta(ctx); err != nil {
		return nil, err
	}

	sum := &HarvestSummary{
		Theses:   thesisCount,
		Articles: articleCount,
		Added:    added,
		Skipped:  skipped,
		Duration: s.now().Sub(start).Seconds(),
		Finished: s.now(),
	}
	s.log.Info().Int("added", added).Strs("skipped", skipped).Msg("incremental harvest complete")
	return sum, nil
}

// ResearchHarvest re-harvests every JSON research-data source and
// rebuilds the research category, merging the existing persisted set
// ahead of the fresh batch the same way FullHarvest does.
func (s *Service) ResearchHarvest(ctx context.Context) (*HarvestSummary, error) {
	lock := s.lockFor(domain.CategoryResearch)
	lock.Lock()
	defer lock.Unlock()

	start := s.now()
	records, err := s.records.ListByCategory(ctx, domain.CategoryResearch)
	if err != nil {
		return nil, err
	}
	var skipped []string

	for i, source := range ResearchSources {
		if i > 0 {
			if err := s.pause(ctx, s.cfg.SourceDelay); err != nil {
				return nil, err
			}
		}
		recs, err := s.FetchResearchSource(ctx, source, s.cfg.RecordCap)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Str("source", source).Err(err).Msg("source unreachable, skipping")
			skipped = append(skipped, source)
			s.recordError(ctx, "research:"+source, err)
			continue
		}
		records = append(records, recs...)
	}

	records = Dedupe(records)
	if err := s.records.ReplaceCategory(ctx, domain.CategoryResearch, records); err != nil {
		s.recordError(ctx, "research:replace", err)
		return nil, err
	}
	if err := s.refreshMeta(ctx); err != nil {
		return nil, err
	}

	sum := &HarvestSummary{
		Research: len(records),
		Added:    len(records),
		Skipped:  skipped,
		Duration: s.now().Sub(start).Seconds(),
		Finished: s.now(),
	}
	s.log.Info().Int("research", sum.Research).Strs("skipped", skipped).Msg("research harvest complete")
	return sum, nil
}

// ResearchIncrementalHarvest appends up to limit novel dataset records
// per research source.
func (s *Service) ResearchIncrementalHarvest(ctx context.Context, limit int) (*HarvestSummary, error) {
	if limit <= 0 {
		limit = s.cfg.IncrementalCap
	}

	lock := s.lockFor(domain.CategoryResearch)
	lock.Lock()
	defer lock.Unlock()

	start := s.now()
	existing, err := s.records.ListByCategory(ctx, domain.CategoryResearch)
	if err != nil {
		return nil, err
	}
	seen := signatureSet(existing)

	var fresh []*domain.Record
	var skipped []string

	for i, source := range ResearchSources {
		if i > 0 {
			if err := s.pause(ctx, s.cfg.SourceDelay); err != nil {
				return nil, err
			}
		}
		recs, err := s.FetchResearchSource(ctx, source, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Str("source", source).Err(err).Msg("source unreachable, skipping")
			skipped = append(skipped, source)
			s.recordError(ctx, "research-incremental:"+source, err)
			continue
		}
		kept := 0
		for _, r := range recs {
			if kept >= limit {
				break
			}
			sig := Signature(r)
			if sig == "" {
				continue
			}
			if _, ok := seen[sig]; ok {
				continue
			}
			seen[sig] = struct{}{}
			fresh = append(fresh, r)
			kept++
		}
	}

	added := 0
	if len(fresh) > 0 {
		added, err = s.records.InsertMany(ctx, fresh)
		if err != nil {
			s.recordError(ctx, "research-incremental:insert", err)
			return nil, err
		}
	}
	if err := s.refreshMeta(ctx); err != nil {
		return nil, err
	}

	sum := &HarvestSummary{
		Research: added,
		Added:    added,
		Skipped:  skipped,
		Duration: s.now().Sub(start).Seconds(),
		Finished: s.now(),
	}
	s.log.Info().Int("added", added).Strs("skipped", skipped).Msg("research incremental harvest complete")
	return sum, nil
}

// refreshMeta recomputes the counts in the Meta singleton after a
// successful run. The last-error slot is preserved.
func (s *Service) refreshMeta(ctx context.Context) error {
	counts, err := s.records.CountByCategory(ctx)
	if err != nil {
		return err
	}
	meta, err := s.meta.Get(ctx)
	if err != nil {
		return err
	}
	if meta == nil {
		meta = &domain.Meta{}
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	meta.Counts = counts
	meta.Total = total
	meta.LastUpdated = s.now()
	meta.LastHarvest = s.now()
	return s.meta.Upsert(ctx, meta)
}

// recordError overwrites the last-error slot in the Meta singleton. Best
// effort: a failure to record the failure is only logged.
func (s *Service) recordError(ctx context.Context, where string, cause error) {
	meta, err := s.meta.Get(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("loading meta to record harvest error")
		return
	}
	if meta == nil {
		meta = &domain.Meta{}
	}
	meta.LastError = &domain.HarvestError{
		Context: where,
		Message: cause.Error(),
		Time:    s.now(),
	}
	if err := s.meta.Upsert(ctx, meta); err != nil {
		s.log.Error().Err(err).Msg("recording harvest error")
	}
}

// Status assembles the health-check payload.
func (s *Service) Status(ctx context.Context) (*domain.Meta, error) {
	meta, err := s.meta.Get(ctx)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = &domain.Meta{Counts: map[domain.Category]int{}}
	}
	return meta, nil
}
