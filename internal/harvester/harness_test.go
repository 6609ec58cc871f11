package harvester

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scholarhub/backend/internal/config"
	"github.com/scholarhub/backend/internal/domain"
	"github.com/scholarhub/backend/pkg/fetch"
)

// memRecords is an in-memory domain.RecordRepository for harvester tests.
type memRecords struct {
	mu      sync.Mutex
	records []*domain.Record
}

func (m *memRecords) ListByCategory(ctx context.Context, category domain.Category) ([]*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Record
	for _, r := range m.records {
		if category == "" || r.Category == category {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRecords) InsertMany(ctx context.Context, records []*domain.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, r := range records {
		if m.hasIDLocked(r.ID) {
			continue
		}
		m.records = append(m.records, r)
		inserted++
	}
	return inserted, nil
}

func (m *memRecords) ReplaceCategory(ctx context.Context, category domain.Category, records []*domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []*domain.Record
	for _, r := range m.records {
		if r.Category != category {
			kept = append(kept, r)
		}
	}
	m.records = append(kept, records...)
	return nil
}

func (m *memRecords) UpdateLink(ctx context.Context, signature string, url, identifier, identifierType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	patched := 0
	for _, r := range m.records {
		if Signature(r) != signature || r.HasURL() {
			continue
		}
		r.URL = url
		r.Identifier = identifier
		r.IdentifierType = identifierType
		patched++
	}
	return patched, nil
}

func (m *memRecords) CountByCategory(ctx context.Context) (map[domain.Category]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.Category]int)
	for _, r := range m.records {
		counts[r.Category]++
	}
	return counts, nil
}

func (m *memRecords) hasIDLocked(id string) bool {
	for _, r := range m.records {
		if r.ID == id {
			return true
		}
	}
	return false
}

// memMeta is an in-memory domain.MetaRepository.
type memMeta struct {
	mu   sync.Mutex
	meta *domain.Meta
}

func (m *memMeta) Get(ctx context.Context) (*domain.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta, nil
}

func (m *memMeta) Upsert(ctx context.Context, meta *domain.Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
	return nil
}

func testHarvestConfig() config.HarvestConfig {
	return config.HarvestConfig{
		MaxPages:       3,
		RecordCap:      40,
		IncrementalCap: 10,
		PageSize:       5,
		PageDelay:      time.Millisecond,
		SourceDelay:    time.Millisecond,
		HTTPTimeout:    2 * time.Second,
		Retries:        1,
		Backoff:        time.Millisecond,
	}
}

func newTestService(t *testing.T, cfg config.HarvestConfig) (*Service, *memRecords, *memMeta) {
	t.Helper()
	records := &memRecords{}
	meta := &memMeta{}
	client := fetch.NewClient(fetch.Config{
		Timeout: cfg.HTTPTimeout,
		Retries: cfg.Retries,
		Backoff: cfg.Backoff,
	}, zerolog.Nop())
	svc := NewService(cfg, client, records, meta, zerolog.Nop())
	return svc, records, meta
}
