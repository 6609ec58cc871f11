package domain

import (
	"context"
	"time"
)

// Category is the persistence-time classification of a record. It is
// assigned by the harvester that produced the record, not by the parser,
// and is distinct from the record's publication Type.
type Category string

const (
	CategoryThesis   Category = "thesis"
	CategoryArticle  Category = "article"
	CategoryResearch Category = "research"
)

// Categories lists every persisted category.
var Categories = []Category{CategoryThesis, CategoryArticle, CategoryResearch}

// Publication types inferred from source type/category vocabularies.
const (
	TypeThesis   = "Thesis/Dissertation"
	TypeArticle  = "Journal Article"
	TypeResearch = "Research Data"
	TypeOther    = "Other"
)

// Identifier type tags.
const (
	IdentifierDOI      = "DOI"
	IdentifierHandle   = "Handle"
	IdentifierDryad    = "Dryad ID"
	IdentifierZenodo   = "Zenodo ID"
	IdentifierOpenAlex = "OpenAlex ID"
	IdentifierGeneric  = "ID"
)

// Record is the canonical normalized unit produced by every harvester.
type Record struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Authors        []string  `json:"authors"`
	Description    string    `json:"description,omitempty"`
	Keywords       []string  `json:"keywords,omitempty"`
	Year           int       `json:"year,omitempty"`
	Source         string    `json:"source"`
	Type           string    `json:"type"`
	Identifier     string    `json:"identifier,omitempty"`
	IdentifierType string    `json:"identifierType,omitempty"`
	URL            string    `json:"url,omitempty"`
	Category       Category  `json:"category"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// HasURL reports whether the record carries a usable landing URL.
// Downstream consumers treat "" and "#" as missing.
func (r *Record) HasURL() bool {
	return r.URL != "" && r.URL != "#"
}

// HarvestError is the last-failure slot kept in the Meta singleton,
// overwritten on each failure.
type HarvestError struct {
	Context string    `json:"context"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Meta is the singleton status document keyed by "system".
type Meta struct {
	LastUpdated time.Time        `json:"last_updated"`
	Counts      map[Category]int `json:"counts"`
	Total       int              `json:"total"`
	LastHarvest time.Time        `json:"last_harvest"`
	LastError   *HarvestError    `json:"last_error,omitempty"`
}

// RecordRepository is the persisted record collection. The concrete store
// is an external collaborator; the query engine reads whole categories
// into memory and never relies on store-side text search.
type RecordRepository interface {
	// ListByCategory returns all records of one category, newest first.
	// An empty category returns the full corpus.
	ListByCategory(ctx context.Context, category Category) ([]*Record, error)
	// InsertMany inserts the given records, skipping conflicts on id.
	InsertMany(ctx context.Context, records []*Record) (int, error)
	// ReplaceCategory atomically swaps the persisted set for one category.
	ReplaceCategory(ctx context.Context, category Category, records []*Record) error
	// UpdateLink patches url/identifier/identifierType on records whose
	// dedup signature matches.
	UpdateLink(ctx context.Context, signature string, url, identifier, identifierType string) (int, error)
	// CountByCategory returns per-category record counts.
	CountByCategory(ctx context.Context) (map[Category]int, error)
}

// MetaRepository manages the "system" singleton.
type MetaRepository interface {
	Get(ctx context.Context) (*Meta, error)
	Upsert(ctx context.Context, meta *Meta) error
}
