package harvester

import (
	"fmt"
	"strings"

	"github.com/scholarhub/backend/internal/domain"
)

// Signature computes the stable dedup key for a record. Records sharing a
// signature are the same underlying work regardless of differing ids:
// identifier-based when one was resolved, content-based otherwise.
func Signature(r *domain.Record) string {
	if r.Identifier != "" {
		return strings.ToLower(r.Source + "-" + r.Identifier)
	}
	return strings.ToLower(fmt.Sprintf("%s-%s-%s-%d", r.Source, r.Title, strings.Join(r.Authors, ","), r.Year))
}

// Dedupe collapses duplicates in a single pass, keeping the first
// occurrence of each signature. Records with an empty id are dropped.
// Applying Dedupe twice yields the same result as once.
func Dedupe(records []*domain.Record) []*domain.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]*domain.Record, 0, len(records))
	for _, r := range records {
		if r == nil || r.ID == "" {
			continue
		}
		sig := Signature(r)
		if _, dup := seen[sig]; dup {
			continue
		}
		seen[sig] = struct{}{}
		out = append(out, r)
	}
	return out
}

// signatureSet indexes a record list by signature for novelty checks
// during incremental harvests.
func signatureSet(records []*domain.Record) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, r := range records {
		set[Signature(r)] = struct{}{}
	}
	return set
}
