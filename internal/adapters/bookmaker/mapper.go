package bookmaker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/valuebot/internal/domain"
	"github.com/alejandrodnm/valuebot/internal/ports"
)

// MatchThreshold is the similarity a candidate must beat to be mapped
// automatically.
const MatchThreshold = 0.85

// Mapper resolves bookmaker-side identifiers to internal keys, remembering
// every decision in the mapping table.
type Mapper struct {
	store     ports.MappingStore
	threshold float64
}

// NewMapper returns a mapper backed by store.
func NewMapper(store ports.MappingStore) *Mapper {
	return &Mapper{store: store, threshold: MatchThreshold}
}

// Resolve returns the internal key for an external entity. A known mapping
// is returned as is and a pending one yields ok=false without another match
// attempt. Unknown entities are fuzzy-matched against the internal
// candidates of the same group; the outcome, mapped or pending, is stored.
func (m *Mapper) Resolve(ctx context.Context, source, typ, externalID, externalName, group string) (string, bool, error) {
	existing, found, err := m.store.Mapping(ctx, source, typ, externalID)
	if err != nil {
		return "", false, fmt.Errorf("bookmaker.Resolve: lookup: %w", err)
	}
	if found {
		if existing.Status == domain.MappingMapped && existing.InternalKey != "" {
			return existing.InternalKey, true, nil
		}
		return "", false, nil
	}

	candidates, err := m.store.MappingCandidates(ctx, typ, group)
	if err != nil {
		return "", false, fmt.Errorf("bookmaker.Resolve: candidates: %w", err)
	}
	best, score := bestCandidate(externalName, candidates)

	row := domain.Mapping{
		Source:       source,
		Type:         typ,
		ExternalID:   externalID,
		ExternalName: externalName,
		Group:        group,
		Status:       domain.MappingPending,
		Score:        score,
	}
	if score > m.threshold {
		row.InternalKey = best.Key
		row.Status = domain.MappingMapped
	}
	if err := m.store.SaveMapping(ctx, row); err != nil {
		return "", false, fmt.Errorf("bookmaker.Resolve: save: %w", err)
	}

	if row.Status == domain.MappingPending {
		slog.Info("mapper: no match, left pending",
			"source", source, "type", typ, "external", externalName, "best", best.Name, "score", score)
		return "", false, nil
	}
	slog.Debug("mapper: mapped", "source", source, "type", typ, "external", externalName, "internal", best.Key, "score", score)
	return row.InternalKey, true, nil
}

// ExternalID is the reverse lookup: the bookmaker-side id mapped onto
// internalKey.
func (m *Mapper) ExternalID(ctx context.Context, source, typ, internalKey string) (string, bool, error) {
	row, found, err := m.store.MappingByInternal(ctx, source, typ, internalKey)
	if err != nil {
		return "", false, fmt.Errorf("bookmaker.ExternalID: %w", err)
	}
	if !found {
		return "", false, nil
	}
	return row.ExternalID, true, nil
}

func bestCandidate(name string, candidates []domain.Candidate) (domain.Candidate, float64) {
	var (
		best  domain.Candidate
		score float64
	)
	for _, c := range candidates {
		if s := Similarity(name, c.Name); s > score {
			best, score = c, s
		}
	}
	return best, score
}
