package matcher

import (
	"context"

	"github.com/kapu/pizzabot-go/internal/domain"
	"github.com/kapu/pizzabot-go/internal/nlp"
	"github.com/kapu/pizzabot-go/internal/util"
	"go.uber.org/zap"
)

// CatalogMatcher resolves a free-text candidate string to the closest
// catalog entry by semantic similarity.
type CatalogMatcher struct {
	catalog   *domain.Catalog
	parser    nlp.Parser
	threshold float64
	logger    *zap.Logger
}

func NewCatalogMatcher(catalog *domain.Catalog, parser nlp.Parser, threshold float64, logger *zap.Logger) *CatalogMatcher {
	mm := &CatalogMatcher{
		catalog:   catalog,
		parser:    parser,
		threshold: threshold,
		logger:    logger,
	}

	logger.Info("CatalogMatcher initialized",
		zap.Int("entries", catalog.Len()),
		zap.Float64("threshold", threshold),
	)

	return mm
}

// Match returns the catalog entry with the highest similarity to candidate,
// or nil when no entry reaches the confidence threshold.
//
// The whole catalog is always scanned: a later entry may score higher. Ties
// at the maximum resolve to the entry scanned first (catalog-declared
// order). A pair the similarity function cannot score counts as 0 instead
// of failing the match.
func (m *CatalogMatcher) Match(ctx context.Context, candidate string) (*domain.Match, error) {
	normalized := util.Normalize(candidate)
	if normalized == "" {
		return nil, nil
	}

	// Exact names always resolve, whatever the similarity model thinks of
	// them. Identical strings are maximally similar by symmetry.
	if name, ok := m.catalog.FindExact(normalized); ok {
		return &domain.Match{Name: name, Score: 1.0}, nil
	}

	var best *domain.Match
	for _, entry := range m.catalog.Entries() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		score, err := m.parser.Similarity(ctx, normalized, util.Normalize(entry.Name))
		if err != nil {
			m.logger.Debug("Similarity unavailable for pair, scoring 0",
				zap.String("candidate", normalized),
				zap.String("entry", entry.Name),
				zap.Error(err),
			)
			score = 0
		}

		if best == nil || score > best.Score {
			best = &domain.Match{Name: entry.Name, Score: score}
		}
	}

	if best == nil || best.Score < m.threshold {
		m.logger.Debug("No catalog entry above threshold",
			zap.String("candidate", normalized),
		)
		return nil, nil
	}

	return best, nil
}

// Catalog exposes the read-only catalog this matcher scans.
func (m *CatalogMatcher) Catalog() *domain.Catalog {
	return m.catalog
}
