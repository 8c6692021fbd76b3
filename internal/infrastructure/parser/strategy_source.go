package parser

import (
	"context"
	"fmt"
	"log/slog"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
)

// StrategySource implements ItemIndex via a registered scanner strategy.
type StrategySource struct {
	registry *scanner.Registry
	strategy string
	logger   *slog.Logger
}

var _ ports.ItemIndex = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with the configured strategy name.
func NewStrategySource(reg *scanner.Registry, strategy string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		strategy: strategy,
		logger:   log,
	}
}

// Search resolves the configured scanner and executes it.
func (s *StrategySource) Search(ctx context.Context, query ports.SearchQuery) ([]domain.Item, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.strategy)
	if err != nil {
		return nil, err
	}

	s.debug("search index", "scanner", s.strategy, "categories", query.Categories, "max_candidates", query.MaxCandidates)

	items, err := strategy.Scan(ctx, scanner.Request{
		Categories:    query.Categories,
		MaxCandidates: query.MaxCandidates,
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.strategy, err)
	}

	s.debug("strategy source done", "candidates", len(items))
	return items, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
