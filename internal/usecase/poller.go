package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// RecencyMode selects how publication dates are matched against the reference time.
type RecencyMode string

const (
	// RecencyCutoff keeps items published on or after the day of ref - window.
	RecencyCutoff RecencyMode = "cutoff"
	// RecencyDay keeps items published on the same calendar day as ref.
	RecencyDay RecencyMode = "day"
)

// ClaimPolicy decides when an item enters the seen-set.
type ClaimPolicy string

const (
	// ClaimOnSelect records the item as soon as the poller picks it (at-most-once).
	ClaimOnSelect ClaimPolicy = "select"
	// ClaimOnWrite records the item only after its record was written (at-least-once).
	ClaimOnWrite ClaimPolicy = "write"
)

// PollerConfig is the selection policy handed to the poller at construction.
type PollerConfig struct {
	Categories    []string
	RecencyWindow time.Duration
	RecencyMode   RecencyMode
	MaxCandidates int
	Claim         ClaimPolicy
}

// Poller picks the newest unseen item inside the recency window.
type Poller struct {
	index  ports.ItemIndex
	seen   ports.SeenStore
	cfg    PollerConfig
	logger *slog.Logger
}

// NewPoller wires the index and the seen-set store.
func NewPoller(index ports.ItemIndex, seen ports.SeenStore, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.RecencyMode == "" {
		cfg.RecencyMode = RecencyCutoff
	}
	if cfg.Claim == "" {
		cfg.Claim = ClaimOnSelect
	}
	return &Poller{index: index, seen: seen, cfg: cfg, logger: logger}
}

// Claim reports the configured claim policy.
func (p *Poller) Claim() ClaimPolicy {
	return p.cfg.Claim
}

// Poll returns the first candidate that is unseen and recent enough.
// ok is false when the scanned window holds no such item.
func (p *Poller) Poll(ctx context.Context, ref time.Time) (domain.Item, bool, error) {
	seen, err := p.seen.Load(ctx)
	if err != nil {
		return domain.Item{}, false, fmt.Errorf("load seen set: %w", err)
	}

	candidates, err := p.index.Search(ctx, ports.SearchQuery{
		Categories:    p.cfg.Categories,
		MaxCandidates: p.cfg.MaxCandidates,
	})
	if err != nil {
		return domain.Item{}, false, fmt.Errorf("search index: %w", err)
	}

	p.debug("poll candidates", "candidates", len(candidates), "seen", len(seen), "mode", p.cfg.RecencyMode)

	for _, item := range candidates {
		if _, done := seen[item.ID]; done {
			continue
		}
		if !p.withinWindow(item.PublishedAt, ref) {
			continue
		}

		if p.cfg.Claim == ClaimOnSelect {
			if err := p.seen.MarkSeen(ctx, item.ID); err != nil {
				return domain.Item{}, false, fmt.Errorf("claim %s: %w", item.ID, err)
			}
		}
		p.debug("item selected", "id", item.ID, "published", item.PublishedAt.Format(time.DateOnly))
		return item, true, nil
	}

	return domain.Item{}, false, nil
}

func (p *Poller) withinWindow(published, ref time.Time) bool {
	pubDay := dayOf(published.UTC())
	switch p.cfg.RecencyMode {
	case RecencyDay:
		return pubDay.Equal(dayOf(ref))
	default:
		return !pubDay.Before(dayOf(ref.Add(-p.cfg.RecencyWindow)))
	}
}

// dayOf maps t's calendar date in its own location onto UTC midnight, so a
// reference day in the run timezone compares with UTC publication days.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (p *Poller) debug(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
