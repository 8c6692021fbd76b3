package scanner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"PaperDigest/internal/domain"
)

// Request carries all parameters required to execute a scan.
type Request struct {
	Categories    []string
	MaxCandidates int
}

// Filter renders the categories as an OR-joined arXiv search expression.
func (r Request) Filter() string {
	parts := make([]string, 0, len(r.Categories))
	for _, cat := range r.Categories {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		parts = append(parts, "cat:"+cat)
	}
	return strings.Join(parts, " OR ")
}

// Scanner captures a single index strategy (Atom API, listing pages, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Item, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered (known: %s)", name, strings.Join(r.Names(), ", "))
}

// Names lists registered scanners in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
