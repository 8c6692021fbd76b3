package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

type fakeIndex struct {
	items   []domain.Item
	err     error
	queries []ports.SearchQuery
}

func (f *fakeIndex) Search(_ context.Context, q ports.SearchQuery) ([]domain.Item, error) {
	f.queries = append(f.queries, q)
	return f.items, f.err
}

type memorySeen struct {
	lines   []string
	loadErr error
	markErr error
}

func newMemorySeen(ids ...string) *memorySeen {
	return &memorySeen{lines: append([]string(nil), ids...)}
}

func (m *memorySeen) Load(context.Context) (map[string]struct{}, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string]struct{}, len(m.lines))
	for _, id := range m.lines {
		out[id] = struct{}{}
	}
	return out, nil
}

func (m *memorySeen) MarkSeen(_ context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.lines = append(m.lines, id)
	return nil
}

func (m *memorySeen) set() []string {
	uniq := map[string]struct{}{}
	for _, id := range m.lines {
		uniq[id] = struct{}{}
	}
	out := make([]string, 0, len(uniq))
	for id := range uniq {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type fakeCompletion struct {
	reply    func(req ports.CompletionRequest) (string, error)
	requests []ports.CompletionRequest
}

func (f *fakeCompletion) Complete(_ context.Context, req ports.CompletionRequest) (string, error) {
	f.requests = append(f.requests, req)
	return f.reply(req)
}

func constantReply(text string) *fakeCompletion {
	return &fakeCompletion{reply: func(ports.CompletionRequest) (string, error) { return text, nil }}
}

type fakeWriter struct {
	records []domain.SummaryRecord
	days    []time.Time
	err     error
}

func (f *fakeWriter) Append(_ context.Context, day time.Time, rec domain.SummaryRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, rec)
	f.days = append(f.days, day)
	return "outputs/" + day.Format(time.DateOnly) + ".md", nil
}

type fakeNotifier struct {
	messages []string
	err      error
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.messages = append(f.messages, digest)
	return f.err
}

var errBoom = errors.New("boom")
