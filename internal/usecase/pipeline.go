package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Poller     *Poller
	Summarizer *Summarizer
	Writer     ports.RecordWriter
	Seen       ports.SeenStore
	Notifier   ports.Notifier
	Languages  []domain.Language
	Tags       bool
	Location   *time.Location
	Logger     *slog.Logger
}

// Pipeline implements the poll, summarize, write workflow for a single run.
type Pipeline struct {
	poller     *Poller
	summarizer *Summarizer
	writer     ports.RecordWriter
	seen       ports.SeenStore
	notifier   ports.Notifier
	languages  []domain.Language
	tags       bool
	location   *time.Location
	logger     *slog.Logger
}

// Outcome reports what one run produced.
type Outcome struct {
	Found bool
	Item  domain.Item
	Path  string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Pipeline{
		poller:     deps.Poller,
		summarizer: deps.Summarizer,
		writer:     deps.Writer,
		seen:       deps.Seen,
		notifier:   deps.Notifier,
		languages:  deps.Languages,
		tags:       deps.Tags,
		location:   loc,
		logger:     deps.Logger,
	}
}

// Run processes at most one new item; ref is the reference time for the recency window
// and names the output file.
func (p *Pipeline) Run(ctx context.Context, ref time.Time) (Outcome, error) {
	if p.poller == nil || p.summarizer == nil || p.writer == nil {
		return Outcome{}, fmt.Errorf("pipeline is not fully wired")
	}
	ref = ref.In(p.location)

	item, ok, err := p.poller.Poll(ctx, ref)
	if err != nil {
		return Outcome{}, fmt.Errorf("poll: %w", err)
	}
	if !ok {
		p.info("no new item in scanned window", "day", ref.Format(time.DateOnly))
		return Outcome{}, nil
	}

	record := domain.SummaryRecord{Item: item}
	for _, lang := range p.languages {
		text, err := p.summarizer.Summarize(ctx, item.Abstract, lang)
		if err != nil {
			return Outcome{}, fmt.Errorf("summarize item %s: %w", item.ID, err)
		}
		record.Summaries = append(record.Summaries, domain.Summary{Language: lang, Text: text})
	}

	if p.tags && len(record.Summaries) > 0 {
		tags, err := p.summarizer.GenerateTags(ctx, item.Title, record.Summaries[0].Text)
		if err != nil {
			return Outcome{}, fmt.Errorf("tag item %s: %w", item.ID, err)
		}
		record.Tags = tags
	}

	path, err := p.writer.Append(ctx, ref, record)
	if err != nil {
		return Outcome{}, fmt.Errorf("write item %s: %w", item.ID, err)
	}

	if p.poller.Claim() == ClaimOnWrite {
		if p.seen == nil {
			return Outcome{}, fmt.Errorf("claim item %s: seen store is not configured", item.ID)
		}
		if err := p.seen.MarkSeen(ctx, item.ID); err != nil {
			return Outcome{}, fmt.Errorf("claim item %s: %w", item.ID, err)
		}
	}

	p.info("record written", "id", item.ID, "path", path, "tags", len(record.Tags))

	outcome := Outcome{Found: true, Item: item, Path: path}
	if p.notifier == nil {
		return outcome, nil
	}

	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(record)); err != nil {
		return outcome, fmt.Errorf("notify item %s: %w", item.ID, err)
	}
	return outcome, nil
}

func buildDigestMessage(record domain.SummaryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* (%s)\n", record.Item.Title, record.Item.PublishedAt.UTC().Format(time.DateOnly))
	for _, s := range record.Summaries {
		fmt.Fprintf(&b, "\n[%s] %s\n", s.Language, s.Text)
	}
	if len(record.Tags) > 0 {
		fmt.Fprintf(&b, "\n%s\n", strings.Join(record.Tags, " "))
	}
	fmt.Fprintf(&b, "\n%s", record.Item.URL)
	return b.String()
}

func (p *Pipeline) info(msg string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}
