package ports

import (
	"context"
	"time"

	"PaperDigest/internal/domain"
)

// SearchQuery describes one index lookup.
type SearchQuery struct {
	Categories    []string
	MaxCandidates int
}

// ItemIndex pulls candidate papers from the upstream index, newest submission first.
type ItemIndex interface {
	Search(ctx context.Context, query SearchQuery) ([]domain.Item, error)
}

// SeenStore keeps identifiers of items that were already processed.
type SeenStore interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	MarkSeen(ctx context.Context, id string) error
}

// CompletionRequest is a single chat completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
}

// CompletionClient talks to an LLM text-completion endpoint.
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// RecordWriter appends summary records to the per-day output file.
type RecordWriter interface {
	Append(ctx context.Context, day time.Time, record domain.SummaryRecord) (string, error)
}

// Notifier streams freshly written records to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
