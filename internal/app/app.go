package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/infrastructure/llm"
	"PaperDigest/internal/infrastructure/parser"
	"PaperDigest/internal/infrastructure/scheduler"
	"PaperDigest/internal/infrastructure/storage"
	"PaperDigest/internal/infrastructure/telegram"
	"PaperDigest/internal/logging"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
	"PaperDigest/internal/site"
	"PaperDigest/internal/textclip"
	"PaperDigest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	builder  *site.Builder
	closers  []func() error
	fetchErr error
}

// New builds the runnable application: index scanners, seen-set, completion client,
// record writer, site builder and the optional Telegram notifier.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}
	if missing := cfg.ChatGPT.Missing(); len(missing) > 0 {
		a.fetchErr = fmt.Errorf("fetch needs chatgpt.%s: %w", strings.Join(missing, ", chatgpt."), domain.ErrNotConfigured)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivAPIScanner(cfg.Source.APIEndpoint, nil, cfg.Source.RequestInterval,
		baseLogger.With("component", "scanner.arxiv-api")))
	registry.Register(parser.NewArxivListingScanner(cfg.Source.ListingURL, nil, cfg.Source.RequestInterval,
		baseLogger.With("component", "scanner.arxiv-listing")))
	if _, err := registry.Resolve(cfg.Source.Scanner); err != nil {
		return nil, err
	}
	source := parser.NewStrategySource(registry, cfg.Source.Scanner, baseLogger.With("component", "source"))

	seen, err := a.openSeenStore(ctx)
	if err != nil {
		return nil, err
	}

	poller := usecase.NewPoller(source, seen, usecase.PollerConfig{
		Categories:    cfg.Source.Categories,
		RecencyWindow: cfg.Source.RecencyWindow,
		RecencyMode:   usecase.RecencyMode(cfg.Source.RecencyMode),
		MaxCandidates: cfg.Source.MaxCandidates,
		Claim:         usecase.ClaimPolicy(cfg.Source.ClaimPolicy),
	}, baseLogger.With("component", "poller"))

	summarizer, languages, err := newSummarizer(cfg, baseLogger.With("component", "summarizer"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram, "", nil, baseLogger.With("component", "telegram"))
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Poller:     poller,
		Summarizer: summarizer,
		Writer:     storage.NewRecordWriter(cfg.Output.Dir, cfg.Output.Extension),
		Seen:       seen,
		Notifier:   notifier,
		Languages:  languages,
		Tags:       cfg.Summaries.Tags,
		Location:   cfg.Scheduler.Location(),
		Logger:     baseLogger.With("component", "pipeline"),
	})
	a.builder = site.NewBuilder(cfg.Output.Dir, cfg.Site.Dir, cfg.Output.Extension,
		site.NewRenderer(cfg.Site.Title), baseLogger.With("component", "site"))

	return a, nil
}

func (a *Application) openSeenStore(ctx context.Context) (ports.SeenStore, error) {
	if dir := filepath.Dir(a.cfg.Seen.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create seen-set dir: %w", err)
		}
	}

	switch a.cfg.Seen.Backend {
	case config.SeenBackendSQLite:
		store, err := storage.OpenSQLiteSeenStore(ctx, a.cfg.Seen.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return storage.NewFileSeenStore(a.cfg.Seen.Path), nil
	}
}

func newSummarizer(cfg config.Config, logger *slog.Logger) (*usecase.Summarizer, []domain.Language, error) {
	languages := make([]domain.Language, 0, len(cfg.Summaries.Languages))
	budgets := make(map[domain.Language]int, len(cfg.Summaries.Budgets))
	clippers := map[domain.Language]textclip.Clipper{}

	for _, l := range cfg.Summaries.Languages {
		lang := domain.Language(l)
		languages = append(languages, lang)
		budgets[lang] = cfg.Summaries.Budgets[l]

		if lang == domain.LanguageJapanese {
			m, err := textclip.NewMorphemes()
			if err != nil {
				return nil, nil, fmt.Errorf("load japanese dictionary: %w", err)
			}
			clippers[lang] = m
		}
	}

	summarizer := usecase.NewSummarizer(llm.NewChatGPTClient(cfg.ChatGPT), usecase.SummarizerConfig{
		SystemPrompt: cfg.ChatGPT.SystemPrompt,
		Temperature:  cfg.ChatGPT.Temperature,
		Budgets:      budgets,
		Clippers:     clippers,
	}, logger)
	return summarizer, languages, nil
}

// Fetch runs the pipeline once for day: at most one new paper is summarised and
// appended to that day's Output File. Nothing is claimed when the completion
// client is not configured.
func (a *Application) Fetch(ctx context.Context, day time.Time) (usecase.Outcome, error) {
	if a.fetchErr != nil {
		return usecase.Outcome{}, a.fetchErr
	}
	log := a.logger.With("run_id", uuid.NewString())
	log.Info("fetch started", "day", day.In(a.cfg.Scheduler.Location()).Format(time.DateOnly),
		"categories", a.cfg.Source.Categories, "scanner", a.cfg.Source.Scanner)

	out, err := a.pipeline.Run(ctx, day)
	if err != nil {
		return out, err
	}
	log.Info("fetch finished", "found", out.Found, "path", out.Path)
	return out, nil
}

// Build renders every Output File into the static site.
func (a *Application) Build(ctx context.Context) (site.Result, error) {
	return a.builder.Build(ctx)
}

// RunOnce fetches for trigger and rebuilds the site.
func (a *Application) RunOnce(ctx context.Context, trigger time.Time) error {
	out, err := a.Fetch(ctx, trigger)
	if err != nil {
		return err
	}
	if !out.Found {
		return nil
	}
	res, err := a.Build(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("site index updated", "pages", res.Pages, "index", res.Index)
	return nil
}

// Watch repeats RunOnce every interval until ctx is cancelled.
func (a *Application) Watch(ctx context.Context, interval time.Duration) error {
	if a.fetchErr != nil {
		return a.fetchErr
	}
	if interval <= 0 {
		interval = a.cfg.Scheduler.Interval
	}

	sched := usecase.NewScheduler(scheduler.NewTickerScheduler(interval), a.RunOnce,
		a.logger.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("watching", "interval", interval.String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close releases storage handles.
func (a *Application) Close() error {
	var firstErr error
	for _, c := range a.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
