package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

const (
	// DefaultAPIEndpoint is the public arXiv Atom query endpoint.
	DefaultAPIEndpoint = "https://export.arxiv.org/api/query"
	userAgent          = "PaperDigest/1.0"
)

// ArxivAPIScanner queries the arXiv Atom API sorted by submission date.
type ArxivAPIScanner struct {
	endpoint string
	client   *http.Client
	feeds    *gofeed.Parser
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewArxivAPIScanner wires an HTTP client; interval paces consecutive requests.
func NewArxivAPIScanner(endpoint string, client *http.Client, interval time.Duration, log *slog.Logger) *ArxivAPIScanner {
	if endpoint == "" {
		endpoint = DefaultAPIEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ArxivAPIScanner{
		endpoint: endpoint,
		client:   client,
		feeds:    gofeed.NewParser(),
		limiter:  newLimiter(interval),
		logger:   log,
	}
}

// Name identifies the strategy inside the registry.
func (a *ArxivAPIScanner) Name() string {
	return "arxiv-api"
}

// Scan runs one search and maps every Atom entry to an item, preserving feed order.
func (a *ArxivAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	filter := req.Filter()
	if filter == "" {
		return nil, fmt.Errorf("no categories provided")
	}

	queryURL, err := buildQueryURL(a.endpoint, filter, req.MaxCandidates)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	feed, err := a.fetchFeed(ctx, queryURL)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(feed.Items))
	for i, entry := range feed.Items {
		item, err := toItem(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		items = append(items, item)
	}

	if a.logger != nil {
		a.logger.Debug("arxiv api scanned", "filter", filter, "entries", len(items))
	}
	return items, nil
}

func (a *ArxivAPIScanner) fetchFeed(ctx context.Context, queryURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	feed, err := a.feeds.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w: %v", domain.ErrMalformedResponse, err)
	}
	return feed, nil
}

func toItem(entry *gofeed.Item) (domain.Item, error) {
	if entry == nil {
		return domain.Item{}, fmt.Errorf("%w: empty entry", domain.ErrMalformedResponse)
	}

	// arXiv reports query errors as a single entry pointing at its error docs.
	if strings.Contains(entry.GUID, "/api/errors") {
		return domain.Item{}, fmt.Errorf("arxiv api error: %s", collapseSpaces(entry.Description))
	}

	id := normalizeID(entry.GUID)
	if id == "" {
		return domain.Item{}, fmt.Errorf("%w: missing id", domain.ErrMalformedResponse)
	}
	if entry.PublishedParsed == nil {
		return domain.Item{}, fmt.Errorf("%w: entry %s has no published date", domain.ErrMalformedResponse, id)
	}

	link := entry.Link
	if link == "" {
		link = arxivBaseURL + "/abs/" + id
	}

	return domain.Item{
		ID:          id,
		Title:       collapseSpaces(entry.Title),
		Abstract:    collapseSpaces(entry.Description),
		URL:         link,
		Categories:  append([]string(nil), entry.Categories...),
		PublishedAt: entry.PublishedParsed.UTC(),
	}, nil
}

func buildQueryURL(endpoint, filter string, maxResults int) (string, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid api endpoint %s: %w", endpoint, err)
	}
	if maxResults <= 0 {
		maxResults = 1
	}

	query := parsed.Query()
	query.Set("search_query", filter)
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(maxResults))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// normalizeID reduces "http://arxiv.org/abs/2401.00001v2" or "arXiv:2401.00001" to "2401.00001".
func normalizeID(raw string) string {
	id := strings.TrimSpace(raw)
	if i := strings.Index(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	id = strings.TrimPrefix(id, "arXiv:")
	id = strings.TrimSuffix(id, "/")
	if i := strings.LastIndex(id, "v"); i > 0 && i < len(id)-1 {
		if _, err := strconv.Atoi(id[i+1:]); err == nil {
			id = id[:i]
		}
	}
	return id
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
