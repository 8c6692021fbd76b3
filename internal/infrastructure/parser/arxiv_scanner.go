package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

const (
	arxivBaseURL = "https://arxiv.org"
	// DefaultListingURL is the root of the per-category listing pages.
	DefaultListingURL = "https://export.arxiv.org/list"
)

var (
	dateExpr    = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)
	subjectExpr = regexp.MustCompile(`\(([a-z\-]+(?:\.[A-Za-z\-]+)?)\)`)
)

// ArxivListingScanner crawls category listing pages and extracts the newest entries.
type ArxivListingScanner struct {
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
	pageSize int
}

// NewArxivListingScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivListingScanner(baseURL string, client *http.Client, interval time.Duration, log *slog.Logger) *ArxivListingScanner {
	if baseURL == "" {
		baseURL = DefaultListingURL
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivListingScanner{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		client:   client,
		limiter:  newLimiter(interval),
		logger:   log,
		pageSize: 200,
	}
}

// Name identifies the strategy inside the registry.
func (a *ArxivListingScanner) Name() string {
	return "arxiv-listing"
}

// Scan walks each category listing until MaxCandidates entries are collected,
// then merges categories newest first.
func (a *ArxivListingScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided")
	}
	limit := req.MaxCandidates
	if limit <= 0 {
		limit = 1
	}

	results := make([]domain.Item, 0, limit)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		collected := 0
		skip := 0
		for collected < limit {
			pageURL, err := buildPageURL(a.baseURL+"/"+cat+"/pastweek", skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat, err)
			}

			if err := a.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("wait for rate limiter: %w", err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat, err)
			}

			pageItems, processed := a.extractItems(doc, cat)
			for _, item := range pageItems {
				if collected >= limit {
					break
				}
				collected++
				if _, ok := seen[item.ID]; ok {
					continue
				}
				seen[item.ID] = struct{}{}
				results = append(results, item)
			}

			if processed < a.pageSize {
				break
			}
			skip += a.pageSize
		}
		a.debug("category scanned", "category", cat, "entries", collected)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].PublishedAt.After(results[j].PublishedAt)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (a *ArxivListingScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivListingScanner) extractItems(doc *goquery.Document, category string) ([]domain.Item, int) {
	var (
		collected []domain.Item
		processed int
	)

	doc.Find("dl > dt").Each(func(i int, dt *goquery.Selection) {
		dd := dt.Next()
		processed++

		item, err := parseEntry(dt, dd, category)
		if err != nil {
			a.debug("skip listing entry", "category", category, "index", i, "error", err)
			return
		}
		collected = append(collected, item)
	})

	return collected, processed
}

func parseEntry(dt, dd *goquery.Selection, category string) (domain.Item, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()

	id := normalizeID(strings.TrimSpace(link.Text()))
	href, _ := link.Attr("href")
	if id == "" {
		id = normalizeID(href)
	}
	if id == "" {
		return domain.Item{}, fmt.Errorf("%w: entry without identifier", domain.ErrMalformedResponse)
	}

	if href == "" {
		href = "/abs/" + id
	}
	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimPrefix(title, "Title:")
	title = collapseSpaces(title)

	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:")
	abstract = collapseSpaces(abstract)

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	match := dateExpr.FindString(dateText)
	if match == "" {
		return domain.Item{}, fmt.Errorf("%w: entry %s has no date", domain.ErrMalformedResponse, id)
	}
	publishedAt, err := time.Parse("2 Jan 2006", match)
	if err != nil {
		return domain.Item{}, fmt.Errorf("%w: entry %s date %q: %v", domain.ErrMalformedResponse, id, match, err)
	}

	categories := parseSubjects(dd.Find(".list-subjects").First().Text())
	if len(categories) == 0 && category != "" {
		categories = []string{category}
	}

	return domain.Item{
		ID:          id,
		Title:       title,
		Abstract:    abstract,
		URL:         href,
		Categories:  categories,
		PublishedAt: publishedAt.UTC(),
	}, nil
}

func parseSubjects(text string) []string {
	matches := subjectExpr.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (a *ArxivListingScanner) debug(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
