package parser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
)

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>ArXiv Query</title>
  <id>http://arxiv.org/api/query</id>
  <updated>2024-01-02T00:00:00Z</updated>
  <entry>
    <id>http://arxiv.org/abs/2401.00002v1</id>
    <published>2024-01-02T10:00:00Z</published>
    <updated>2024-01-02T10:00:00Z</updated>
    <title>Second
      Paper</title>
    <summary>  An abstract
      spanning lines.  </summary>
    <link href="http://arxiv.org/abs/2401.00002v1" rel="alternate" type="text/html"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.AI" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00001v3</id>
    <published>2024-01-01T09:00:00Z</published>
    <updated>2024-01-01T09:00:00Z</updated>
    <title>First Paper</title>
    <summary>Older abstract.</summary>
    <link href="http://arxiv.org/abs/2401.00001v3" rel="alternate" type="text/html"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

func TestArxivAPIScannerScan(t *testing.T) {
	t.Parallel()

	var query map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{
			"search_query": q.Get("search_query"),
			"max_results":  q.Get("max_results"),
			"sortBy":       q.Get("sortBy"),
			"sortOrder":    q.Get("sortOrder"),
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer server.Close()

	sc := NewArxivAPIScanner(server.URL, server.Client(), 0, slog.Default())
	items, err := sc.Scan(context.Background(), scanner.Request{
		Categories:    []string{"cs.LG", "cs.AI"},
		MaxCandidates: 20,
	})
	require.NoError(t, err)

	assert.Equal(t, "cat:cs.LG OR cat:cs.AI", query["search_query"])
	assert.Equal(t, "20", query["max_results"])
	assert.Equal(t, "submittedDate", query["sortBy"])
	assert.Equal(t, "descending", query["sortOrder"])

	require.Len(t, items, 2)
	assert.Equal(t, "2401.00002", items[0].ID)
	assert.Equal(t, "Second Paper", items[0].Title)
	assert.Equal(t, "An abstract spanning lines.", items[0].Abstract)
	assert.Equal(t, "http://arxiv.org/abs/2401.00002v1", items[0].URL)
	assert.Equal(t, []string{"cs.LG", "cs.AI"}, items[0].Categories)
	assert.True(t, items[0].PublishedAt.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2401.00001", items[1].ID)
}

func TestArxivAPIScannerRejectsEntryWithoutDate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry><id>http://arxiv.org/abs/2401.00009v1</id><title>No date</title></entry>
</feed>`))
	}))
	defer server.Close()

	sc := NewArxivAPIScanner(server.URL, server.Client(), 0, nil)
	_, err := sc.Scan(context.Background(), scanner.Request{Categories: []string{"cs.LG"}, MaxCandidates: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMalformedResponse))
}

func TestArxivAPIScannerStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sc := NewArxivAPIScanner(server.URL, server.Client(), 0, nil)
	_, err := sc.Scan(context.Background(), scanner.Request{Categories: []string{"cs.LG"}, MaxCandidates: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestArxivAPIScannerRequiresCategories(t *testing.T) {
	t.Parallel()

	sc := NewArxivAPIScanner("http://127.0.0.1:0", nil, 0, nil)
	_, err := sc.Scan(context.Background(), scanner.Request{MaxCandidates: 1})
	require.Error(t, err)
}

func TestNormalizeID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://arxiv.org/abs/2401.00001v1", want: "2401.00001"},
		{in: "https://arxiv.org/abs/2401.00001", want: "2401.00001"},
		{in: "arXiv:1234.56789", want: "1234.56789"},
		{in: "http://arxiv.org/abs/hep-th/9901001v2", want: "hep-th/9901001"},
		{in: "solv-int/9901001", want: "solv-int/9901001"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeID(tc.in), tc.in)
	}
}

func TestStrategySourceSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(atomFeed))
	}))
	defer server.Close()

	reg := scanner.NewRegistry()
	reg.Register(NewArxivAPIScanner(server.URL, server.Client(), 0, nil))

	src := NewStrategySource(reg, "arxiv-api", nil)
	items, err := src.Search(context.Background(), ports.SearchQuery{Categories: []string{"cs.LG"}, MaxCandidates: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	missing := NewStrategySource(reg, "arxiv-listing", nil)
	_, err = missing.Search(context.Background(), ports.SearchQuery{Categories: []string{"cs.LG"}, MaxCandidates: 2})
	require.Error(t, err)
}
