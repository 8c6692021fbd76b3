package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
)

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.00002v1</id>
    <published>2024-01-02T10:00:00Z</published>
    <title>Novel Method</title>
    <summary>We propose a novel method.</summary>
    <link href="http://arxiv.org/abs/2401.00002v1" rel="alternate" type="text/html"/>
    <category term="cs.LG"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <published>2024-01-01T10:00:00Z</published>
    <title>Older Method</title>
    <summary>An older method.</summary>
    <link href="http://arxiv.org/abs/2401.00001v1" rel="alternate" type="text/html"/>
    <category term="cs.AI"/>
  </entry>
</feed>`

func completionServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		reply := "A short English summary."
		switch {
		case strings.Contains(string(raw), "hashtags"):
			reply = "#ML #Methods"
		case strings.Contains(string(raw), "日本語"):
			reply = "新しい手法の要約。"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
}

func testConfig(t *testing.T, index, completion string) config.Config {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PAPERDIGEST_CONFIG", "")

	cfg, err := config.Load("")
	require.NoError(t, err)

	root := t.TempDir()
	cfg.Source.APIEndpoint = index
	cfg.Source.RequestInterval = 0
	cfg.Source.Categories = []string{"cs.LG", "cs.AI"}
	cfg.Source.RecencyWindow = 7 * 24 * time.Hour
	cfg.Seen.Path = filepath.Join(root, "state", "seen.txt")
	cfg.ChatGPT.Endpoint = completion
	cfg.ChatGPT.APIKey = "test-key"
	cfg.Output.Dir = filepath.Join(root, "outputs")
	cfg.Site.Dir = filepath.Join(root, "docs")
	return cfg
}

func TestApplicationFetchThenBuild(t *testing.T) {
	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer index.Close()
	completion := completionServer(t)
	defer completion.Close()

	cfg := testConfig(t, index.URL, completion.URL)
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer a.Close()

	day := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)

	out, err := a.Fetch(context.Background(), day)
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, "2401.00002", out.Item.ID)
	assert.Equal(t, filepath.Join(cfg.Output.Dir, "2024-01-03.md"), out.Path)

	out, err = a.Fetch(context.Background(), day)
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, "2401.00001", out.Item.ID)

	out, err = a.Fetch(context.Background(), day)
	require.NoError(t, err)
	assert.False(t, out.Found)

	content, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "2024-01-03.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "## Novel Method (2024-01-02)")
	assert.Contains(t, string(content), "🇬🇧 A short English summary.")
	assert.Contains(t, string(content), "🇯🇵 新しい手法の要約。")
	assert.Contains(t, string(content), "#ML #Methods")

	seen, err := os.ReadFile(cfg.Seen.Path)
	require.NoError(t, err)
	assert.Equal(t, "2401.00002\n2401.00001\n", string(seen))

	res, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, "2024-01-03", res.Latest)
	assert.FileExists(t, filepath.Join(cfg.Site.Dir, "2024-01-03.html"))
	assert.FileExists(t, filepath.Join(cfg.Site.Dir, "index.html"))
}

func TestApplicationRejectsUnknownScanner(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0", "http://127.0.0.1:0")
	cfg.Source.Scanner = "semantic-scholar"

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arxiv-api")
}

func TestApplicationSQLiteSeenStore(t *testing.T) {
	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer index.Close()
	completion := completionServer(t)
	defer completion.Close()

	cfg := testConfig(t, index.URL, completion.URL)
	cfg.Seen.Backend = config.SeenBackendSQLite
	cfg.Seen.Path = filepath.Join(t.TempDir(), "db", "seen.db")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	out, err := a.Fetch(context.Background(), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2401.00002", out.Item.ID)
	require.NoError(t, a.Close())

	a, err = New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	out, err = a.Fetch(context.Background(), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2401.00001", out.Item.ID)
}

func TestBuildWithoutOutputs(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0", "http://127.0.0.1:0")
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Pages)
	assert.NoDirExists(t, cfg.Site.Dir)
}

func TestFetchWithoutAPIKeyClaimsNothing(t *testing.T) {
	var searches int
	index := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searches++
		_, _ = w.Write([]byte(feed))
	}))
	defer index.Close()
	completion := completionServer(t)
	defer completion.Close()

	cfg := testConfig(t, index.URL, completion.URL)
	cfg.ChatGPT.APIKey = ""

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Fetch(context.Background(), time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Contains(t, err.Error(), "chatgpt.apiKey")
	assert.Zero(t, searches)
	assert.NoFileExists(t, cfg.Seen.Path)

	err = a.Watch(context.Background(), time.Hour)
	require.ErrorIs(t, err, domain.ErrNotConfigured)

	res, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Pages)
}
