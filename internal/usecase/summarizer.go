package usecase

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/textclip"
)

const (
	// SummaryUnavailable replaces an empty model answer.
	SummaryUnavailable = "(summary unavailable)"
	// MaxTags caps GenerateTags.
	MaxTags   = 3
	tagMarker = "#"
)

var (
	lineBreaks = regexp.MustCompile(`[ \t]*[\r\n]+[ \t]*`)
	// markupTag matches an HTML tag the model may emit at the start of the input.
	markupTag = regexp.MustCompile(`(?i)^</?(?:a|b|i|u|p|br|hr|em|strong|code|pre|span|div|ul|ol|li|h[1-6]|sup|sub|blockquote|script|style)(?:\s+[a-zA-Z:-]+="[^"<>]*")*\s*/?>`)
)

// SummarizerConfig fixes the prompt register, temperature and per-language budgets.
type SummarizerConfig struct {
	SystemPrompt string
	Temperature  float64
	Budgets      map[domain.Language]int
	Clippers     map[domain.Language]textclip.Clipper
}

// Summarizer turns abstracts into length-bounded summaries and hashtags.
type Summarizer struct {
	client    ports.CompletionClient
	cfg       SummarizerConfig
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewSummarizer wires the completion client.
func NewSummarizer(client ports.CompletionClient, cfg SummarizerConfig, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		client:    client,
		cfg:       cfg,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Summarize asks the model for a summary of text in lang and enforces the language budget.
// Transport errors are returned; malformed or empty answers become SummaryUnavailable.
func (s *Summarizer) Summarize(ctx context.Context, text string, lang domain.Language) (string, error) {
	budget, ok := s.cfg.Budgets[lang]
	if !ok || budget <= 0 {
		return "", fmt.Errorf("no character budget for language %s", lang)
	}

	raw, err := s.client.Complete(ctx, ports.CompletionRequest{
		System:      s.cfg.SystemPrompt,
		Prompt:      summaryPrompt(lang, budget, text),
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedResponse) {
			return "", fmt.Errorf("summarize %s: %w", lang, err)
		}
		s.warn("malformed summary response", "language", lang, "error", err)
		raw = ""
	}

	summary := s.clean(raw)
	if summary == "" {
		s.warn("empty summary, using placeholder", "language", lang)
		summary = SummaryUnavailable
	}

	return s.clip(summary, lang, budget), nil
}

// GenerateTags asks for up to three hashtags. Anything that is not a hashtag is dropped.
func (s *Summarizer) GenerateTags(ctx context.Context, title, summary string) ([]string, error) {
	raw, err := s.client.Complete(ctx, ports.CompletionRequest{
		System:      s.cfg.SystemPrompt,
		Prompt:      tagsPrompt(title, summary),
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedResponse) {
			return nil, fmt.Errorf("generate tags: %w", err)
		}
		s.warn("malformed tags response", "error", err)
		return nil, nil
	}

	return ParseTags(raw), nil
}

// ParseTags keeps at most MaxTags distinct tokens starting with '#'.
func ParseTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '、' || r == ';'
	})

	tags := make([]string, 0, MaxTags)
	seen := map[string]struct{}{}
	for _, f := range fields {
		f = strings.TrimRight(f, ".。")
		if !strings.HasPrefix(f, tagMarker) || utf8.RuneCountInString(f) < 2 {
			continue
		}
		if strings.HasPrefix(f[len(tagMarker):], tagMarker) {
			continue
		}
		key := strings.ToLower(f)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tags = append(tags, f)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

func (s *Summarizer) clean(raw string) string {
	text := html.UnescapeString(s.sanitizer.Sanitize(escapeStrayBrackets(raw)))
	text = strings.TrimSpace(text)
	text = lineBreaks.ReplaceAllString(text, " ")
	return norm.NFC.String(text)
}

func (s *Summarizer) clip(text string, lang domain.Language, budget int) string {
	var clipper textclip.Clipper = textclip.Runes{}
	if c, ok := s.cfg.Clippers[lang]; ok && c != nil {
		clipper = c
	}
	return strings.TrimRightFunc(clipper.Clip(text, budget), unicode.IsSpace)
}

// escapeStrayBrackets keeps '<' that does not open a known tag, so prose such as
// "n<m and m>k" survives the sanitizer.
func escapeStrayBrackets(raw string) string {
	if !strings.Contains(raw, "<") {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '<' && markupTag.FindStringIndex(raw[i:]) == nil {
			b.WriteString("&lt;")
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

func summaryPrompt(lang domain.Language, budget int, text string) string {
	switch lang {
	case domain.LanguageEnglish:
		return fmt.Sprintf("Summarize the following abstract in English in at most %d characters. "+
			"Use plain prose for a technical reader, no markdown, no line breaks.\n\n%s", budget, text)
	case domain.LanguageJapanese:
		return fmt.Sprintf("次の英文要約を、日本語で%d文字以内に要約してください。"+
			"専門家向けの簡潔な文体で、マークダウンや改行は使わないでください。\n\n%s", budget, text)
	default:
		return fmt.Sprintf("Summarize the following abstract in the language with code %q in at most %d characters. "+
			"Use plain prose, no markdown, no line breaks.\n\n%s", string(lang), budget, text)
	}
}

func tagsPrompt(title, summary string) string {
	return fmt.Sprintf("Suggest up to %d topic hashtags for the paper below. "+
		"Reply with the hashtags only, separated by spaces, e.g. #LLM #Robotics #Optimization.\n\n"+
		"Title: %s\nSummary: %s", MaxTags, title, summary)
}

func (s *Summarizer) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
