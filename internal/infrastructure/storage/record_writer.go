package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

const (
	// DayLayout names output files and record dates.
	DayLayout = "2006-01-02"
	// BlockSeparator closes every record block.
	BlockSeparator = "---"
)

var languageMarks = map[domain.Language]string{
	domain.LanguageEnglish:  "🇬🇧",
	domain.LanguageJapanese: "🇯🇵",
}

// RecordWriter appends summary blocks to one Markdown file per day.
// The first write to a file during the writer's lifetime truncates it.
type RecordWriter struct {
	dir     string
	ext     string
	touched map[string]bool
}

var _ ports.RecordWriter = (*RecordWriter)(nil)

// NewRecordWriter writes into dir using ext (".md" when empty).
func NewRecordWriter(dir, ext string) *RecordWriter {
	if ext == "" {
		ext = ".md"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &RecordWriter{dir: dir, ext: ext, touched: map[string]bool{}}
}

// PathFor returns the output file used for day.
func (w *RecordWriter) PathFor(day time.Time) string {
	return filepath.Join(w.dir, day.Format(DayLayout)+w.ext)
}

// Append renders record and writes it to the file for day.
func (w *RecordWriter) Append(ctx context.Context, day time.Time, record domain.SummaryRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := w.PathFor(day)
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !w.touched[path] {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open output %s: %w", path, err)
	}
	w.touched[path] = true

	if _, err := f.WriteString(FormatBlock(record)); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write output %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close output %s: %w", path, err)
	}

	return path, nil
}

// FormatBlock renders one record. Inputs are interpolated as is.
func FormatBlock(record domain.SummaryRecord) string {
	item := record.Item

	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%s)\n\n", item.Title, item.PublishedAt.UTC().Format(DayLayout))

	for _, s := range record.Summaries {
		mark, ok := languageMarks[s.Language]
		if !ok {
			mark = "[" + string(s.Language) + "]"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, s.Text)
	}

	if len(record.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(record.Tags, " "))
	}

	if len(item.Categories) > 0 {
		cats := make([]string, 0, len(item.Categories))
		for _, c := range item.Categories {
			cats = append(cats, "#"+c)
		}
		fmt.Fprintf(&b, "Categories: %s\n", strings.Join(cats, " "))
	}

	fmt.Fprintf(&b, "%s\n\n%s\n\n", item.URL, BlockSeparator)
	return b.String()
}
