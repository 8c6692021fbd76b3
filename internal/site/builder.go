package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Result summarises one Build.
type Result struct {
	Pages  int
	Index  string
	Latest string
}

// Builder renders every Output File in outputDir into siteDir.
type Builder struct {
	outputDir string
	siteDir   string
	ext       string
	renderer  *Renderer
	logger    *slog.Logger
}

// NewBuilder wires directories and the renderer. ext selects Output Files (".md" when empty).
func NewBuilder(outputDir, siteDir, ext string, renderer *Renderer, logger *slog.Logger) *Builder {
	if ext == "" {
		ext = ".md"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if renderer == nil {
		renderer = NewRenderer("")
	}
	return &Builder{outputDir: outputDir, siteDir: siteDir, ext: ext, renderer: renderer, logger: logger}
}

type renderedPage struct {
	ref  PageRef
	body []byte
}

// Build renders all pages in memory first, then writes them followed by the index.
// With no Output Files nothing is written and Result.Pages is zero.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	names, err := b.outputFiles()
	if err != nil {
		return Result{}, err
	}
	if len(names) == 0 {
		b.info("nothing to render", "dir", b.outputDir)
		return Result{}, nil
	}

	pages := make([]renderedPage, 0, len(names))
	refs := make([]PageRef, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		content, err := os.ReadFile(filepath.Join(b.outputDir, name))
		if err != nil {
			return Result{}, fmt.Errorf("read output file %s: %w", name, err)
		}
		stem := strings.TrimSuffix(name, b.ext)
		body, err := b.renderer.RenderPage(stem, content)
		if err != nil {
			return Result{}, err
		}
		ref := PageRef{Name: stem, File: PageFile(stem)}
		pages = append(pages, renderedPage{ref: ref, body: body})
		refs = append(refs, ref)
	}

	index, err := b.renderer.RenderIndex(refs)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(b.siteDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create site dir: %w", err)
	}
	for _, p := range pages {
		if err := os.WriteFile(filepath.Join(b.siteDir, p.ref.File), p.body, 0o644); err != nil {
			return Result{}, fmt.Errorf("write page %s: %w", p.ref.File, err)
		}
	}
	indexPath := filepath.Join(b.siteDir, IndexFile)
	if err := os.WriteFile(indexPath, index, 0o644); err != nil {
		return Result{}, fmt.Errorf("write index: %w", err)
	}

	b.info("site rendered", "pages", len(pages), "index", indexPath)
	return Result{Pages: len(pages), Index: indexPath, Latest: refs[0].Name}, nil
}

// outputFiles lists Output File names, newest (lexicographically greatest) first.
func (b *Builder) outputFiles() ([]string, error) {
	entries, err := os.ReadDir(b.outputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list output dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), b.ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (b *Builder) info(msg string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Info(msg, args...)
	}
}
