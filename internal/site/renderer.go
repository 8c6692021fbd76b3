package site

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

const (
	headingMarker = "#"
	ruleLine      = "---"
	// IndexFile is the name of the generated index page.
	IndexFile = "index.html"
	pageExt   = ".html"
)

type nodeKind int

const (
	nodeParagraph nodeKind = iota
	nodeHeading
	nodeSubheading
	nodeRule
	nodeLink
)

// node is one display element of a rendered page.
type node struct {
	Kind nodeKind
	Text string
	Href string
}

func (n node) IsHeading() bool    { return n.Kind == nodeHeading }
func (n node) IsSubheading() bool { return n.Kind == nodeSubheading }
func (n node) IsRule() bool       { return n.Kind == nodeRule }
func (n node) IsLink() bool       { return n.Kind == nodeLink }

// PageRef names a rendered page for the index.
type PageRef struct {
	Name string
	File string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}} | {{.SiteTitle}}</title>
</head>
<body>
<nav><a href="` + IndexFile + `">{{.SiteTitle}}</a></nav>
<h1>{{.Name}}</h1>
{{range .Nodes}}{{if .IsHeading}}<h2>{{.Text}}</h2>
{{else if .IsSubheading}}<h3>{{.Text}}</h3>
{{else if .IsRule}}<hr>
{{else if .IsLink}}<p>{{if .Text}}{{.Text}}<br>
{{end}}<a href="{{.Href}}">{{.Href}}</a></p>
{{else}}<p>{{.Text}}</p>
{{end}}{{end}}</body>
</html>
`))

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.SiteTitle}}</title>
</head>
<body>
<h1>📚 {{.SiteTitle}}</h1>
{{with .Latest}}<p class="latest">🆕 Latest: <a href="{{.File}}">{{.Name}}</a></p>
{{end}}<ul>
{{range .Pages}}<li><a href="{{.File}}">{{.Name}}</a></li>
{{end}}</ul>
</body>
</html>
`))

// Renderer turns Output Files into static HTML.
type Renderer struct {
	siteTitle string
}

// NewRenderer returns a renderer that labels every page with siteTitle.
func NewRenderer(siteTitle string) *Renderer {
	if siteTitle == "" {
		siteTitle = "Paper Summaries"
	}
	return &Renderer{siteTitle: siteTitle}
}

// PageFile maps an Output File stem to its page file name.
func PageFile(stem string) string {
	return stem + pageExt
}

// RenderPage renders the content of one Output File named stem.
func (r *Renderer) RenderPage(stem string, content []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Name      string
		SiteTitle string
		Nodes     []node
	}{Name: stem, SiteTitle: r.siteTitle, Nodes: parseBlocks(string(content))})
	if err != nil {
		return nil, fmt.Errorf("render page %s: %w", stem, err)
	}
	return buf.Bytes(), nil
}

// RenderIndex renders the index for pages, which must already be ordered newest first.
func (r *Renderer) RenderIndex(pages []PageRef) ([]byte, error) {
	data := struct {
		SiteTitle string
		Latest    *PageRef
		Pages     []PageRef
	}{SiteTitle: r.siteTitle, Pages: pages}
	if len(pages) > 0 {
		data.Latest = &pages[0]
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	return buf.Bytes(), nil
}

// parseBlocks splits content into blank-line separated blocks and maps each line
// to a display node. A text line directly followed by a link line shares its paragraph.
func parseBlocks(content string) []node {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var nodes []node
	var block []string
	flush := func() {
		nodes = append(nodes, blockNodes(block)...)
		block = block[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	flush()
	return nodes
}

func blockNodes(lines []string) []node {
	var out []node
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if level, text, ok := heading(line); ok {
			kind := nodeHeading
			if level > 2 {
				kind = nodeSubheading
			}
			out = append(out, node{Kind: kind, Text: text})
			continue
		}
		if line == ruleLine {
			out = append(out, node{Kind: nodeRule})
			continue
		}
		if isLink(line) {
			out = append(out, node{Kind: nodeLink, Href: line})
			continue
		}
		if i+1 < len(lines) && isLink(lines[i+1]) {
			out = append(out, node{Kind: nodeLink, Text: line, Href: lines[i+1]})
			i++
			continue
		}
		out = append(out, node{Kind: nodeParagraph, Text: line})
	}
	return out
}

func heading(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, headingMarker)
	level := len(line) - len(trimmed)
	if level == 0 || !strings.HasPrefix(trimmed, " ") {
		return 0, "", false
	}
	text := strings.TrimSpace(trimmed)
	if text == "" {
		return 0, "", false
	}
	return level, text, true
}

func isLink(line string) bool {
	if !strings.HasPrefix(line, "http://") && !strings.HasPrefix(line, "https://") {
		return false
	}
	if strings.ContainsAny(line, " \t") {
		return false
	}
	u, err := url.Parse(line)
	return err == nil && u.Host != ""
}
