package extractor

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// HTMLExtractor reads papers saved as HTML, such as arXiv HTML renders.
// Block elements end lines so headings and captions stand alone.
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTML extractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Name identifies the extractor.
func (e *HTMLExtractor) Name() string {
	return "html"
}

// Supports reports whether path has an HTML extension.
func (e *HTMLExtractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	default:
		return false
	}
}

// Extract reads the file. The <title> element becomes the title.
func (e *HTMLExtractor) Extract(ctx context.Context, path string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	content := string(data)
	text := StripHTML(content)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s has no text", domain.ErrUnsupportedType, path)
	}
	return &domain.RawDocument{
		URI:   path,
		Title: htmlTitle(content),
		Pages: []domain.Page{{Number: 1, Text: text}},
	}, nil
}

var (
	htmlTitleTag   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	htmlDropBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<head(\s[^>]*)?>.*?</head>`),
		regexp.MustCompile(`(?is)<title[^>]*>.*?</title>`),
		regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`),
		regexp.MustCompile(`(?is)<math[^>]*>.*?</math>`),
		regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
	}
	htmlBlockOpen  = regexp.MustCompile(`(?i)<(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|figure|figcaption|caption)[^>]*>`)
	htmlBlockClose = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr|blockquote|pre|table|section|article|figure|figcaption|caption)>`)
	htmlBreak      = regexp.MustCompile(`(?i)<(br|hr)\s*/?>`)
	htmlTag        = regexp.MustCompile(`<[^>]+>`)
	htmlSpaces     = regexp.MustCompile(`[ \t\r]+`)
)

// StripHTML removes markup and returns one line per block, with a blank
// line between blocks so paragraphs stay separate.
func StripHTML(content string) string {
	for _, re := range htmlDropBlocks {
		content = re.ReplaceAllString(content, "")
	}
	content = htmlBlockOpen.ReplaceAllString(content, "\n")
	content = htmlBlockClose.ReplaceAllString(content, "\n")
	content = htmlBreak.ReplaceAllString(content, "\n")
	content = htmlTag.ReplaceAllString(content, "")
	content = html.UnescapeString(content)
	content = htmlSpaces.ReplaceAllString(content, " ")

	var lines []string
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n\n")
}

func htmlTitle(content string) string {
	m := htmlTitleTag.FindStringSubmatch(content)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(htmlTag.ReplaceAllString(m[1], "")))
}
