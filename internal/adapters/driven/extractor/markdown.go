package extractor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

// MarkdownExtractor reads markdown papers and strips the markup so
// headings stand alone on their lines.
type MarkdownExtractor struct{}

// NewMarkdownExtractor creates a markdown extractor.
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

// Name identifies the extractor.
func (e *MarkdownExtractor) Name() string {
	return "markdown"
}

// Supports reports whether path has a markdown extension.
func (e *MarkdownExtractor) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	default:
		return false
	}
}

// Extract reads the file. The first level-one heading becomes the title.
func (e *MarkdownExtractor) Extract(ctx context.Context, path string) (*domain.RawDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrUnsupportedType, path)
	}
	content := string(data)
	return &domain.RawDocument{
		URI:   path,
		Title: markdownTitle(content),
		Pages: SplitPages(StripMarkdown(content)),
	}, nil
}

var (
	mdFence      = regexp.MustCompile("(?m)^[ \\t]*```.*$")
	mdImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdStrong     = regexp.MustCompile(`(\*\*|__)([^\n]+?)(\*\*|__)`)
	mdItalic     = regexp.MustCompile(`\*([^*\n]+)\*`)
	mdInlineCode = regexp.MustCompile("`([^`]+)`")
	mdQuote      = regexp.MustCompile(`(?m)^>\s?`)
	mdRule       = regexp.MustCompile(`(?m)^[ \t]*([-*_])([ \t]*([-*_])){2,}[ \t]*$`)
	mdBullet     = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	mdHTMLTag    = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	mdBlankRun   = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown removes markup and keeps the text. Fenced code keeps its
// content; numbered lists keep their numbers, since "1." also starts
// numbered section headings.
func StripMarkdown(content string) string {
	content = mdFence.ReplaceAllString(content, "")
	content = mdImage.ReplaceAllString(content, "$1")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	content = mdQuote.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdBullet.ReplaceAllString(content, "$1")
	content = mdStrong.ReplaceAllString(content, "$2")
	content = mdItalic.ReplaceAllString(content, "$1")
	content = mdHTMLTag.ReplaceAllString(content, "")
	content = mdBlankRun.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
