package extractor

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/paperlens/internal/core/domain"
)

var (
	doiPattern   = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[-._;()/:a-z0-9]+[a-z0-9])`)
	arxivPattern = regexp.MustCompile(`(?i)\barxiv:\s*(\d{4}\.\d{4,5}(?:v\d+)?)`)
)

// Enrich fills DOI, ArxivID and Title from the first page when they are
// empty. The title falls back to the file name.
func Enrich(raw *domain.RawDocument) {
	if raw == nil {
		return
	}
	first := ""
	if len(raw.Pages) > 0 {
		first = raw.Pages[0].Text
	}
	if raw.DOI == "" {
		if m := doiPattern.FindStringSubmatch(first); m != nil {
			raw.DOI = strings.TrimRight(m[1], ".")
		}
	}
	if raw.ArxivID == "" {
		if m := arxivPattern.FindStringSubmatch(first); m != nil {
			raw.ArxivID = m[1]
		}
	}
	if raw.Title == "" {
		raw.Title = guessTitle(first)
	}
	if raw.Title == "" && raw.URI != "" {
		base := filepath.Base(raw.URI)
		raw.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}
}

// guessTitle returns the first line of the page that looks like a title:
// between 8 and 200 runes, not an identifier line, not a heading.
func guessTitle(page string) string {
	for i, line := range strings.Split(page, "\n") {
		if i >= 15 {
			break
		}
		line = strings.TrimSpace(line)
		n := utf8.RuneCountInString(line)
		if n < 8 || n > 200 {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "arxiv") || strings.HasPrefix(lower, "doi") ||
			strings.HasPrefix(lower, "abstract") || strings.Contains(lower, "@") ||
			strings.HasPrefix(lower, "http") || doiPattern.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}
