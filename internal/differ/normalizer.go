package differ

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/siteguardian/internal/common"
)

var alwaysStripped = []string{"script", "style", "noscript", "template"}

// Normalizer reduces page content to the lines worth comparing. HTML is
// reduced to its visible text; volatile lines are dropped by pattern.
type Normalizer struct {
	normalizeHTML   bool
	ignoreSelectors []string
	ignorePatterns  []*regexp.Regexp
}

// NewNormalizer compiles the ignore patterns.
func NewNormalizer(normalizeHTML bool, ignoreSelectors, ignorePatterns []string) (*Normalizer, error) {
	n := &Normalizer{normalizeHTML: normalizeHTML}
	for _, sel := range ignoreSelectors {
		if sel = strings.TrimSpace(sel); sel != "" {
			n.ignoreSelectors = append(n.ignoreSelectors, sel)
		}
	}
	for _, pattern := range ignorePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, common.NewValidationError("ignore_patterns", pattern, err.Error())
		}
		n.ignorePatterns = append(n.ignorePatterns, re)
	}
	return n, nil
}

// Lines returns the comparable lines of text.
func (n *Normalizer) Lines(text string, contentType string) []string {
	var lines []string
	if n.normalizeHTML && IsHTMLContent(contentType) {
		lines = n.htmlLines(text)
	} else {
		lines = splitLines(text)
	}
	if len(n.ignorePatterns) == 0 {
		return lines
	}

	kept := lines[:0:0]
	for _, line := range lines {
		if !n.ignored(line) {
			kept = append(kept, line)
		}
	}
	return kept
}

func (n *Normalizer) ignored(line string) bool {
	for _, re := range n.ignorePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// htmlLines extracts visible text, one non-empty line per text line, with
// inner whitespace collapsed.
func (n *Normalizer) htmlLines(text string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return splitLines(text)
	}

	doc.Find(strings.Join(alwaysStripped, ", ")).Remove()
	for _, sel := range n.ignoreSelectors {
		doc.Find(sel).Remove()
	}
	// put block boundaries on their own lines
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4, h5, h6, section, article, header, footer, title").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("html")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	for _, raw := range strings.Split(root.Text(), "\n") {
		if line := strings.Join(strings.Fields(raw), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitLines splits text into lines without their terminators. A trailing
// newline does not produce an empty final line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}
