package usecases

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	headerMarker = regexp.MustCompile(`\*\*[^*]+\*\*`)
	blankLine    = regexp.MustCompile(`\n\s*\n`)
)

var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "blockquote": true,
	"ul": true, "ol": true, "li": true, "pre": true, "table": true, "tr": true,
	"header": true, "footer": true,
}

var headingTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// FormatHumanizedOutput turns the tool's output markup into plain text. Paragraphs are
// separated by exactly one blank line and bold or header markers stand on their own.
func FormatHumanizedOutput(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}

	f := &outputFormatter{}
	f.walk(doc.Find("body"))
	f.flush()

	var parts []string
	for _, block := range f.blocks {
		parts = append(parts, splitHeaders(block)...)
	}
	return strings.Join(parts, "\n\n"), nil
}

type outputFormatter struct {
	blocks []string
	words  []string
}

func (f *outputFormatter) flush() {
	if len(f.words) > 0 {
		f.blocks = append(f.blocks, strings.Join(f.words, " "))
		f.words = nil
	}
}

func (f *outputFormatter) walk(s *goquery.Selection) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		n := c.Get(0)
		switch n.Type {
		case html.TextNode:
			for i, segment := range blankLine.Split(n.Data, -1) {
				if i > 0 {
					f.flush()
				}
				f.words = append(f.words, strings.Fields(segment)...)
			}
		case html.ElementNode:
			name := goquery.NodeName(c)
			switch {
			case name == "br":
				f.flush()
			case name == "script" || name == "style":
			case headingTags[name]:
				f.flush()
				if text := markerText(c.Text()); text != "" {
					f.blocks = append(f.blocks, "**"+text+"**")
				}
			case name == "strong" || name == "b":
				if text := markerText(c.Text()); text != "" {
					f.words = append(f.words, "**"+text+"**")
				}
			case blockTags[name]:
				f.flush()
				f.walk(c)
				f.flush()
			default:
				f.walk(c)
			}
		}
	})
}

func markerText(s string) string {
	return strings.Join(strings.Fields(strings.Trim(s, "* \t\n")), " ")
}

// splitHeaders lifts a marker out of its paragraph when it stands alone as a header.
// A marker must be followed by whitespace or the end of the block, and must either open
// the paragraph or a sentence, or be followed by a capitalised word ("Dear team,
// **Summary** We shipped."). Any other marker is emphasis and stays inline.
func splitHeaders(block string) []string {
	var parts []string
	last := 0
	for _, loc := range headerMarker.FindAllStringIndex(block, -1) {
		start, end := loc[0], loc[1]
		after := block[end:]
		if after != "" && !unicode.IsSpace(rune(after[0])) {
			continue
		}
		before := strings.TrimSpace(block[last:start])
		if before != "" && !strings.ContainsAny(before[len(before)-1:], ".!?") && !opensSentence(after) {
			continue
		}
		if before != "" {
			parts = append(parts, before)
		}
		parts = append(parts, block[start:end])
		last = end
	}
	if rest := strings.TrimSpace(block[last:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

func opensSentence(s string) bool {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsUpper(r)
}
