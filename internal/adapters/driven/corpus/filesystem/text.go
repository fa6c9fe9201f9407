package filesystem

import (
	"html"
	"regexp"
	"strings"
)

var (
	mdFence      = regexp.MustCompile("(?m)^[ \t]*```.*$")
	mdImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	mdBold       = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	mdQuote      = regexp.MustCompile(`(?m)^>[ \t]?`)
	mdRule       = regexp.MustCompile(`(?m)^[ \t]*[-*_]{3,}[ \t]*$`)
	mdBullet     = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	mdTableSep   = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}:?[ \t]*(\|[ \t]*:?-{3,}:?[ \t]*)*\|?[ \t]*$`)
	htmlComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlBlock    = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|td|th|blockquote|pre|table|section|article)(\s[^>]*)?/?>`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	blankLineRun = regexp.MustCompile(`\n{3,}`)
)

// htmlDrop matches elements removed together with their content.
var htmlDrop = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`),
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
	regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`),
	regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`),
}

// markdownText reduces Markdown to the prose a reviewer would quote.
// Numbered list markers are kept because clause numbers are cited.
func markdownText(s string) string {
	s = mdFence.ReplaceAllString(s, "")
	s = mdImage.ReplaceAllString(s, "$1")
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdBold.ReplaceAllString(s, "$2")
	s = mdQuote.ReplaceAllString(s, "")
	s = mdTableSep.ReplaceAllString(s, "")
	s = mdRule.ReplaceAllString(s, "")
	s = mdBullet.ReplaceAllString(s, "$1")
	return strings.TrimSpace(blankLineRun.ReplaceAllString(s, "\n\n"))
}

// htmlText strips markup and decodes entities, one block element per line.
func htmlText(s string) string {
	for _, re := range htmlDrop {
		s = re.ReplaceAllString(s, "")
	}
	s = htmlComment.ReplaceAllString(s, "")
	s = htmlBlock.ReplaceAllString(s, "\n")
	s = htmlTag.ReplaceAllString(s, "")
	s = strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " ")); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
