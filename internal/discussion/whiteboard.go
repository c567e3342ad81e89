package discussion

import (
	"regexp"
	"strings"
)

var (
	fencedPattern = regexp.MustCompile("(?s)```(.*?)```")
	htmlPattern   = regexp.MustCompile(`(?is)<html.*?>.*?</html>`)
	scriptPattern = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	stylePattern  = regexp.MustCompile(`(?is)<style.*?>.*?</style>`)
)

// ExtractCode collects fenced code (inner text), full HTML documents,
// script blocks and style blocks, in that category order. Duplicates keep
// their first position. Blocks are joined by a blank line.
func ExtractCode(text string) string {
	var blocks []string
	seen := make(map[string]bool)
	add := func(s string) {
		if seen[s] {
			return
		}
		seen[s] = true
		blocks = append(blocks, s)
	}

	for _, m := range fencedPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, re := range []*regexp.Regexp{htmlPattern, scriptPattern, stylePattern} {
		for _, m := range re.FindAllString(text, -1) {
			add(m)
		}
	}
	return strings.Join(blocks, "\n\n")
}
