package narrative

import (
	"regexp"
	"strings"
)

var (
	reHeadingLine = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t].*$\n?`)
	reTitleLine   = regexp.MustCompile(`(?i)^[\s*_]*((I|1)\s*[-–.)]\s*)?DOS\s+FATOS[\s*_:.]*$`)
	reCodeFence   = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z]*[ \t]*$\n?")
	reArtSlash    = regexp.MustCompile(`(?i)\b(arts?)\s*/\s*(\d)`)
	reBlankRuns   = regexp.MustCompile(`\n{3,}`)
)

// PostProcess removes markdown the model may emit for the section title and fixes
// the "art/ 5" abbreviation. It is deterministic and idempotent.
func PostProcess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = reCodeFence.ReplaceAllString(text, "")
	text = reHeadingLine.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "**", "")

	text = strings.TrimSpace(text)
	if line, rest, _ := strings.Cut(text, "\n"); reTitleLine.MatchString(line) {
		text = strings.TrimSpace(rest)
	}

	text = reArtSlash.ReplaceAllString(text, "$1. $2")
	text = reBlankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
