package sgr

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`(https?://[^\s.]+\.[^\s]{2,}|www\.[^\s]+\.[^\s]{2,})`)

// Linkify splits each span around URL matches. Link spans keep the style of the
// run they came from and carry an Href; bare www. hosts get an http:// target.
func Linkify(spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	for _, sp := range spans {
		locs := linkPattern.FindAllStringIndex(sp.Text, -1)
		if len(locs) == 0 {
			out = append(out, sp)
			continue
		}
		pos := 0
		for _, loc := range locs {
			if loc[0] > pos {
				plain := sp
				plain.Text = sp.Text[pos:loc[0]]
				out = append(out, plain)
			}
			link := sp
			link.Text = sp.Text[loc[0]:loc[1]]
			link.Href = linkTarget(link.Text)
			out = append(out, link)
			pos = loc[1]
		}
		if pos < len(sp.Text) {
			tail := sp
			tail.Text = sp.Text[pos:]
			out = append(out, tail)
		}
	}
	return out
}

func linkTarget(match string) string {
	if strings.HasPrefix(match, "www.") {
		return "http://" + match
	}
	return match
}
