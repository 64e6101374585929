package sniff

import (
	"sort"
	"strings"

	"github.com/mgutz/ansi"
)

var warn = ansi.ColorFunc("yellow+b")

type span struct {
	start int
	end   int
}

// spansOfStrings locates every occurrence of each matched string within text.
// Working from offsets keeps repeated or overlapping matches from being
// wrapped more than once.
func spansOfStrings(text string, matches []string) []span {
	var spans []span

	seen := map[string]struct{}{}
	for _, match := range matches {
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}

		for from := 0; ; {
			i := strings.Index(text[from:], match)
			if i < 0 {
				break
			}

			start := from + i
			spans = append(spans, span{start: start, end: start + len(match)})
			from = start + len(match)
		}
	}

	return spans
}

// highlight renders text once with every span wrapped in the warning color.
// Spans contained within an earlier span are dropped rather than re-wrapped.
func highlight(text string, spans []span) string {
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start == spans[j].start {
			return spans[i].end > spans[j].end
		}
		return spans[i].start < spans[j].start
	})

	var out strings.Builder
	cursor := 0

	for _, sp := range spans {
		if sp.start < cursor {
			continue
		}

		out.WriteString(text[cursor:sp.start])
		out.WriteString(warn(text[sp.start:sp.end]))
		cursor = sp.end
	}
	out.WriteString(text[cursor:])

	return out.String()
}
