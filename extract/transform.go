package extract

import (
	"fmt"
	"html"
	"strings"
)

// SummaryWords is the number of leading body tokens kept in a summary.
const SummaryWords = 25

// Summary reduces a raw body to its first words plus an ellipsis marker. An
// empty body yields an empty summary. This is a pure transformation of the
// extracted body, not a page extractor.
func Summary(body string) string {
	words := strings.Fields(body)
	if len(words) == 0 {
		return ""
	}
	if len(words) > SummaryWords {
		words = words[:SummaryWords]
	}
	return strings.Join(words, " ") + "..."
}

// WrapBody produces the presentation form of a raw body: each paragraph
// (blank-line separated) wrapped in paragraph tags, followed by a citation
// block pointing at the original article. An empty body still gets the
// citation block; only when the link is also absent is the output fully
// empty.
func WrapBody(body, link string) string {
	if body == "" && link == "" {
		return ""
	}

	var b strings.Builder
	for _, paragraph := range strings.Split(body, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(paragraph))
		b.WriteString("</p>")
	}

	if link != "" {
		fmt.Fprintf(&b, `<p><em>Visit <a href="%s">the source</a> to read the full article.</em></p>`,
			html.EscapeString(link))
	}

	return b.String()
}
