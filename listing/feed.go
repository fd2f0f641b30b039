package listing

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pevans/newsreap"
	"github.com/pevans/newsreap/extract"
)

// CollectFeed sources candidate entries from an RSS or Atom feed instead of
// a listing page. The gofeed library detects and normalizes both formats;
// the fetch is bounded by ctx so a stalled feed server cannot hang the run.
// The contract matches Collect: item title becomes the headline, item link
// the link, non-conforming items are dropped silently, and entries are
// deduplicated by link in feed order.
func CollectFeed(ctx context.Context, feedURL string) ([]newsreap.CandidateEntry, error) {
	fp := gofeed.NewParser()
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	seen := make(map[string]bool)
	var entries []newsreap.CandidateEntry

	for _, item := range feed.Items {
		headline := strings.Join(strings.Fields(item.Title), " ")
		link := absoluteLink(nil, strings.TrimSpace(item.Link))
		if headline == "" || link == "" {
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true

		entries = append(entries, newsreap.CandidateEntry{
			Headline: headline,
			Link:     link,
			Slug:     extract.Slug(headline),
		})
	}

	return entries, nil
}
