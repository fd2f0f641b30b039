package listing

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pevans/newsreap"
	"github.com/pevans/newsreap/extract"
	"github.com/pevans/newsreap/scraper"
	"github.com/pevans/newsreap/session"
)

// Collect applies the site's listing rules to the currently loaded listing
// page and returns an ordered, deduplicated sequence of candidate entries.
// Matches that fail to resolve a non-empty headline and a well-formed
// absolute link are dropped silently. No rule matching anything yields an
// empty result, which callers treat as nothing to do rather than an error.
func Collect(s session.Session, cfg *scraper.SiteConfig) ([]newsreap.CandidateEntry, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(s.Location())
	if err != nil {
		base = nil
	}

	seen := make(map[string]bool)
	var entries []newsreap.CandidateEntry

	for _, rule := range cfg.ListingRules {
		doc.Find(rule.Selector).Each(func(_ int, match *goquery.Selection) {
			headline, link := resolveMatch(match, rule, base)
			if headline == "" || link == "" {
				return
			}
			if seen[link] {
				return
			}
			seen[link] = true

			entries = append(entries, newsreap.CandidateEntry{
				Headline: headline,
				Link:     link,
				Slug:     extract.Slug(headline),
			})
		})
	}

	return entries, nil
}

// resolveMatch extracts the headline text and absolute link from one rule
// match. Either value resolving empty disqualifies the match.
func resolveMatch(match *goquery.Selection, rule scraper.ListingRule, base *url.URL) (headline, link string) {
	headlineSel := match
	if rule.HeadlineSelector != "" {
		headlineSel = match.Find(rule.HeadlineSelector).First()
	}
	headline = strings.Join(strings.Fields(headlineSel.Text()), " ")

	linkSel := match
	if rule.LinkSelector != "" {
		linkSel = match.Find(rule.LinkSelector).First()
	}
	attr := rule.LinkAttr
	if attr == "" {
		attr = "href"
	}
	raw, ok := linkSel.Attr(attr)
	if !ok {
		return headline, ""
	}

	return headline, absoluteLink(base, strings.TrimSpace(raw))
}

// absoluteLink resolves raw against the listing page URL and keeps only
// well-formed absolute http(s) links.
func absoluteLink(base *url.URL, raw string) string {
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() || (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return ""
	}
	return ref.String()
}
