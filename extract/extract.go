package extract

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/pevans/newsreap/scraper"
	"github.com/pevans/newsreap/session"
)

// DefaultAuthor is stored when no byline can be located. It is deliberately
// non-empty so downstream display never shows a blank byline.
const DefaultAuthor = "see article for details"

// ErrNoMatch reports that no locator in a field's chain matched the page.
var ErrNoMatch = errors.New("no locator match")

// Extractor derives one record field from the loaded article page. Run may
// fail; Apply substitutes Default so a field failure never aborts the
// article as a whole.
type Extractor struct {
	Name    string
	Default string
	Run     func(s session.Session) (string, error)
}

// Fields holds the page-derived field values for one article.
type Fields struct {
	Body   string
	Author string
	Media  string
	Date   string
}

// Set builds the extractor set for a site: each field paired with its
// locator chain and its documented default.
func Set(cfg *scraper.SiteConfig) []Extractor {
	return []Extractor{
		{
			Name:    "body",
			Default: "",
			Run:     func(s session.Session) (string, error) { return Body(s, cfg.Fields) },
		},
		{
			Name:    "author",
			Default: DefaultAuthor,
			Run:     func(s session.Session) (string, error) { return Author(s, cfg.Fields) },
		},
		{
			Name:    "media",
			Default: cfg.MediaPlaceholder,
			Run:     func(s session.Session) (string, error) { return Media(s, cfg.Fields) },
		},
		{
			Name:    "date",
			Default: "",
			Run:     func(s session.Session) (string, error) { return Date(s, cfg.Fields) },
		},
	}
}

// Apply runs one extractor and substitutes its default on any failure or
// empty result. Extraction errors are converted here and never propagate.
func Apply(s session.Session, e Extractor) string {
	value, err := e.Run(s)
	if err != nil {
		if !errors.Is(err, ErrNoMatch) {
			log.Printf("field %s: using default: %v", e.Name, err)
		}
		return e.Default
	}
	if value == "" {
		return e.Default
	}
	return value
}

// Run invokes every extractor in the set against the loaded page and
// returns the assembled field values. It always succeeds: each field
// defaults independently.
func Run(s session.Session, cfg *scraper.SiteConfig) Fields {
	values := make(map[string]string)
	for _, e := range Set(cfg) {
		values[e.Name] = Apply(s, e)
	}
	return Fields{
		Body:   values["body"],
		Author: values["author"],
		Media:  values["media"],
		Date:   values["date"],
	}
}

// Body locates the article's content blocks, strips configured noise
// substructures, and concatenates the block texts as paragraphs separated by
// blank lines. When no locator matches and the readability fallback is
// enabled, the whole page is run through content extraction before giving
// up.
func Body(s session.Session, f scraper.FieldLocators) (string, error) {
	doc, err := s.Document()
	if err != nil {
		return "", err
	}

	noise := strings.Join(f.Noise, ", ")
	for _, loc := range f.Body {
		sel := doc.Find(loc.Selector)
		if sel.Length() == 0 {
			continue
		}
		paragraphs := blockParagraphs(sel, noise)
		if len(paragraphs) > 0 {
			return strings.Join(paragraphs, "\n\n"), nil
		}
	}

	if f.ReadabilityFallback {
		if body, err := readableBody(s); err == nil && body != "" {
			return body, nil
		}
	}

	return "", ErrNoMatch
}

// blockParagraphs collects the normalized text of each matched block. Blocks
// are cloned before noise removal so the session's document is untouched.
func blockParagraphs(sel *goquery.Selection, noise string) []string {
	var paragraphs []string
	sel.Each(func(_ int, block *goquery.Selection) {
		block = block.Clone()
		if noise != "" {
			block.Find(noise).Remove()
		}
		text := strings.Join(strings.Fields(block.Text()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	return paragraphs
}

// readableBody extracts the main content of the whole page with readability
// and reduces it to paragraph text.
func readableBody(s session.Session) (string, error) {
	html, err := s.HTML()
	if err != nil {
		return "", err
	}
	pageURL, err := url.Parse(s.Location())
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", fmt.Errorf("failed to parse extracted content: %w", err)
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.Join(strings.Fields(p.Text()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		text := strings.Join(strings.Fields(article.TextContent), " ")
		if text == "" {
			return "", ErrNoMatch
		}
		return text, nil
	}

	return strings.Join(paragraphs, "\n\n"), nil
}

// Author locates the byline. The caller's default applies when no locator in
// the chain matches.
func Author(s session.Session, f scraper.FieldLocators) (string, error) {
	doc, err := s.Document()
	if err != nil {
		return "", err
	}

	for _, loc := range f.Author {
		if value, err := locate(doc, loc); err == nil && value != "" {
			return value, nil
		}
	}
	return "", ErrNoMatch
}

// Media walks the configured locator chain in priority order (featured
// image, then e.g. a video poster) and returns the first non-empty result,
// resolved to an absolute URL. The attribute defaults to src.
func Media(s session.Session, f scraper.FieldLocators) (string, error) {
	doc, err := s.Document()
	if err != nil {
		return "", err
	}

	for _, loc := range f.Media {
		if loc.Attr == "" {
			loc.Attr = "src"
		}
		value, err := locate(doc, loc)
		if err != nil || value == "" {
			continue
		}
		return absoluteURL(s.Location(), value), nil
	}
	return "", ErrNoMatch
}

// Date locates a machine-readable timestamp and normalizes it to RFC 3339
// in UTC. An unparsable or missing date is an ErrNoMatch, never a guess.
func Date(s session.Session, f scraper.FieldLocators) (string, error) {
	doc, err := s.Document()
	if err != nil {
		return "", err
	}

	for _, loc := range f.Date {
		raw, err := locate(doc, loc)
		if err != nil || raw == "" {
			continue
		}
		if t, err := parseDate(raw, f.DateFormat); err == nil {
			return t.UTC().Format(time.RFC3339), nil
		}
	}
	return "", ErrNoMatch
}

// locate evaluates a single locator against the document: first match only,
// attribute value when configured, normalized text otherwise.
func locate(doc *goquery.Document, loc scraper.Locator) (string, error) {
	sel := doc.Find(loc.Selector).First()
	if sel.Length() == 0 {
		return "", ErrNoMatch
	}
	if loc.Attr != "" {
		value, ok := sel.Attr(loc.Attr)
		if !ok {
			return "", ErrNoMatch
		}
		return strings.TrimSpace(value), nil
	}
	return strings.Join(strings.Fields(sel.Text()), " "), nil
}

func parseDate(raw, layout string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if layout != "" {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// absoluteURL resolves ref against base, falling back to ref as-is when
// either fails to parse.
func absoluteURL(base, ref string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
