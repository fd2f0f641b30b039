package scraper

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validation errors for site configurations.
var (
	ErrNoResource   = errors.New("site config must set a resource tag")
	ErrNoListing    = errors.New("site config must set a listing URL or a feed URL")
	ErrNoRules      = errors.New("site config must define at least one listing rule")
	ErrEmptyLocator = errors.New("locator selector must not be empty")
)

// Locator identifies one place to look for a field value on an article page:
// a CSS selector plus an optional attribute name. An empty Attr means the
// matched element's text content is the value.
type Locator struct {
	Selector string `yaml:"selector" json:"selector"`
	Attr     string `yaml:"attr,omitempty" json:"attr,omitempty"`
}

// ListingRule defines how to find candidate articles on the listing page.
// Selector matches one element per candidate; HeadlineSelector and
// LinkSelector are resolved within that element (empty means the element
// itself). LinkAttr defaults to "href".
type ListingRule struct {
	Selector         string `yaml:"selector" json:"selector"`
	HeadlineSelector string `yaml:"headline_selector,omitempty" json:"headline_selector,omitempty"`
	LinkSelector     string `yaml:"link_selector,omitempty" json:"link_selector,omitempty"`
	LinkAttr         string `yaml:"link_attr,omitempty" json:"link_attr,omitempty"`
}

// FieldLocators holds the per-field locator chains for article pages. Each
// chain is tried in order and the first non-empty result wins; a chain that
// yields nothing falls through to the field's default value. Noise selectors
// are removed from matched body content before its text is concatenated.
type FieldLocators struct {
	Body   []Locator `yaml:"body,omitempty" json:"body,omitempty"`
	Author []Locator `yaml:"author,omitempty" json:"author,omitempty"`
	Media  []Locator `yaml:"media,omitempty" json:"media,omitempty"`
	Date   []Locator `yaml:"date,omitempty" json:"date,omitempty"`
	Noise  []string  `yaml:"noise,omitempty" json:"noise,omitempty"`

	// DateFormat is a Go time layout tried after RFC 3339 when parsing the
	// located date value.
	DateFormat string `yaml:"date_format,omitempty" json:"date_format,omitempty"`

	// ReadabilityFallback enables whole-page content extraction when no
	// body locator matches, before the field defaults to empty.
	ReadabilityFallback bool `yaml:"readability_fallback,omitempty" json:"readability_fallback,omitempty"`
}

// SiteConfig is the full scraping configuration for one site. It carries all
// site-specific markup knowledge; the harvesting code itself is site-agnostic.
type SiteConfig struct {
	Name     string `yaml:"name" json:"name"`
	Resource string `yaml:"resource" json:"resource"`

	// ListingURL is the page scanned for candidate articles. FeedURL, when
	// set, takes precedence and sources candidates from an RSS/Atom feed
	// instead.
	ListingURL string `yaml:"listing_url,omitempty" json:"listing_url,omitempty"`
	FeedURL    string `yaml:"feed_url,omitempty" json:"feed_url,omitempty"`

	ListingRules []ListingRule `yaml:"listing_rules,omitempty" json:"listing_rules,omitempty"`
	Fields       FieldLocators `yaml:"fields" json:"fields"`

	// MediaPlaceholder is stored when no media locator yields a value.
	MediaPlaceholder string `yaml:"media_placeholder,omitempty" json:"media_placeholder,omitempty"`
}

// Validate checks that the configuration is complete enough to run a harvest.
func (c *SiteConfig) Validate() error {
	if c.Resource == "" {
		return ErrNoResource
	}
	if c.ListingURL == "" && c.FeedURL == "" {
		return ErrNoListing
	}
	if c.FeedURL == "" && len(c.ListingRules) == 0 {
		return ErrNoRules
	}
	for _, rule := range c.ListingRules {
		if rule.Selector == "" {
			return ErrEmptyLocator
		}
	}
	for _, chain := range [][]Locator{c.Fields.Body, c.Fields.Author, c.Fields.Media, c.Fields.Date} {
		for _, loc := range chain {
			if loc.Selector == "" {
				return ErrEmptyLocator
			}
		}
	}
	return nil
}

// NewListingRule creates a listing rule with default link resolution (the
// matched element's href attribute).
func NewListingRule(selector string) ListingRule {
	return ListingRule{
		Selector: selector,
		LinkAttr: "href",
	}
}

// LoadSiteConfig loads and validates a site configuration from a YAML file.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site config: %w", err)
	}

	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse site config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
