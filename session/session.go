package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
)

// Errors surfaced by page sessions. ErrBlockedByRobots is permanent for a
// given URL, so callers should not retry navigation that fails with it.
var (
	ErrNotLoaded       = errors.New("no page loaded")
	ErrBlockedByRobots = errors.New("blocked by robots.txt")
)

// Session is the page collaborator contract: navigate to a URL within the
// caller's deadline, then expose the loaded document for locator evaluation.
// Implementations hold exactly one page at a time; a successful Navigate
// replaces the previous page.
type Session interface {
	Navigate(ctx context.Context, rawURL string) error
	Location() string
	Document() (*goquery.Document, error)
	HTML() (string, error)
	Close() error
}

// Options configures an HTTP-backed session.
type Options struct {
	// Timeout bounds each HTTP request. Zero means 10 seconds.
	Timeout time.Duration
	// UserAgent is sent with every request. Zero means a default identifying
	// newsreap.
	UserAgent string
	// CheckRobots enables per-host robots.txt checks before navigation.
	CheckRobots bool
}

const defaultUserAgent = "newsreap/1.0 (news harvester)"

// HTTPSession implements Session over net/http with goquery document
// parsing. It is not safe for concurrent use; the harvest flow is strictly
// sequential.
type HTTPSession struct {
	client      *http.Client
	userAgent   string
	checkRobots bool
	robots      map[string]*robotstxt.RobotsData

	loc  string
	html string
	doc  *goquery.Document
}

// New creates an HTTP-backed page session.
func New(opts Options) *HTTPSession {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &HTTPSession{
		client:      &http.Client{Timeout: timeout},
		userAgent:   userAgent,
		checkRobots: opts.CheckRobots,
		robots:      make(map[string]*robotstxt.RobotsData),
	}
}

// Navigate fetches the URL and replaces the session's current document. On
// failure the previously loaded page, if any, remains current.
func (s *HTTPSession) Navigate(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL %q must use http or https scheme", rawURL)
	}

	if s.checkRobots {
		allowed, err := s.robotsAllow(ctx, u)
		if err != nil {
			return err
		}
		if !allowed {
			return fmt.Errorf("%s: %w", rawURL, ErrBlockedByRobots)
		}
	}

	body, err := s.fetch(ctx, rawURL)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}

	s.loc = rawURL
	s.html = string(body)
	s.doc = doc
	return nil
}

// Location returns the URL of the currently loaded page, or "" if none.
func (s *HTTPSession) Location() string {
	return s.loc
}

// Document returns the currently loaded page for locator evaluation.
func (s *HTTPSession) Document() (*goquery.Document, error) {
	if s.doc == nil {
		return nil, ErrNotLoaded
	}
	return s.doc, nil
}

// HTML returns the raw markup of the currently loaded page.
func (s *HTTPSession) HTML() (string, error) {
	if s.doc == nil {
		return "", ErrNotLoaded
	}
	return s.html, nil
}

// Close releases the session. The underlying HTTP client keeps idle
// connections; close them so the job leaves nothing behind.
func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	s.doc = nil
	s.html = ""
	s.loc = ""
	return nil
}

// fetch performs a single GET and returns the response body.
func (s *HTTPSession) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// robotsAllow reports whether the URL's path may be fetched under the host's
// robots.txt. Hosts are cached for the life of the session. An unreachable or
// unparsable robots.txt allows everything, matching crawler convention.
func (s *HTTPSession) robotsAllow(ctx context.Context, u *url.URL) (bool, error) {
	data, ok := s.robots[u.Host]
	if !ok {
		data = s.fetchRobots(ctx, u)
		s.robots[u.Host] = data
	}
	if data == nil {
		return true, nil
	}
	return data.TestAgent(u.Path, s.userAgent), nil
}

func (s *HTTPSession) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
