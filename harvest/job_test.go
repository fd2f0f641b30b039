package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/newsreap"
	"github.com/pevans/newsreap/retry"
	"github.com/pevans/newsreap/scraper"
	"github.com/pevans/newsreap/session"
	"github.com/pevans/newsreap/store"
)

// testSite is an httptest-backed news site with a listing page, two good
// articles, and one article that always fails.
func testSite(t *testing.T, brokenHits *atomic.Int64) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><ul class="headlines">
			<li class="teaser"><a href="/x">A B C D</a></li>
			<li class="teaser"><a href="/y">Second Article Headline</a></li>
			<li class="teaser"><a href="/broken">Broken Article</a></li>
		</ul></body></html>`)
	})
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="byline">Jane Reporter</div>
			<img class="lead" src="/images/lead.jpg">
			<time datetime="2024-03-05T09:30:00Z">March 5</time>
			<div class="article-body">
				<p>First paragraph of the story text.</p>
				<p>Second paragraph with more detail.</p>
			</div>
		</body></html>`)
	})
	mux.HandleFunc("/y", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="article-body"><p>Only paragraph.</p></div>
		</body></html>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		if brokenHits != nil {
			brokenHits.Add(1)
		}
		w.WriteHeader(http.StatusInternalServerError)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testSiteConfig(baseURL string) *scraper.SiteConfig {
	return &scraper.SiteConfig{
		Name:       "Test Site",
		Resource:   "testsite",
		ListingURL: baseURL + "/news",
		ListingRules: []scraper.ListingRule{
			{Selector: "li.teaser", LinkSelector: "a"},
		},
		Fields: scraper.FieldLocators{
			Body:   []scraper.Locator{{Selector: ".article-body p"}},
			Author: []scraper.Locator{{Selector: ".byline"}},
			Media: []scraper.Locator{
				{Selector: "img.lead"},
				{Selector: "video", Attr: "poster"},
			},
			Date: []scraper.Locator{{Selector: "time", Attr: "datetime"}},
		},
		MediaPlaceholder: "https://cdn.example/placeholder.png",
	}
}

func testJobConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		NavigateTimeout: 2 * time.Second,
		Retry: retry.Config{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
		},
		SnapshotPath: filepath.Join(t.TempDir(), "articles.json"),
	}
}

func runJob(t *testing.T, site *scraper.SiteConfig, st *store.ArticleStore, cfg *Config) []newsreap.ArticleRecord {
	t.Helper()
	s := session.New(session.Options{Timeout: 2 * time.Second})
	defer s.Close()

	records, err := NewJob(site, s, st, cfg).Run(context.Background())
	require.NoError(t, err)
	return records
}

// TestJob_EndToEnd verifies the full listing-to-record scenario
func TestJob_EndToEnd(t *testing.T) {
	var brokenHits atomic.Int64
	server := testSite(t, &brokenHits)
	site := testSiteConfig(server.URL)

	st, err := store.NewArticleStore(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	defer st.Close()

	cfg := testJobConfig(t)
	records := runJob(t, site, st, cfg)

	require.Len(t, records, 2, "the failing article is abandoned, the rest succeed")

	first := records[0]
	assert.Equal(t, "A B C D", first.Headline)
	assert.Equal(t, server.URL+"/x", first.Link)
	assert.True(t, strings.HasPrefix(first.Slug, "abc"), "slug %q should start with abc", first.Slug)
	assert.Equal(t, "testsite", first.Resource)
	assert.NotEqual(t, first.ID, records[1].ID, "ids are generated fresh per record")

	// Body: both paragraphs wrapped, plus the citation block.
	assert.Contains(t, first.Body, "<p>First paragraph of the story text.</p>")
	assert.Contains(t, first.Body, "<p>Second paragraph with more detail.</p>")
	assert.Contains(t, first.Body, `href="`+server.URL+`/x"`)

	// Summary: first words of the concatenated paragraph text plus ellipsis.
	assert.True(t, strings.HasPrefix(first.Summary, "First paragraph of the story text."))
	assert.True(t, strings.HasSuffix(first.Summary, "..."))

	assert.Equal(t, "Jane Reporter", first.Author)
	assert.Equal(t, server.URL+"/images/lead.jpg", first.Media)
	assert.Equal(t, "2024-03-05T09:30:00Z", first.Date)

	// Second article has no byline, image, or date: fields default, never blank out.
	second := records[1]
	assert.Equal(t, "see article for details", second.Author)
	assert.Equal(t, site.MediaPlaceholder, second.Media)
	assert.Empty(t, second.Date)
	assert.NotEmpty(t, second.Body)
}

// TestJob_ExhaustedEntryExcluded verifies a never-succeeding entry leaves no trace
func TestJob_ExhaustedEntryExcluded(t *testing.T) {
	var brokenHits atomic.Int64
	server := testSite(t, &brokenHits)
	site := testSiteConfig(server.URL)

	st, err := store.NewArticleStore(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	defer st.Close()

	cfg := testJobConfig(t)
	runJob(t, site, st, cfg)

	assert.EqualValues(t, 3, brokenHits.Load(), "navigation retried up to the attempt ceiling")

	stored, err := st.ListByResource("testsite")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, rec := range stored {
		assert.NotContains(t, rec.Link, "/broken", "no partial record for the exhausted entry")
	}

	// The snapshot still accounts for the abandoned entry, in its own
	// partition with listing identity only.
	snapshot, err := store.ReadSnapshot(cfg.SnapshotPath)
	require.NoError(t, err)
	require.Len(t, snapshot.Succeeded, 2)
	for _, rec := range snapshot.Succeeded {
		assert.NotContains(t, rec.Link, "/broken")
	}
	require.Len(t, snapshot.Exhausted, 1)
	assert.Equal(t, "Broken Article", snapshot.Exhausted[0].Headline)
	assert.Equal(t, server.URL+"/broken", snapshot.Exhausted[0].Link)
	assert.NotEmpty(t, snapshot.Exhausted[0].Slug)
}

// TestJob_FeedMode verifies feed-sourced candidates run the same ingestion loop
func TestJob_FeedMode(t *testing.T) {
	var baseURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel>
			<title>Test Feed</title>
			<item><title>Feed Story</title><link>%s/x</link></item>
		</channel></rss>`, baseURL)
	})
	mux.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<div class="article-body"><p>Feed-sourced paragraph.</p></div>
		</body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	baseURL = server.URL

	site := testSiteConfig(server.URL)
	site.ListingURL = ""
	site.ListingRules = nil
	site.FeedURL = server.URL + "/feed"

	st, err := store.NewArticleStore(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	defer st.Close()

	records := runJob(t, site, st, testJobConfig(t))

	require.Len(t, records, 1)
	assert.Equal(t, "Feed Story", records[0].Headline)
	assert.Equal(t, server.URL+"/x", records[0].Link)
	assert.Contains(t, records[0].Body, "<p>Feed-sourced paragraph.</p>")
}

// TestJob_Idempotent verifies back-to-back runs leave exactly one run's rows
func TestJob_Idempotent(t *testing.T) {
	server := testSite(t, nil)
	site := testSiteConfig(server.URL)

	st, err := store.NewArticleStore(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	defer st.Close()

	cfg := testJobConfig(t)
	runJob(t, site, st, cfg)
	second := runJob(t, site, st, cfg)

	stored, err := st.ListByResource("testsite")
	require.NoError(t, err)
	require.Len(t, stored, len(second), "no accumulation across runs")

	ids := make(map[string]bool)
	for _, rec := range second {
		ids[rec.ID.String()] = true
	}
	for _, rec := range stored {
		assert.True(t, ids[rec.ID.String()], "store should hold exactly the second run's records")
	}
}

// TestJob_ListingFailureIsFatal verifies nothing is swept or written on a dead listing
func TestJob_ListingFailureIsFatal(t *testing.T) {
	server := testSite(t, nil)
	site := testSiteConfig(server.URL)

	st, err := store.NewArticleStore(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	defer st.Close()

	// Seed a prior run, then point the listing at a dead URL.
	cfg := testJobConfig(t)
	runJob(t, site, st, cfg)

	deadSite := testSiteConfig(server.URL)
	deadSite.ListingURL = server.URL + "/broken"

	s := session.New(session.Options{Timeout: 2 * time.Second})
	defer s.Close()
	_, err = NewJob(deadSite, s, st, cfg).Run(context.Background())
	require.Error(t, err)

	stored, err := st.ListByResource("testsite")
	require.NoError(t, err)
	assert.Len(t, stored, 2, "an aborted job must not sweep the previous run's records")
}

// TestJob_EmptyListing verifies an empty candidate set completes cleanly
func TestJob_EmptyListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>quiet news day</p></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	site := testSiteConfig(server.URL)
	st, err := store.NewArticleStore(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	defer st.Close()

	cfg := testJobConfig(t)
	records := runJob(t, site, st, cfg)

	assert.Empty(t, records)

	snapshot, err := store.ReadSnapshot(cfg.SnapshotPath)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Succeeded, "snapshot artifact is still written for an empty run")
	assert.Empty(t, snapshot.Exhausted)
}
