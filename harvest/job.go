package harvest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pevans/newsreap"
	"github.com/pevans/newsreap/extract"
	"github.com/pevans/newsreap/listing"
	"github.com/pevans/newsreap/retry"
	"github.com/pevans/newsreap/scraper"
	"github.com/pevans/newsreap/session"
	"github.com/pevans/newsreap/store"
)

// Config holds the tunable parts of a harvest job.
type Config struct {
	// NavigateTimeout bounds each page navigation, listing page included.
	NavigateTimeout time.Duration
	// Retry bounds the per-article navigation attempts.
	Retry retry.Config
	// SnapshotPath is where the batch snapshot is written after the loop.
	// Empty disables the snapshot.
	SnapshotPath string
}

// DefaultConfig returns the standard job settings: a 10 second navigation
// timeout and 3 attempts per article.
func DefaultConfig() *Config {
	return &Config{
		NavigateTimeout: 10 * time.Second,
		Retry:           retry.DefaultConfig(),
		SnapshotPath:    "articles.json",
	}
}

// Job harvests one site: collect candidates from the listing page (or
// feed), ingest each article with bounded-retry navigation, persist each
// completed record immediately, and write a snapshot of the batch at the
// end. The session and store are injected and owned by the caller, which
// releases them on every exit path.
type Job struct {
	site    *scraper.SiteConfig
	session session.Session
	store   *store.ArticleStore
	config  *Config
}

// NewJob creates a harvest job for a site.
func NewJob(site *scraper.SiteConfig, s session.Session, st *store.ArticleStore, config *Config) *Job {
	if config == nil {
		config = DefaultConfig()
	}
	return &Job{
		site:    site,
		session: s,
		store:   st,
		config:  config,
	}
}

// Run executes the whole job and returns the records that were successfully
// ingested. A listing-page failure aborts the job before anything is swept
// or written; after that point, per-article failures are logged and skipped
// and the job always runs to completion.
func (j *Job) Run(ctx context.Context) ([]newsreap.ArticleRecord, error) {
	candidates, err := j.collect(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("%s: %d candidate articles", j.site.Resource, len(candidates))

	// Clear the previous run's rows before any inserts so the store only
	// ever reflects the latest run for this resource.
	deleted, err := j.store.Sweep(j.site.Resource)
	if err != nil {
		return nil, err
	}
	if deleted > 0 {
		log.Printf("%s: swept %d records from previous run", j.site.Resource, deleted)
	}

	var succeeded []newsreap.ArticleRecord
	var exhausted []newsreap.CandidateEntry
	for _, entry := range candidates {
		rec, err := j.ingest(ctx, entry)
		if err != nil {
			// The entry is abandoned; the rest of the batch continues.
			log.Printf("%s: SKIP %q (%s): %v", j.site.Resource, entry.Headline, entry.Link, err)
			exhausted = append(exhausted, entry)
			continue
		}

		// Persist per-record, not batched: a crash mid-run leaves every
		// already-ingested record durable.
		if err := j.store.Insert(rec); err != nil {
			log.Printf("%s: failed to persist %q: %v", j.site.Resource, rec.Slug, err)
		}
		succeeded = append(succeeded, rec)
	}

	// The snapshot carries every attempted entry: full records for the
	// succeeded, listing identity for the abandoned.
	if j.config.SnapshotPath != "" {
		snap := store.Snapshot{Succeeded: succeeded, Exhausted: exhausted}
		if err := store.WriteSnapshot(j.config.SnapshotPath, snap); err != nil {
			log.Printf("%s: snapshot write failed: %v", j.site.Resource, err)
		}
	}

	log.Printf("%s: harvested %d articles (%d abandoned)", j.site.Resource, len(succeeded), len(exhausted))
	return succeeded, nil
}

// collect gathers the run's candidate entries from the configured source.
// Any failure here is fatal to the job: with no candidate list there is
// nothing meaningful to sweep or write.
func (j *Job) collect(ctx context.Context) ([]newsreap.CandidateEntry, error) {
	if j.site.FeedURL != "" {
		// The feed fetch gets the same deadline as a page navigation.
		feedCtx := ctx
		if j.config.NavigateTimeout > 0 {
			var cancel context.CancelFunc
			feedCtx, cancel = context.WithTimeout(ctx, j.config.NavigateTimeout)
			defer cancel()
		}
		entries, err := listing.CollectFeed(feedCtx, j.site.FeedURL)
		if err != nil {
			return nil, fmt.Errorf("failed to load feed %s: %w", j.site.FeedURL, err)
		}
		return entries, nil
	}

	if err := j.navigate(ctx, j.site.ListingURL); err != nil {
		return nil, fmt.Errorf("failed to load listing page %s: %w", j.site.ListingURL, err)
	}
	return listing.Collect(j.session, j.site)
}

// ingest runs the per-entry state machine: bounded-retry navigation, then
// the full extractor set. Only navigation failures are retried; extractor
// failures default field-by-field, so a successful navigation always yields
// a complete, persistable record.
func (j *Job) ingest(ctx context.Context, entry newsreap.CandidateEntry) (newsreap.ArticleRecord, error) {
	op := func() error {
		err := j.navigate(ctx, entry.Link)
		if err != nil && errors.Is(err, session.ErrBlockedByRobots) {
			// Robots denial won't change between attempts.
			return retry.Permanent(err)
		}
		return err
	}

	name := fmt.Sprintf("navigate %s", entry.Link)
	if err := retry.Do(ctx, j.config.Retry, name, op); err != nil {
		return newsreap.ArticleRecord{}, err
	}

	fields := extract.Run(j.session, j.site)

	rec := newsreap.NewArticleRecord(entry, j.site.Resource)
	rec.Body = extract.WrapBody(fields.Body, entry.Link)
	rec.Summary = extract.Summary(fields.Body)
	rec.Author = fields.Author
	rec.Media = fields.Media
	rec.Date = fields.Date

	return rec, nil
}

// navigate moves the shared session to a URL within the configured timeout.
func (j *Job) navigate(ctx context.Context, rawURL string) error {
	if j.config.NavigateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.NavigateTimeout)
		defer cancel()
	}
	return j.session.Navigate(ctx, rawURL)
}
